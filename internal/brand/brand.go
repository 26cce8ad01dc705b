// Package brand serves the read-only brand dashboard data.
package brand

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures.yaml
var fixtures []byte

type MonthlyRevenue struct {
	Month   string `yaml:"month" json:"month"`
	Revenue int    `yaml:"revenue" json:"revenue"`
	Orders  int    `yaml:"orders" json:"orders"`
}

type Analytics struct {
	TotalRevenue      int              `yaml:"totalRevenue" json:"totalRevenue"`
	TotalCustomers    int              `yaml:"totalCustomers" json:"totalCustomers"`
	AverageOrderValue float64          `yaml:"averageOrderValue" json:"averageOrderValue"`
	CustomerRetention float64          `yaml:"customerRetention" json:"customerRetention"`
	ConversionRate    float64          `yaml:"conversionRate" json:"conversionRate"`
	EngagementRate    float64          `yaml:"engagementRate" json:"engagementRate"`
	RevenueData       []MonthlyRevenue `yaml:"revenueData" json:"revenueData"`
	TopProducts       []any            `yaml:"topProducts" json:"topProducts"`
	CustomerSegments  []any            `yaml:"customerSegments" json:"customerSegments"`
}

type Campaign struct {
	ID            string `yaml:"id" json:"id"`
	Name          string `yaml:"name" json:"name"`
	Type          string `yaml:"type" json:"type"`
	Status        string `yaml:"status" json:"status"`
	Audience      string `yaml:"audience" json:"audience"`
	Subject       string `yaml:"subject" json:"subject,omitempty"`
	Content       string `yaml:"content" json:"content,omitempty"`
	Sent          int    `yaml:"sent" json:"sent"`
	Opened        int    `yaml:"opened" json:"opened"`
	Clicked       int    `yaml:"clicked" json:"clicked"`
	Converted     int    `yaml:"converted" json:"converted"`
	CreatedDate   string `yaml:"createdDate" json:"createdDate"`
	ScheduledDate string `yaml:"scheduledDate" json:"scheduledDate,omitempty"`
}

type Customer struct {
	ID         string  `yaml:"id" json:"id"`
	Name       string  `yaml:"name" json:"name"`
	Email      string  `yaml:"email" json:"email"`
	JoinDate   string  `yaml:"joinDate" json:"joinDate"`
	DollsOwned int     `yaml:"dollsOwned" json:"dollsOwned"`
	Engagement int     `yaml:"engagement" json:"engagement"`
	LastActive string  `yaml:"lastActive" json:"lastActive"`
	Tier       string  `yaml:"tier" json:"tier"`
	TotalSpent float64 `yaml:"totalSpent" json:"totalSpent"`
}

type Profile struct {
	ID            string  `yaml:"-" json:"id"`
	Name          string  `yaml:"name" json:"name"`
	Logo          string  `yaml:"logo" json:"logo"`
	Description   string  `yaml:"description" json:"description"`
	Website       string  `yaml:"website" json:"website"`
	Founded       string  `yaml:"founded" json:"founded"`
	Headquarters  string  `yaml:"headquarters" json:"headquarters"`
	Specialty     string  `yaml:"specialty" json:"specialty"`
	CustomerBase  int     `yaml:"customerBase" json:"customerBase"`
	DollsLaunched int     `yaml:"dollsLaunched" json:"dollsLaunched"`
	Rating        float64 `yaml:"rating" json:"rating"`
	Verified      bool    `yaml:"verified" json:"verified"`
	Tier          string  `yaml:"tier" json:"tier"`
}

type Partnership struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Status      string `yaml:"status" json:"status"`
	StartDate   string `yaml:"startDate" json:"startDate"`
	Value       int    `yaml:"value" json:"value"`
	Description string `yaml:"description" json:"description"`
}

type FeaturedBrand struct {
	ID          string  `yaml:"id" json:"id"`
	Name        string  `yaml:"name" json:"name"`
	Logo        string  `yaml:"logo" json:"logo"`
	Specialty   string  `yaml:"specialty" json:"specialty"`
	Rating      float64 `yaml:"rating" json:"rating"`
	Customers   string  `yaml:"customers" json:"customers"`
	Verified    bool    `yaml:"verified" json:"verified"`
	Tier        string  `yaml:"tier" json:"tier"`
	Dolls       int     `yaml:"dolls" json:"dolls"`
	Description string  `yaml:"description" json:"description"`
}

type NewCampaign struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Audience      string `json:"audience"`
	Subject       string `json:"subject"`
	Content       string `json:"content"`
	ScheduledDate string `json:"scheduledDate"`
}

// Catalog is the same for every brand id. Accessors return copies.
type Catalog struct {
	data struct {
		Analytics    Analytics       `yaml:"analytics"`
		Campaigns    []Campaign      `yaml:"campaigns"`
		Customers    []Customer      `yaml:"customers"`
		Profile      Profile         `yaml:"profile"`
		Partnerships []Partnership   `yaml:"partnerships"`
		Featured     []FeaturedBrand `yaml:"featured"`
	}
	now   func() time.Time
	newID func() string
}

// Load parses the embedded fixture.
func Load() (*Catalog, error) {
	return Parse(fixtures)
}

func Parse(raw []byte) (*Catalog, error) {
	c := &Catalog{now: time.Now, newID: uuid.NewString}
	if err := yaml.Unmarshal(raw, &c.data); err != nil {
		return nil, fmt.Errorf("parse brand fixtures: %w", err)
	}
	if c.data.Analytics.TopProducts == nil {
		c.data.Analytics.TopProducts = []any{}
	}
	if c.data.Analytics.CustomerSegments == nil {
		c.data.Analytics.CustomerSegments = []any{}
	}
	return c, nil
}

func (c *Catalog) Analytics() Analytics {
	a := c.data.Analytics
	a.RevenueData = append([]MonthlyRevenue(nil), a.RevenueData...)
	return a
}

func (c *Catalog) Campaigns() []Campaign {
	return append([]Campaign{}, c.data.Campaigns...)
}

func (c *Catalog) Customers() []Customer {
	return append([]Customer{}, c.data.Customers...)
}

// Profile reports the fixture profile under the requested brand id.
func (c *Catalog) Profile(brandID string) Profile {
	p := c.data.Profile
	p.ID = brandID
	return p
}

func (c *Catalog) Partnerships() []Partnership {
	return append([]Partnership{}, c.data.Partnerships...)
}

func (c *Catalog) Featured() []FeaturedBrand {
	return append([]FeaturedBrand{}, c.data.Featured...)
}

// CreateCampaign builds the campaign a brand asked for. Nothing is stored.
func (c *Catalog) CreateCampaign(in NewCampaign) Campaign {
	status := "draft"
	if in.ScheduledDate != "" {
		status = "scheduled"
	}
	return Campaign{
		ID:            c.newID(),
		Name:          in.Name,
		Type:          in.Type,
		Status:        status,
		Audience:      in.Audience,
		Subject:       in.Subject,
		Content:       in.Content,
		CreatedDate:   c.now().UTC().Format(time.DateOnly),
		ScheduledDate: in.ScheduledDate,
	}
}
