package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/petermazzocco/go-doll-studio/internal/brand"
	"go.uber.org/zap"
)

// Brand routes serve the same fixture for every brand id.

func FeaturedBrandsHandler(w http.ResponseWriter, _ *http.Request, c *brand.Catalog) {
	writeJSON(w, http.StatusOK, c.Featured())
}

func BrandAnalyticsHandler(w http.ResponseWriter, _ *http.Request, c *brand.Catalog) {
	writeJSON(w, http.StatusOK, c.Analytics())
}

func BrandCampaignsHandler(w http.ResponseWriter, _ *http.Request, c *brand.Catalog) {
	writeJSON(w, http.StatusOK, c.Campaigns())
}

type campaignRequest struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Audience      string `json:"audience"`
	Subject       string `json:"subject"`
	Content       string `json:"content"`
	ScheduledDate string `json:"scheduledDate" validate:"omitempty,datetime=2006-01-02"`
}

func CreateCampaignHandler(w http.ResponseWriter, r *http.Request, c *brand.Catalog, log *zap.Logger) {
	var req campaignRequest
	if !decodeJSON(w, r, &req, "Invalid campaign") {
		return
	}

	campaign := c.CreateCampaign(brand.NewCampaign(req))
	log.Info("campaign created", zap.String("brand_id", chi.URLParam(r, "brandId")), zap.String("campaign_id", campaign.ID), zap.String("status", campaign.Status))
	writeJSON(w, http.StatusCreated, campaign)
}

func BrandCustomersHandler(w http.ResponseWriter, _ *http.Request, c *brand.Catalog) {
	writeJSON(w, http.StatusOK, c.Customers())
}

func BrandProfileHandler(w http.ResponseWriter, r *http.Request, c *brand.Catalog) {
	writeJSON(w, http.StatusOK, c.Profile(chi.URLParam(r, "brandId")))
}

type profileUpdateResponse struct {
	Message string         `json:"message"`
	Updates map[string]any `json:"updates"`
}

// UpdateBrandProfileHandler echoes the update; the catalog stays as it is.
func UpdateBrandProfileHandler(w http.ResponseWriter, r *http.Request, log *zap.Logger) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	updates := map[string]any{}
	if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid profile update")
		return
	}
	log.Info("brand profile update received", zap.String("brand_id", chi.URLParam(r, "brandId")), zap.Int("fields", len(updates)))
	writeJSON(w, http.StatusOK, profileUpdateResponse{Message: "Profile updated successfully", Updates: updates})
}

func BrandPartnershipsHandler(w http.ResponseWriter, _ *http.Request, c *brand.Catalog) {
	writeJSON(w, http.StatusOK, c.Partnerships())
}
