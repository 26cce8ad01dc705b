package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Creatomate render statuses.
const (
	RenderPlanned      = "planned"
	RenderWaiting      = "waiting"
	RenderTranscribing = "transcribing"
	RenderRendering    = "rendering"
	RenderProcessing   = "processing"
	RenderSucceeded    = "succeeded"
	RenderFailed       = "failed"
)

type Render struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	URL          string `json:"url,omitempty"`
	SnapshotURL  string `json:"snapshot_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (r Render) Done() bool {
	return r.Status == RenderSucceeded || r.Status == RenderFailed
}

// RenderRequest describes one activity video.
type RenderRequest struct {
	Title    string
	Subtitle string
	Emoji    string
	Time     string
}

// modifications fills every element name the template might use for a field.
func (r RenderRequest) modifications() map[string]string {
	m := make(map[string]string, 17)
	for _, k := range []string{"Text", "text", "title", "Title", "main-text"} {
		m[k] = r.Title
	}
	for _, k := range []string{"subtitle", "Subtitle", "description", "Description"} {
		m[k] = r.Subtitle
	}
	for _, k := range []string{"emoji", "Emoji", "icon", "Icon"} {
		m[k] = r.Emoji
	}
	for _, k := range []string{"time", "Time", "timestamp", "Timestamp"} {
		m[k] = r.Time
	}
	return m
}

type Renderer interface {
	Submit(ctx context.Context, req RenderRequest) (Render, error)
	Status(ctx context.Context, id string) (Render, error)
}

type CreatomateConfig struct {
	APIKey     string
	TemplateID string
	BaseURL    string
}

type CreatomateClient struct {
	client     *resty.Client
	apiKey     string
	templateID string
}

func NewCreatomateClient(cfg CreatomateConfig) *CreatomateClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.creatomate.com"
	}
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)
	return &CreatomateClient{client: c, apiKey: cfg.APIKey, templateID: cfg.TemplateID}
}

type submitBody struct {
	TemplateID    string            `json:"template_id"`
	OutputFormat  string            `json:"output_format"`
	FrameRate     int               `json:"frame_rate"`
	Modifications map[string]string `json:"modifications"`
}

func (c *CreatomateClient) Submit(ctx context.Context, req RenderRequest) (Render, error) {
	if c.templateID == "" || c.apiKey == "" {
		return Render{}, ErrNotConfigured
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(submitBody{
			TemplateID:    c.templateID,
			OutputFormat:  "mp4",
			FrameRate:     30,
			Modifications: req.modifications(),
		}).
		Post("/v1/renders")
	if err != nil {
		return Render{}, fmt.Errorf("%w: submit render: %v", ErrUpstream, err)
	}
	if resp.IsError() {
		return Render{}, fmt.Errorf("%w: submit render: status %d: %s", ErrUpstream, resp.StatusCode(), resp.String())
	}
	return decodeRender(resp.Body())
}

func (c *CreatomateClient) Status(ctx context.Context, id string) (Render, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Get("/v1/renders/{id}")
	if err != nil {
		return Render{}, fmt.Errorf("%w: render status: %v", ErrUpstream, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Render{}, fmt.Errorf("%w: render status: status %d", ErrUpstream, resp.StatusCode())
	}
	return decodeRender(resp.Body())
}

// decodeRender accepts either one render object or an array of them, in
// which case the first one wins.
func decodeRender(body []byte) (Render, error) {
	body = bytes.TrimSpace(body)
	var r Render
	if len(body) > 0 && body[0] == '[' {
		var list []Render
		if err := json.Unmarshal(body, &list); err != nil {
			return Render{}, fmt.Errorf("%w: decode render: %v", ErrUpstream, err)
		}
		if len(list) == 0 {
			return Render{}, fmt.Errorf("%w: no render data received", ErrUpstream)
		}
		r = list[0]
	} else if err := json.Unmarshal(body, &r); err != nil {
		return Render{}, fmt.Errorf("%w: decode render: %v", ErrUpstream, err)
	}
	if r.ID == "" {
		return Render{}, fmt.Errorf("%w: render has no id", ErrUpstream)
	}
	return r, nil
}
