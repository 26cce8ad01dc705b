package dolls

import (
	"time"

	"github.com/petermazzocco/go-doll-studio/internal/media"
	"github.com/petermazzocco/go-doll-studio/models"
)

type DollView struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Story            string            `json:"story"`
	Brand            string            `json:"brand"`
	PurchaseLocation string            `json:"purchaseLocation"`
	Email            string            `json:"email"`
	ModelURL         string            `json:"modelUrl"`
	Stickers         []StickerView     `json:"stickers"`
	VoiceProfile     *VoiceProfileView `json:"voiceProfile,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
}

type StickerView struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Position [3]float64 `json:"position"`
}

type VoiceProfileView struct {
	PersonalityTraits []string `json:"personalityTraits"`
	APIKey            string   `json:"apiKey,omitempty"`
	AudioURL          string   `json:"audioUrl,omitempty"`
}

// Persona is what the conversation features need to know about a doll.
type Persona struct {
	DollID string
	Name   string
	Traits []string
	APIKey string
}

type CachedVideo struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
}

func stickerView(s models.Sticker) StickerView {
	return StickerView{ID: s.ID, Type: s.Type, Position: s.Position()}
}

func dollView(d models.Doll, store media.Store) DollView {
	v := DollView{
		ID:               d.ID,
		Name:             d.Name,
		Story:            d.Story,
		Brand:            d.Brand,
		PurchaseLocation: d.PurchaseLocation,
		Email:            d.Email,
		ModelURL:         store.URL(d.ModelFilename),
		Stickers:         make([]StickerView, 0, len(d.Stickers)),
		CreatedAt:        d.CreatedAt,
	}
	for _, s := range d.Stickers {
		v.Stickers = append(v.Stickers, stickerView(s))
	}
	return v
}

func voiceProfileView(p models.VoiceProfile, store media.Store) *VoiceProfileView {
	traits, _ := ParseTraits(p.PersonalityTraits)
	v := &VoiceProfileView{PersonalityTraits: traits, APIKey: p.APIKey}
	if p.AudioFilename != nil && *p.AudioFilename != "" {
		v.AudioURL = store.URL(*p.AudioFilename)
	}
	return v
}
