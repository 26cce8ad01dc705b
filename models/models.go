package models

import (
	"time"
)

type Doll struct {
	ID               string    `gorm:"primaryKey;size:36"`
	CreatedAt        time.Time `gorm:"index"`
	UpdatedAt        time.Time
	Name             string `gorm:"size:255;not null"`
	Story            string `gorm:"type:text"`
	Brand            string `gorm:"size:255"`
	PurchaseLocation string `gorm:"size:255"`
	Email            string `gorm:"size:255"`
	ModelFilename    string `gorm:"size:512;not null"`

	Stickers     []Sticker     `gorm:"foreignKey:DollID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	VoiceProfile *VoiceProfile `gorm:"foreignKey:DollID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

type Sticker struct {
	ID        string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
	DollID    string  `gorm:"size:36;not null;index"`
	Type      string  `gorm:"size:64;not null"`
	PositionX float64 `gorm:"not null"`
	PositionY float64 `gorm:"not null"`
	PositionZ float64 `gorm:"not null"`
}

// VoiceProfile is one-to-one with Doll; the unique index on DollID is what
// turns a second save into an update.
type VoiceProfile struct {
	ID        string `gorm:"primaryKey;size:36"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DollID    string `gorm:"size:36;not null;uniqueIndex"`
	// AudioFilename is nil when traits were saved without a recording.
	AudioFilename     *string `gorm:"size:512"`
	PersonalityTraits string  `gorm:"type:text"`
	APIKey            string  `gorm:"size:512"`
}

func (s Sticker) Position() [3]float64 {
	return [3]float64{s.PositionX, s.PositionY, s.PositionZ}
}
