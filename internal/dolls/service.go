package dolls

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/petermazzocco/go-doll-studio/internal/database"
	"github.com/petermazzocco/go-doll-studio/internal/media"
	"github.com/petermazzocco/go-doll-studio/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultMaxStickers is the per-doll sticker cap the viewer was built around.
const DefaultMaxStickers = 3

// Service keeps the record store and the media store consistent. It is safe
// for concurrent use; it holds no per-doll state between calls.
type Service struct {
	db          *gorm.DB
	media       media.Store
	log         *zap.Logger
	http        *resty.Client
	maxStickers int
	now         func() time.Time
	newID       func() string
}

type Option func(*Service)

// WithMaxStickers sets the per-doll cap. Zero disables it.
func WithMaxStickers(n int) Option {
	return func(s *Service) { s.maxStickers = n }
}

func WithHTTPClient(c *resty.Client) Option {
	return func(s *Service) { s.http = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(db *gorm.DB, store media.Store, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		db:          db,
		media:       store,
		log:         log,
		maxStickers: DefaultMaxStickers,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.http == nil {
		s.http = resty.New().SetTimeout(2 * time.Minute).SetRetryCount(2)
	}
	return s
}

// Upload is a file received from a client.
type Upload struct {
	Reader   io.Reader
	Filename string
}

type CreateDollInput struct {
	Name             string
	Story            string
	Brand            string
	PurchaseLocation string
	Email            string
	Model            *Upload
}

// CreateDoll stores the model asset and then inserts the row, so the model
// URL resolves by the time the doll is readable.
func (s *Service) CreateDoll(ctx context.Context, in CreateDollInput) (DollView, error) {
	if in.Model == nil || strings.TrimSpace(in.Name) == "" {
		return DollView{}, validationError("Model file and doll name are required")
	}

	name, err := s.media.Save(ctx, in.Model.Reader, in.Model.Filename, media.Model)
	if err != nil {
		return DollView{}, s.mediaError(err, "Failed to store model file")
	}

	now := s.now()
	doll := models.Doll{
		ID:               s.newID(),
		CreatedAt:        now,
		UpdatedAt:        now,
		Name:             strings.TrimSpace(in.Name),
		Story:            in.Story,
		Brand:            in.Brand,
		PurchaseLocation: in.PurchaseLocation,
		Email:            in.Email,
		ModelFilename:    name,
	}
	if err := s.db.WithContext(ctx).Create(&doll).Error; err != nil {
		s.log.Error("failed to insert doll", zap.String("model_filename", name), zap.Error(err))
		s.cleanup(ctx, "doll insert failed", name)
		return DollView{}, storageError("Failed to save doll data", err)
	}

	s.log.Info("doll created", zap.String("doll_id", doll.ID), zap.String("model_filename", name))
	return dollView(doll, s.media), nil
}

// ListDolls returns every doll newest first with stickers but without the
// voice profile.
func (s *Service) ListDolls(ctx context.Context) ([]DollView, error) {
	var rows []models.Doll
	err := s.db.WithContext(ctx).
		Preload("Stickers", orderStickers).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		s.log.Error("failed to list dolls", zap.Error(err))
		return nil, storageError("Failed to fetch dolls", err)
	}

	out := make([]DollView, 0, len(rows))
	for _, d := range rows {
		out = append(out, dollView(d, s.media))
	}
	return out, nil
}

func (s *Service) GetDoll(ctx context.Context, id string) (DollView, error) {
	doll, err := s.findDoll(ctx, id, true)
	if err != nil {
		return DollView{}, err
	}
	v := dollView(doll, s.media)
	if doll.VoiceProfile != nil {
		v.VoiceProfile = voiceProfileView(*doll.VoiceProfile, s.media)
	}
	return v, nil
}

// Persona loads the name and traits the chat and speech features speak with.
func (s *Service) Persona(ctx context.Context, id string) (Persona, error) {
	doll, err := s.findDoll(ctx, id, false)
	if err != nil {
		return Persona{}, err
	}
	p := Persona{DollID: doll.ID, Name: doll.Name, Traits: []string{}}
	if doll.VoiceProfile != nil {
		p.Traits, _ = ParseTraits(doll.VoiceProfile.PersonalityTraits)
		p.APIKey = doll.VoiceProfile.APIKey
	}
	return p, nil
}

type StickerInput struct {
	Type     string
	Position []float64
}

// AddSticker does not look the doll up first; the foreign key rejects
// unknown ids and that rejection is reported as ErrNotFound.
func (s *Service) AddSticker(ctx context.Context, dollID string, in StickerInput) (StickerView, error) {
	in.Type = strings.TrimSpace(in.Type)
	if in.Type == "" || len(in.Position) != 3 {
		return StickerView{}, validationError("Type and position [x, y, z] are required")
	}

	sticker := models.Sticker{
		ID:        s.newID(),
		CreatedAt: s.now(),
		DollID:    dollID,
		Type:      in.Type,
		PositionX: in.Position[0],
		PositionY: in.Position[1],
		PositionZ: in.Position[2],
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.maxStickers > 0 {
			var count int64
			if err := tx.Model(&models.Sticker{}).Where("doll_id = ?", dollID).Count(&count).Error; err != nil {
				return err
			}
			if count >= int64(s.maxStickers) {
				return validationError(fmt.Sprintf("A doll can have at most %d stickers", s.maxStickers))
			}
		}
		return tx.Create(&sticker).Error
	})
	if err != nil {
		var de *Error
		switch {
		case errors.As(err, &de):
			return StickerView{}, err
		case database.IsForeignKeyViolation(err):
			return StickerView{}, notFoundError("Doll not found")
		default:
			s.log.Error("failed to add sticker", zap.String("doll_id", dollID), zap.Error(err))
			return StickerView{}, storageError("Failed to add sticker", err)
		}
	}
	return stickerView(sticker), nil
}

// RemoveSticker deletes by sticker id alone; the doll id is not cross-checked.
func (s *Service) RemoveSticker(ctx context.Context, dollID, stickerID string) error {
	res := s.db.WithContext(ctx).Delete(&models.Sticker{}, "id = ?", stickerID)
	if res.Error != nil {
		s.log.Error("failed to remove sticker", zap.String("doll_id", dollID), zap.String("sticker_id", stickerID), zap.Error(res.Error))
		return storageError("Failed to remove sticker", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFoundError("Sticker not found")
	}
	return nil
}

type VoiceInput struct {
	// Traits wins over RawTraits when non-nil.
	Traits    []string
	RawTraits string
	Audio     *Upload
	APIKey    string
}

// SaveVoiceProfile upserts on doll_id; a second save replaces every field of
// the first. The replaced recording is removed afterwards on a best-effort basis.
func (s *Service) SaveVoiceProfile(ctx context.Context, dollID string, in VoiceInput) error {
	traits := in.Traits
	if traits == nil {
		var ok bool
		traits, ok = ParseTraits(in.RawTraits)
		if !ok {
			s.log.Warn("malformed personality traits, saving empty list",
				zap.String("doll_id", dollID), zap.String("raw", in.RawTraits))
		}
	}

	var audio *string
	if in.Audio != nil {
		name, err := s.media.Save(ctx, in.Audio.Reader, in.Audio.Filename, media.Audio)
		if err != nil {
			return s.mediaError(err, "Failed to store audio file")
		}
		audio = &name
	}

	var previous models.VoiceProfile
	hadPrevious := s.db.WithContext(ctx).Where("doll_id = ?", dollID).Take(&previous).Error == nil

	now := s.now()
	profile := models.VoiceProfile{
		ID:                s.newID(),
		CreatedAt:         now,
		UpdatedAt:         now,
		DollID:            dollID,
		AudioFilename:     audio,
		PersonalityTraits: encodeTraits(traits),
		APIKey:            in.APIKey,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "doll_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"audio_filename", "personality_traits", "api_key", "updated_at"}),
	}).Create(&profile).Error
	if err != nil {
		if audio != nil {
			s.cleanup(ctx, "voice profile save failed", *audio)
		}
		if database.IsForeignKeyViolation(err) {
			return notFoundError("Doll not found")
		}
		s.log.Error("failed to save voice profile", zap.String("doll_id", dollID), zap.Error(err))
		return storageError("Failed to save voice profile", err)
	}

	if hadPrevious && previous.AudioFilename != nil && (audio == nil || *previous.AudioFilename != *audio) {
		s.cleanup(ctx, "voice recording replaced", *previous.AudioFilename)
	}
	s.log.Info("voice profile saved", zap.String("doll_id", dollID), zap.Int("traits", len(traits)), zap.Bool("audio", audio != nil))
	return nil
}

// DeleteDoll removes the row first; that is the success criterion. The
// cascade takes stickers and the voice profile with it. Asset removal
// afterwards is advisory.
func (s *Service) DeleteDoll(ctx context.Context, id string) error {
	doll, err := s.findDoll(ctx, id, false)
	if err != nil {
		return err
	}

	res := s.db.WithContext(ctx).Delete(&models.Doll{}, "id = ?", id)
	if res.Error != nil {
		s.log.Error("failed to delete doll", zap.String("doll_id", id), zap.Error(res.Error))
		return storageError("Failed to delete doll", res.Error)
	}
	if res.RowsAffected == 0 {
		return notFoundError("Doll not found")
	}

	assets := []string{doll.ModelFilename}
	if doll.VoiceProfile != nil && doll.VoiceProfile.AudioFilename != nil {
		assets = append(assets, *doll.VoiceProfile.AudioFilename)
	}
	s.cleanup(ctx, "doll deleted", assets...)

	s.log.Info("doll deleted", zap.String("doll_id", id))
	return nil
}

func (s *Service) findDoll(ctx context.Context, id string, withStickers bool) (models.Doll, error) {
	q := s.db.WithContext(ctx).Preload("VoiceProfile")
	if withStickers {
		q = q.Preload("Stickers", orderStickers)
	}

	var doll models.Doll
	if err := q.Where("id = ?", id).Take(&doll).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Doll{}, notFoundError("Doll not found")
		}
		s.log.Error("failed to fetch doll", zap.String("doll_id", id), zap.Error(err))
		return models.Doll{}, storageError("Failed to fetch doll", err)
	}
	return doll, nil
}

// cleanup removes assets without ever failing the calling operation.
func (s *Service) cleanup(ctx context.Context, reason string, names ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, name := range names {
		if name == "" {
			continue
		}
		if err := s.media.Remove(ctx, name); err != nil {
			s.log.Warn("could not remove asset", zap.String("reason", reason), zap.String("file", name), zap.Error(err))
			continue
		}
		s.log.Debug("removed asset", zap.String("reason", reason), zap.String("file", name))
	}
}

func (s *Service) mediaError(err error, msg string) error {
	switch {
	case errors.Is(err, media.ErrUnsupportedType), errors.Is(err, media.ErrTooLarge):
		return validationError(capitalize(err.Error()))
	case errors.Is(err, media.ErrInvalidName):
		return validationError("Invalid file name")
	default:
		s.log.Error(strings.ToLower(msg), zap.Error(err))
		return storageError(msg, err)
	}
}

func orderStickers(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
