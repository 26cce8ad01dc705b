package ai

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Speech is either synthesized audio or, when every provider failed, a
// signal that the client should use its own local synthesizer.
type Speech struct {
	Audio       []byte
	ContentType string
	Provider    string
	Local       bool
	Text        string
}

type SpeakOptions struct {
	// APIKey overrides the provider's configured key when set.
	APIKey string
}

type Speaker interface {
	Name() string
	Speak(ctx context.Context, text string, opts SpeakOptions) ([]byte, error)
}

// SpeechChain tries each speaker in order.
type SpeechChain struct {
	speakers []Speaker
	log      *zap.Logger
}

func NewSpeechChain(log *zap.Logger, speakers ...Speaker) *SpeechChain {
	return &SpeechChain{speakers: speakers, log: log}
}

func (c *SpeechChain) Speak(ctx context.Context, text string, opts SpeakOptions) Speech {
	for _, s := range c.speakers {
		audio, err := s.Speak(ctx, text, opts)
		if err != nil {
			c.log.Warn("speech provider failed", zap.String("provider", s.Name()), zap.Error(err))
			continue
		}
		return Speech{Audio: audio, ContentType: "audio/mpeg", Provider: s.Name(), Text: text}
	}
	return Speech{Local: true, Text: text}
}

type ElevenLabsConfig struct {
	APIKey  string
	VoiceID string
	BaseURL string
	ModelID string
}

type ElevenLabsSpeaker struct {
	client *resty.Client
	cfg    ElevenLabsConfig
}

type elevenLabsRequest struct {
	Text          string             `json:"text"`
	ModelID       string             `json:"model_id"`
	VoiceSettings elevenLabsSettings `json:"voice_settings"`
}

type elevenLabsSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

func NewElevenLabsSpeaker(cfg ElevenLabsConfig) *ElevenLabsSpeaker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.elevenlabs.io"
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_multilingual_v2"
	}
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "audio/mpeg").
		SetTimeout(30 * time.Second)
	return &ElevenLabsSpeaker{client: c, cfg: cfg}
}

func (s *ElevenLabsSpeaker) Name() string { return "elevenlabs" }

func (s *ElevenLabsSpeaker) Speak(ctx context.Context, text string, opts SpeakOptions) ([]byte, error) {
	key := s.cfg.APIKey
	if opts.APIKey != "" {
		key = opts.APIKey
	}
	if key == "" || s.cfg.VoiceID == "" {
		return nil, ErrNotConfigured
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("xi-api-key", key).
		SetPathParam("voiceID", s.cfg.VoiceID).
		SetBody(elevenLabsRequest{
			Text:    text,
			ModelID: s.cfg.ModelID,
			VoiceSettings: elevenLabsSettings{
				Stability:       0.5,
				SimilarityBoost: 0.5,
				Style:           0.2,
				UseSpeakerBoost: true,
			},
		}).
		Post("/v1/text-to-speech/{voiceID}")
	if err != nil {
		return nil, fmt.Errorf("%w: elevenlabs request: %v", ErrUpstream, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: elevenlabs status %d", ErrUpstream, resp.StatusCode())
	}
	if len(resp.Body()) == 0 {
		return nil, fmt.Errorf("%w: elevenlabs returned no audio", ErrUpstream)
	}
	return resp.Body(), nil
}

type OpenAISpeaker struct {
	client *openai.Client
	voice  string
}

// NewOpenAISpeaker returns nil when apiKey is empty.
func NewOpenAISpeaker(apiKey, baseURL, voice string) *OpenAISpeaker {
	if apiKey == "" {
		return nil
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if voice == "" {
		voice = string(openai.VoiceNova)
	}
	return &OpenAISpeaker{client: openai.NewClientWithConfig(cfg), voice: voice}
}

func (s *OpenAISpeaker) Name() string { return "openai" }

func (s *OpenAISpeaker) Speak(ctx context.Context, text string, _ SpeakOptions) ([]byte, error) {
	resp, err := s.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          openai.SpeechVoice(s.voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai speech: %v", ErrUpstream, err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: read openai speech: %v", ErrUpstream, err)
	}
	return audio, nil
}
