package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is read from DOLL_* environment variables, optionally seeded from a .env file.
type Config struct {
	Port          int    `envconfig:"PORT" default:"3001"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:3001"`
	UploadsDir    string `envconfig:"UPLOADS_DIR" default:"./uploads"`

	DBDriver string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBPath   string `envconfig:"DB_PATH" default:"./dolls.db"`
	DBDSN    string `envconfig:"DB_DSN"`

	MediaBackend      string `envconfig:"MEDIA_BACKEND" default:"disk"`
	S3Bucket          string `envconfig:"S3_BUCKET"`
	S3AccountID       string `envconfig:"S3_ACCOUNT_ID"`
	S3AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID"`
	S3AccessKeySecret string `envconfig:"S3_ACCESS_KEY_SECRET"`
	S3PublicURL       string `envconfig:"S3_PUBLIC_URL"`
	S3Region          string `envconfig:"S3_REGION" default:"auto"`

	CORSOrigins []string `envconfig:"CORS_ORIGINS" default:"http://localhost:8080,http://localhost:8081,http://localhost:8082"`
	RateLimit   int      `envconfig:"RATE_LIMIT" default:"120"`
	MaxStickers int      `envconfig:"MAX_STICKERS" default:"3"`

	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel    string `envconfig:"OPENAI_MODEL" default:"gpt-3.5-turbo"`
	OpenAIBaseURL  string `envconfig:"OPENAI_BASE_URL"`
	OpenAITTSVoice string `envconfig:"OPENAI_TTS_VOICE" default:"nova"`

	ElevenLabsAPIKey  string `envconfig:"ELEVENLABS_API_KEY"`
	ElevenLabsVoiceID string `envconfig:"ELEVENLABS_VOICE_ID"`
	ElevenLabsBaseURL string `envconfig:"ELEVENLABS_BASE_URL" default:"https://api.elevenlabs.io"`

	CreatomateAPIKey     string `envconfig:"CREATOMATE_API_KEY"`
	CreatomateTemplateID string `envconfig:"CREATOMATE_TEMPLATE_ID"`
	CreatomateBaseURL    string `envconfig:"CREATOMATE_BASE_URL" default:"https://api.creatomate.com"`

	RenderPollInterval   time.Duration `envconfig:"RENDER_POLL_INTERVAL" default:"10s"`
	RenderMaxAttempts    int           `envconfig:"RENDER_MAX_ATTEMPTS" default:"30"`
	RenderCacheSize      int           `envconfig:"RENDER_CACHE_SIZE" default:"256"`
	RenderCacheTTL       time.Duration `envconfig:"RENDER_CACHE_TTL" default:"24h"`
	VideoDownloadTimeout time.Duration `envconfig:"VIDEO_DOWNLOAD_TIMEOUT" default:"2m"`

	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
}

const envPrefix = "DOLL"

// Load reads the optional env file and then the process environment.
// A missing env file is not an error.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "sqlite":
		if c.DBPath == "" {
			return errors.New("DOLL_DB_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.DBDSN == "" {
			return errors.New("DOLL_DB_DSN is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DOLL_DB_DRIVER %q", c.DBDriver)
	}

	switch c.MediaBackend {
	case "disk":
		if c.UploadsDir == "" {
			return errors.New("DOLL_UPLOADS_DIR is required for the disk media backend")
		}
	case "s3":
		if c.S3Bucket == "" || c.S3PublicURL == "" {
			return errors.New("DOLL_S3_BUCKET and DOLL_S3_PUBLIC_URL are required for the s3 media backend")
		}
	default:
		return fmt.Errorf("unsupported DOLL_MEDIA_BACKEND %q", c.MediaBackend)
	}

	if c.MaxStickers < 0 {
		return errors.New("DOLL_MAX_STICKERS must not be negative")
	}
	if c.RenderPollInterval <= 0 || c.RenderMaxAttempts <= 0 {
		return errors.New("render poll interval and max attempts must be positive")
	}
	if c.RenderCacheSize <= 0 {
		return errors.New("DOLL_RENDER_CACHE_SIZE must be positive")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
