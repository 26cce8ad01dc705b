package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/petermazzocco/go-doll-studio/internal/activities"
	"github.com/petermazzocco/go-doll-studio/internal/ai"
	"github.com/petermazzocco/go-doll-studio/internal/brand"
	"github.com/petermazzocco/go-doll-studio/internal/config"
	"github.com/petermazzocco/go-doll-studio/internal/database"
	"github.com/petermazzocco/go-doll-studio/internal/dolls"
	"github.com/petermazzocco/go-doll-studio/internal/handlers"
	"github.com/petermazzocco/go-doll-studio/internal/logger"
	"github.com/petermazzocco/go-doll-studio/internal/media"
	"github.com/petermazzocco/go-doll-studio/internal/metrics"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	lg, err := logger.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := run(cfg, lg); err != nil {
		lg.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, lg *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database connection
	db, err := database.Open(cfg.DBDriver, cfg.DBPath, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			lg.Error("error closing database", zap.Error(err))
			return
		}
		lg.Info("database connection closed")
	}()

	// Media store
	var (
		store media.Store
		files http.Handler
	)
	switch cfg.MediaBackend {
	case "s3":
		client, err := media.NewS3Client(ctx, media.S3Config{
			AccountID:       cfg.S3AccountID,
			AccessKeyID:     cfg.S3AccessKeyID,
			AccessKeySecret: cfg.S3AccessKeySecret,
			Region:          cfg.S3Region,
		})
		if err != nil {
			return fmt.Errorf("configure object storage: %w", err)
		}
		store = media.NewS3Store(client, cfg.S3Bucket, cfg.S3PublicURL)
	default:
		disk, err := media.NewDiskStore(cfg.UploadsDir, cfg.PublicBaseURL+"/uploads")
		if err != nil {
			return fmt.Errorf("prepare uploads dir: %w", err)
		}
		store, files = disk, disk.Handler()
		lg.Info("serving uploads from disk", zap.String("dir", disk.Root()))
	}

	downloads := resty.New().
		SetTimeout(cfg.VideoDownloadTimeout).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)
	dollSvc := dolls.NewService(db, store, lg.Named("dolls"),
		dolls.WithMaxStickers(cfg.MaxStickers),
		dolls.WithHTTPClient(downloads),
	)

	// AI services
	chat := ai.NewChatClient(ai.ChatConfig{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
	}, lg.Named("chat"))

	speakers := []ai.Speaker{ai.NewElevenLabsSpeaker(ai.ElevenLabsConfig{
		APIKey:  cfg.ElevenLabsAPIKey,
		VoiceID: cfg.ElevenLabsVoiceID,
		BaseURL: cfg.ElevenLabsBaseURL,
	})}
	if tts := ai.NewOpenAISpeaker(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAITTSVoice); tts != nil {
		speakers = append(speakers, tts)
	}
	speech := ai.NewSpeechChain(lg.Named("speech"), speakers...)

	renderer := ai.NewCreatomateClient(ai.CreatomateConfig{
		APIKey:     cfg.CreatomateAPIKey,
		TemplateID: cfg.CreatomateTemplateID,
		BaseURL:    cfg.CreatomateBaseURL,
	})
	acts := activities.NewService(dollSvc, renderer, activities.Config{
		PollInterval:    cfg.RenderPollInterval,
		MaxAttempts:     cfg.RenderMaxAttempts,
		CacheSize:       cfg.RenderCacheSize,
		CacheTTL:        cfg.RenderCacheTTL,
		DownloadTimeout: cfg.VideoDownloadTimeout,
	}, lg.Named("activities"), activities.WithOutcomeObserver(func(s ai.PollState) {
		metrics.RecordRender(string(s))
	}))
	defer acts.Close()

	catalog, err := brand.Load()
	if err != nil {
		return err
	}

	router := handlers.NewRouter(handlers.Deps{
		DB:          db,
		Dolls:       dollSvc,
		Activities:  acts,
		Chat:        chat,
		Speech:      speech,
		Brands:      catalog,
		Files:       files,
		Log:         lg.Named("http"),
		CORSOrigins: cfg.CORSOrigins,
		RateLimit:   cfg.RateLimit,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		lg.Info("starting API server", zap.String("addr", srv.Addr), zap.String("media", cfg.MediaBackend), zap.String("db", cfg.DBDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	lg.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
