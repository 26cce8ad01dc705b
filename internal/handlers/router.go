package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/petermazzocco/go-doll-studio/internal/activities"
	"github.com/petermazzocco/go-doll-studio/internal/ai"
	"github.com/petermazzocco/go-doll-studio/internal/brand"
	"github.com/petermazzocco/go-doll-studio/internal/database"
	"github.com/petermazzocco/go-doll-studio/internal/dolls"
	"github.com/petermazzocco/go-doll-studio/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Deps struct {
	DB         *gorm.DB
	Dolls      *dolls.Service
	Activities *activities.Service
	Chat       *ai.ChatClient
	Speech     *ai.SpeechChain
	Brands     *brand.Catalog
	// Files serves /uploads; nil when assets live in object storage.
	Files http.Handler
	Log   *zap.Logger

	CORSOrigins []string
	// RateLimit is requests per minute per client and endpoint; zero disables it.
	RateLimit int
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.Instrument)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := database.Ping(d.DB); err != nil {
			d.Log.Error("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	if d.Files != nil {
		r.Handle("/uploads/*", http.StripPrefix("/uploads", d.Files))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: d.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Speech-Provider"},
			MaxAge:         300,
		}))
		if d.RateLimit > 0 {
			r.Use(httprate.Limit(
				d.RateLimit,
				1*time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
			))
		}

		r.Route("/dolls", func(r chi.Router) {
			r.Post("/", func(w http.ResponseWriter, r *http.Request) {
				CreateDollHandler(w, r, d.Dolls)
			})
			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				ListDollsHandler(w, r, d.Dolls)
			})

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", func(w http.ResponseWriter, r *http.Request) {
					GetDollHandler(w, r, d.Dolls)
				})
				r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
					DeleteDollHandler(w, r, d.Dolls)
				})
				r.Post("/stickers", func(w http.ResponseWriter, r *http.Request) {
					AddStickerHandler(w, r, d.Dolls)
				})
				r.Delete("/stickers/{stickerId}", func(w http.ResponseWriter, r *http.Request) {
					RemoveStickerHandler(w, r, d.Dolls)
				})
				r.Post("/voice", func(w http.ResponseWriter, r *http.Request) {
					SaveVoiceHandler(w, r, d.Dolls)
				})
				r.Post("/chat", func(w http.ResponseWriter, r *http.Request) {
					ChatHandler(w, r, d.Dolls, d.Chat)
				})
				r.Post("/speech", func(w http.ResponseWriter, r *http.Request) {
					SpeechHandler(w, r, d.Dolls, d.Speech)
				})

				r.Get("/activities", func(w http.ResponseWriter, r *http.Request) {
					TodayActivitiesHandler(w, r, d.Activities)
				})
				r.Route("/activities/{activityId}/video", func(r chi.Router) {
					r.Post("/", func(w http.ResponseWriter, r *http.Request) {
						StartVideoHandler(w, r, d.Activities)
					})
					r.Get("/", func(w http.ResponseWriter, r *http.Request) {
						GetVideoHandler(w, r, d.Activities)
					})
					r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
						CancelVideoHandler(w, r, d.Activities)
					})
				})
			})
		})

		r.Post("/download-video", func(w http.ResponseWriter, r *http.Request) {
			DownloadVideoHandler(w, r, d.Dolls)
		})

		r.Route("/brands", func(r chi.Router) {
			r.Get("/featured", func(w http.ResponseWriter, r *http.Request) {
				FeaturedBrandsHandler(w, r, d.Brands)
			})
			r.Route("/{brandId}", func(r chi.Router) {
				r.Get("/analytics", func(w http.ResponseWriter, r *http.Request) {
					BrandAnalyticsHandler(w, r, d.Brands)
				})
				r.Get("/campaigns", func(w http.ResponseWriter, r *http.Request) {
					BrandCampaignsHandler(w, r, d.Brands)
				})
				r.Post("/campaigns", func(w http.ResponseWriter, r *http.Request) {
					CreateCampaignHandler(w, r, d.Brands, d.Log)
				})
				r.Get("/customers", func(w http.ResponseWriter, r *http.Request) {
					BrandCustomersHandler(w, r, d.Brands)
				})
				r.Get("/profile", func(w http.ResponseWriter, r *http.Request) {
					BrandProfileHandler(w, r, d.Brands)
				})
				r.Put("/profile", func(w http.ResponseWriter, r *http.Request) {
					UpdateBrandProfileHandler(w, r, d.Log)
				})
				r.Get("/partnerships", func(w http.ResponseWriter, r *http.Request) {
					BrandPartnershipsHandler(w, r, d.Brands)
				})
			})
		})
	})

	return r
}
