package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the service's collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "doll_studio",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doll_studio",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "doll_studio",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"method", "route"},
	)

	renderOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doll_studio",
			Subsystem: "renders",
			Name:      "finished_total",
			Help:      "Activity video render jobs by final state.",
		},
		[]string{"state"},
	)

	chatReplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doll_studio",
			Subsystem: "chat",
			Name:      "replies_total",
			Help:      "Chat replies by source.",
		},
		[]string{"source"},
	)

	speechResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "doll_studio",
			Subsystem: "speech",
			Name:      "results_total",
			Help:      "Speech requests by the provider that answered.",
		},
		[]string{"provider"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		renderOutcomes,
		chatReplies,
		speechResults,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// Instrument records request metrics labeled by the matched chi route.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func RecordRender(state string) {
	renderOutcomes.WithLabelValues(state).Inc()
}

func RecordChat(fallback bool) {
	source := "model"
	if fallback {
		source = "fallback"
	}
	chatReplies.WithLabelValues(source).Inc()
}

// RecordSpeech takes "local" when the client has to synthesize itself.
func RecordSpeech(provider string) {
	speechResults.WithLabelValues(provider).Inc()
}
