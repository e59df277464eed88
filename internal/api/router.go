// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/eventscope/internal/middleware"
)

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	// SearchRateLimit caps search sessions per client IP per minute.
	SearchRateLimit int

	// AllowedOrigins for CORS; empty allows any origin.
	AllowedOrigins []string
}

// NewRouter assembles the chi router with the full middleware stack.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.SearchRateLimit <= 0 {
		cfg.SearchRateLimit = 30
	}
	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	// Global middleware, applied to every route in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.PrometheusMetrics)

		// Search fan-out is the expensive path; rate limit it harder
		r.With(httprate.LimitByIP(cfg.SearchRateLimit, time.Minute)).
			Get("/search/stream", h.SearchStream)

		r.With(httprate.LimitByIP(300, time.Minute)).Group(func(r chi.Router) {
			r.Get("/sources", h.Sources)
			r.Get("/cache/stats", h.CacheStats)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, ErrCodeNotFound, "endpoint not found")
	})

	return r
}
