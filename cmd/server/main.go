// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

// Package main is the entry point for the Eventscope server.
//
// Eventscope aggregates event listings from multiple upstream discovery
// APIs, normalizes and deduplicates them into canonical records, and
// streams results to clients progressively over a websocket as each
// source completes.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load from defaults, YAML file, and
//     environment variables (Koanf v2)
//  2. Source registry: one HTTP adapter per enabled upstream source
//  3. Health monitor: per-source EWMA latency and circuit breaking
//  4. Result cache: TTL cache keyed by normalized query terms
//  5. Stream dispatcher: per-session websocket fan-out
//  6. Orchestrator: concurrent fan-out, normalization, deduplication
//  7. HTTP server: REST API, websocket search endpoint, Prometheus
//     metrics
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables with the EVENTSCOPE_ prefix
//   - Config file (EVENTSCOPE_CONFIG or eventscope.yaml)
//   - Built-in defaults
//
// Upstream sources are declared in the YAML file:
//
//	sources:
//	  - name: ticketswift
//	    kind: ticketmaster
//	    base_url: https://api.ticketswift.example
//	    api_key: your-api-key
//	    enabled: true
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete
//   - Drains running aggregation sessions
//   - Stops the cache cleanup loop
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/eventscope/internal/aggregator"
	"github.com/tomtom215/eventscope/internal/api"
	"github.com/tomtom215/eventscope/internal/cache"
	"github.com/tomtom215/eventscope/internal/config"
	"github.com/tomtom215/eventscope/internal/dedupe"
	"github.com/tomtom215/eventscope/internal/health"
	"github.com/tomtom215/eventscope/internal/logging"
	"github.com/tomtom215/eventscope/internal/normalize"
	"github.com/tomtom215/eventscope/internal/source"
	"github.com/tomtom215/eventscope/internal/stream"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Eventscope")

	registry := source.NewRegistry()
	profiles := make(map[string]normalize.Profile)
	for _, sc := range cfg.EnabledSources() {
		if p, ok := normalize.ProfileFor(sc.Kind); ok {
			profiles[sc.Name] = p
		} else if sc.Kind != "" {
			logging.Warn().Str("source", sc.Name).Str("kind", sc.Kind).Msg("Unknown source kind, using generic decoder")
		}
		adapter := source.NewHTTPAdapter(source.HTTPConfig{
			Name:      sc.Name,
			BaseURL:   sc.BaseURL,
			APIKey:    sc.APIKey,
			APIKeyHdr: sc.APIKeyHdr,
			RateLimit: sc.RateLimit,
			Burst:     sc.Burst,
		})
		if err := registry.Register(adapter); err != nil {
			logging.Fatal().Err(err).Str("source", sc.Name).Msg("Failed to register source")
		}
		logging.Info().Str("source", sc.Name).Str("base_url", sc.BaseURL).Msg("Source registered")
	}
	if registry.Len() == 0 {
		logging.Warn().Msg("No sources enabled; search sessions will be rejected")
	}

	monitor := health.NewMonitor(health.Config{
		Alpha:          cfg.Health.Alpha,
		WindowSize:     cfg.Health.WindowSize,
		TripThreshold:  cfg.Health.TripThreshold,
		Cooldown:       cfg.Health.Cooldown,
		TimeoutMargin:  cfg.Health.TimeoutMargin,
		DefaultTimeout: cfg.Health.DefaultTimeout,
		MinTimeout:     cfg.Health.MinTimeout,
		MaxTimeout:     cfg.Health.MaxTimeout,
	})

	results := cache.New(cfg.Cache.TTL)
	defer results.Stop()

	dispatcher := stream.NewDispatcher(cfg.Stream.BufferSize)

	orchestrator := aggregator.NewOrchestrator(aggregator.Config{
		GlobalDeadline: cfg.Aggregation.GlobalDeadline,
		MaxEvents:      cfg.Aggregation.MaxEvents,
		Dedupe: dedupe.Config{
			TitleThreshold: cfg.Aggregation.TitleThreshold,
			VenueThreshold: cfg.Aggregation.VenueThreshold,
		},
	}, registry, normalize.New(profiles), monitor, results, dispatcher)

	handler := api.NewHandler(orchestrator, dispatcher, monitor, registry, results)
	router := api.NewRouter(handler, api.RouterConfig{
		SearchRateLimit: cfg.Server.SearchRateLimit,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		serverErr <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("HTTP server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if err := orchestrator.Drain(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("Aggregation sessions still running at shutdown")
	}

	logging.Info().Msg("Application stopped gracefully")
}
