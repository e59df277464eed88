// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/eventscope/internal/aggregator"
	"github.com/tomtom215/eventscope/internal/cache"
	"github.com/tomtom215/eventscope/internal/health"
	"github.com/tomtom215/eventscope/internal/logging"
	"github.com/tomtom215/eventscope/internal/models"
	"github.com/tomtom215/eventscope/internal/source"
	"github.com/tomtom215/eventscope/internal/stream"
	"github.com/tomtom215/eventscope/internal/validation"
)

// searchParams are the validated query parameters of a search request.
type searchParams struct {
	Query    string `validate:"required,min=1,max=200"`
	Location string `validate:"max=200"`
}

// Handler serves the API endpoints. One instance is shared by all
// requests.
type Handler struct {
	orchestrator *aggregator.Orchestrator
	dispatcher   *stream.Dispatcher
	monitor      *health.Monitor
	registry     *source.Registry
	results      *cache.Cache
	upgrader     websocket.Upgrader
}

// NewHandler wires the handler onto the pipeline components.
func NewHandler(o *aggregator.Orchestrator, d *stream.Dispatcher, m *health.Monitor, r *source.Registry, c *cache.Cache) *Handler {
	return &Handler{
		orchestrator: o,
		dispatcher:   d,
		monitor:      m,
		registry:     r,
		results:      c,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The browser client is served cross-origin in development
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SearchStream runs one aggregation session and streams its frames
// over a websocket. Parameter validation happens before the upgrade so
// bad requests still get a JSON error.
func (h *Handler) SearchStream(w http.ResponseWriter, r *http.Request) {
	params := searchParams{
		Query:    strings.TrimSpace(r.URL.Query().Get("q")),
		Location: strings.TrimSpace(r.URL.Query().Get("location")),
	}
	if err := validation.ValidateStruct(&params); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidationFailed, err.Error())
		return
	}

	sess, err := h.orchestrator.Prepare(models.Query{Text: params.Query, Location: params.Location})
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, err.Error())
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote its own response
		logging.Ctx(r.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	// Subscribe before Run so the first frame cannot be missed.
	sub := h.dispatcher.Subscribe(sess.ID.String())
	h.orchestrator.Run(sess)

	logging.Ctx(r.Context()).Info().
		Str("session_id", sess.ID.String()).
		Str("query", params.Query).
		Str("location", params.Location).
		Int("sources", len(sess.SourcesRequested)).
		Msg("search session started")

	stream.NewClient(conn, sub, h.dispatcher).Run()
}

// Sources returns the per-source health snapshot.
func (h *Handler) Sources(w http.ResponseWriter, r *http.Request) {
	statuses := h.monitor.Snapshot(h.registry.Names())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sources": statuses,
	})
}

// HealthLive is the liveness probe.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady is the readiness probe: ready once at least one source
// adapter is registered.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if h.registry.Len() == 0 {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "no sources registered")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ready",
		"sources": h.registry.Len(),
	})
}

// CacheStats exposes result cache counters for debugging.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	stats := h.results.GetStats()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"hits":         stats.Hits,
		"misses":       stats.Misses,
		"evictions":    stats.Evictions,
		"total_keys":   stats.TotalKeys,
		"hit_rate_pct": h.results.HitRate(),
		"last_cleanup": stats.LastCleanup,
	})
}
