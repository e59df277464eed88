// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

// Package metrics provides Prometheus instrumentation for the aggregation
// pipeline: source fan-out latency and failures, circuit breaker state,
// dedup and cache effectiveness, and the HTTP/streaming surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Source fan-out metrics
	SourceLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "source_fetch_duration_seconds",
			Help:    "Duration of source adapter fetches in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 12},
		},
		[]string{"source"},
	)

	SourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_failures_total",
			Help: "Total source adapter failures by error kind",
		},
		[]string{"source", "kind"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "source_circuit_breaker_state",
			Help: "Circuit breaker state per source (0=closed, 1=half-open, 2=open)",
		},
		[]string{"source"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions per source",
		},
		[]string{"source", "from", "to"},
	)

	// Session metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aggregation_sessions_active",
			Help: "Number of aggregation sessions currently running",
		},
	)

	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aggregation_sessions_total",
			Help: "Completed aggregation sessions by final status",
		},
		[]string{"status"},
	)

	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "aggregation_session_duration_seconds",
			Help:    "Aggregation session duration from fan-out to done",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 12, 16},
		},
	)

	// Pipeline metrics
	EventsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_accepted_total",
			Help: "Canonical events accepted into sessions, by source",
		},
		[]string{"source"},
	)

	EventsMerged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_merged_total",
			Help: "Candidate events merged into an existing accepted event",
		},
	)

	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_rejected_total",
			Help: "Raw records rejected during normalization, by source",
		},
		[]string{"source"},
	)

	// Result cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "result_cache_hits_total",
			Help: "Result cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "result_cache_misses_total",
			Help: "Result cache misses",
		},
	)

	// Streaming metrics
	StreamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stream_clients_connected",
			Help: "Currently connected streaming clients",
		},
	)

	StreamClientsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stream_clients_dropped_total",
			Help: "Streaming clients dropped for falling behind",
		},
	)

	// HTTP metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordAPIRequest records one HTTP request observation.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
