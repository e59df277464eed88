// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package models

import (
	"time"
)

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints. Status is "success" or "error"; Error is populated only
// when Status is "error".
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError carries structured error details in an error response.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SourceStatus is the per-source health snapshot exposed by the
// /api/v1/sources endpoint.
type SourceStatus struct {
	Name            string        `json:"name"`
	CircuitState    string        `json:"circuit_state"`
	AvgLatencyMS    int64         `json:"avg_latency_ms"`
	RecentFailures  int           `json:"recent_failures"`
	RecentSessions  int           `json:"recent_sessions"`
	CurrentTimeout  time.Duration `json:"-"`
	TimeoutMS       int64         `json:"timeout_ms"`
	Eligible        bool          `json:"eligible"`
	LastFailureKind string        `json:"last_failure_kind,omitempty"`
}
