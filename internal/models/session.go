// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus describes the lifecycle state of an aggregation session.
type SessionStatus string

const (
	// SessionRunning means the fan-out is still in flight.
	SessionRunning SessionStatus = "running"

	// SessionCompleted means every requested source completed successfully.
	SessionCompleted SessionStatus = "completed"

	// SessionCompletedWithErrors means the session finished but at least
	// one source failed, timed out, or never reported before the global
	// deadline.
	SessionCompletedWithErrors SessionStatus = "completed_with_errors"

	// SessionNoSources means every requested source failed. The session
	// still completes with an empty result rather than surfacing an error
	// to the caller.
	SessionNoSources SessionStatus = "no_sources_available"

	// SessionCacheHit means the result was replayed from the result cache
	// without any source fan-out.
	SessionCacheHit SessionStatus = "cache_hit"
)

// ErrorKind classifies per-source failures reported in the done message.
type ErrorKind string

const (
	ErrorKindTimeout     ErrorKind = "source_timeout"
	ErrorKindFailure     ErrorKind = "source_failure"
	ErrorKindCircuitOpen ErrorKind = "circuit_open"
)

// Query identifies one aggregation request. QueryText and Location are
// normalized (trimmed, case-folded) before being used as a cache key.
type Query struct {
	Text     string `json:"query"`
	Location string `json:"location"`
}

// Session tracks one aggregation request from fan-out to completion.
// It is mutated only by the orchestrator's single consumer goroutine;
// snapshots handed to other goroutines are copies.
type Session struct {
	ID               uuid.UUID             `json:"id"`
	Query            Query                 `json:"query"`
	SourcesRequested []string              `json:"sources_requested"`
	SourcesCompleted []string              `json:"sources_completed"`
	SourcesFailed    map[string]ErrorKind  `json:"sources_failed"`
	AcceptedEvents   []Event               `json:"accepted_events"`
	Status           SessionStatus         `json:"status"`
	StartedAt        time.Time             `json:"started_at"`
	FinishedAt       *time.Time            `json:"finished_at,omitempty"`
}

// NewSession creates a running session for the given query and sources.
func NewSession(q Query, sources []string) *Session {
	return &Session{
		ID:               uuid.New(),
		Query:            q,
		SourcesRequested: sources,
		SourcesFailed:    make(map[string]ErrorKind),
		Status:           SessionRunning,
		StartedAt:        time.Now().UTC(),
	}
}

// Settled reports whether every requested source has either completed
// or failed.
func (s *Session) Settled() bool {
	return len(s.SourcesCompleted)+len(s.SourcesFailed) >= len(s.SourcesRequested)
}

// SourceSettled reports whether the named source has completed or
// failed in this session.
func (s *Session) SourceSettled(name string) bool {
	if _, failed := s.SourcesFailed[name]; failed {
		return true
	}
	for _, c := range s.SourcesCompleted {
		if c == name {
			return true
		}
	}
	return false
}

// Progress returns the fraction of requested sources that have reported,
// in [0, 1].
func (s *Session) Progress() float64 {
	if len(s.SourcesRequested) == 0 {
		return 1
	}
	settled := len(s.SourcesCompleted) + len(s.SourcesFailed)
	return float64(settled) / float64(len(s.SourcesRequested))
}
