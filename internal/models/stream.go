// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package models

// MessageType identifies a stream frame kind.
type MessageType string

const (
	MessageProgress MessageType = "progress"
	MessageBatch    MessageType = "batch"
	MessageDone     MessageType = "done"
)

// StreamMessage is one frame on the client-facing stream. Exactly one
// of the payload pointers is set, matching Type.
type StreamMessage struct {
	Type      MessageType      `json:"type"`
	SessionID string           `json:"session_id"`
	Progress  *ProgressPayload `json:"progress,omitempty"`
	Batch     *BatchPayload    `json:"batch,omitempty"`
	Done      *DonePayload     `json:"done,omitempty"`
}

// ProgressPayload reports one source settling, successfully or not.
type ProgressPayload struct {
	Source           string  `json:"source"`
	FractionComplete float64 `json:"fraction_complete"`
}

// BatchPayload carries the newly accepted events from one source.
type BatchPayload struct {
	Source       string  `json:"source"`
	Events       []Event `json:"events"`
	RunningTotal int     `json:"running_total"`
}

// DonePayload is the terminal frame of a session. SourcesFailed maps
// each failed source to its error kind; Truncated reports that the
// per-session event cap cut off one or more batches.
type DonePayload struct {
	Status        SessionStatus        `json:"status"`
	TotalEvents   int                  `json:"total_events"`
	SourcesFailed map[string]ErrorKind `json:"sources_failed"`
	Truncated     bool                 `json:"truncated,omitempty"`
}

// NewProgressMessage builds a progress frame.
func NewProgressMessage(sessionID, source string, fraction float64) StreamMessage {
	return StreamMessage{
		Type:      MessageProgress,
		SessionID: sessionID,
		Progress:  &ProgressPayload{Source: source, FractionComplete: fraction},
	}
}

// NewBatchMessage builds a batch frame.
func NewBatchMessage(sessionID, source string, events []Event, runningTotal int) StreamMessage {
	return StreamMessage{
		Type:      MessageBatch,
		SessionID: sessionID,
		Batch:     &BatchPayload{Source: source, Events: events, RunningTotal: runningTotal},
	}
}

// NewDoneMessage builds the terminal frame.
func NewDoneMessage(sessionID string, status SessionStatus, total int, failed map[string]ErrorKind, truncated bool) StreamMessage {
	if failed == nil {
		failed = make(map[string]ErrorKind)
	}
	return StreamMessage{
		Type:      MessageDone,
		SessionID: sessionID,
		Done: &DonePayload{
			Status:        status,
			TotalEvents:   total,
			SourcesFailed: failed,
			Truncated:     truncated,
		},
	}
}
