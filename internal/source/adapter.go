// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

// Package source defines the adapter abstraction over upstream event
// providers and the HTTP implementation used for real sources. Each
// adapter returns the provider's raw JSON payload; normalization into
// canonical events happens downstream.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/tomtom215/eventscope/internal/models"
)

// Adapter is implemented by every upstream event provider. Fetch must
// honor ctx cancellation and return the provider's raw response body.
//
// Thread Safety: implementations must be safe for concurrent use; the
// orchestrator calls Fetch from one goroutine per source per session.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, query models.Query) (json.RawMessage, error)
}

// Error wraps a fetch failure with the source it came from and the
// error kind the health monitor and session bookkeeping need.
type Error struct {
	Source string
	Kind   models.ErrorKind
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.Source, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a typed source error.
func NewError(source string, kind models.ErrorKind, err error) *Error {
	return &Error{Source: source, Kind: kind, Err: err}
}

// Classify maps an arbitrary fetch error to its error kind. Context
// deadline expiry counts as a source timeout; a typed Error keeps its
// own kind; everything else is a generic source failure.
func Classify(err error) models.ErrorKind {
	var srcErr *Error
	if errors.As(err, &srcErr) {
		return srcErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrorKindTimeout
	}
	return models.ErrorKindFailure
}
