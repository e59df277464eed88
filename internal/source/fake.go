// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package source

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/eventscope/internal/models"
)

// FakeAdapter is a controllable adapter for tests. It can return a
// fixed payload, fail with a given error, or delay long enough to
// trip the caller's deadline. Calls are counted atomically so tests
// can assert whether a source was consulted at all.
type FakeAdapter struct {
	SourceName string
	Payload    json.RawMessage
	Err        error
	Delay      time.Duration

	calls atomic.Int64
}

// Name returns the fake's source name.
func (f *FakeAdapter) Name() string {
	return f.SourceName
}

// Fetch returns the configured payload or error after the configured
// delay, aborting early if ctx expires first.
func (f *FakeAdapter) Fetch(ctx context.Context, _ models.Query) (json.RawMessage, error) {
	f.calls.Add(1)

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, NewError(f.SourceName, Classify(ctx.Err()), ctx.Err())
		}
	}

	if f.Err != nil {
		return nil, f.Err
	}
	return f.Payload, nil
}

// Calls reports how many times Fetch has been invoked.
func (f *FakeAdapter) Calls() int64 {
	return f.calls.Load()
}
