// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/eventscope/internal/models"
)

func TestHTTPAdapterFetch(t *testing.T) {
	var gotQuery, gotLocation, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotLocation = r.URL.Query().Get("location")
		gotKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"events":[{"title":"Jazz Night"}]}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(HTTPConfig{
		Name:    "ticketsource",
		BaseURL: srv.URL,
		APIKey:  "secret",
	})

	payload, err := a.Fetch(context.Background(), models.Query{Text: "jazz", Location: "berlin"})
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Jazz Night")
	assert.Equal(t, "jazz", gotQuery)
	assert.Equal(t, "berlin", gotLocation)
	assert.Equal(t, "secret", gotKey)
}

func TestHTTPAdapterNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewHTTPAdapter(HTTPConfig{Name: "ticketsource", BaseURL: srv.URL})

	_, err := a.Fetch(context.Background(), models.Query{Text: "jazz"})
	require.Error(t, err)

	var srcErr *Error
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "ticketsource", srcErr.Source)
	assert.Equal(t, models.ErrorKindFailure, srcErr.Kind)
	assert.Contains(t, err.Error(), "500")
}

func TestHTTPAdapterDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(HTTPConfig{Name: "slowsource", BaseURL: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := a.Fetch(ctx, models.Query{Text: "jazz"})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindTimeout, Classify(err))
}

func TestHTTPAdapterResponseSizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", maxResponseSize+10)))
	}))
	defer srv.Close()

	a := NewHTTPAdapter(HTTPConfig{Name: "bigsource", BaseURL: srv.URL})

	_, err := a.Fetch(context.Background(), models.Query{Text: "jazz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "byte limit")
}

func TestClassify(t *testing.T) {
	assert.Equal(t, models.ErrorKindTimeout, Classify(context.DeadlineExceeded))
	assert.Equal(t, models.ErrorKindFailure, Classify(errors.New("boom")))

	wrapped := NewError("s1", models.ErrorKindCircuitOpen, errors.New("open"))
	assert.Equal(t, models.ErrorKindCircuitOpen, Classify(wrapped))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register(&FakeAdapter{SourceName: "a"}))
	require.NoError(t, r.Register(&FakeAdapter{SourceName: "b"}))

	err := r.Register(&FakeAdapter{SourceName: "a"})
	assert.Error(t, err)

	err = r.Register(&FakeAdapter{})
	assert.Error(t, err)

	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Equal(t, 2, r.Len())

	got, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", got.Name())

	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestFakeAdapterDelayRespectsContext(t *testing.T) {
	f := &FakeAdapter{SourceName: "slow", Delay: time.Second}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Fetch(ctx, models.Query{})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, int64(1), f.Calls())
}
