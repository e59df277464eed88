// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/eventscope/internal/aggregator"
	"github.com/tomtom215/eventscope/internal/cache"
	"github.com/tomtom215/eventscope/internal/health"
	"github.com/tomtom215/eventscope/internal/models"
	"github.com/tomtom215/eventscope/internal/normalize"
	"github.com/tomtom215/eventscope/internal/source"
	"github.com/tomtom215/eventscope/internal/stream"
)

func newTestServer(t *testing.T, adapters ...source.Adapter) *httptest.Server {
	t.Helper()

	reg := source.NewRegistry()
	for _, a := range adapters {
		require.NoError(t, reg.Register(a))
	}
	mon := health.NewMonitor(health.DefaultConfig())
	res := cache.New(time.Minute)
	t.Cleanup(res.Stop)
	disp := stream.NewDispatcher(256)
	orch := aggregator.NewOrchestrator(aggregator.DefaultConfig(), reg, normalize.New(nil), mon, res, disp)

	h := NewHandler(orch, disp, mon, reg, res)
	srv := httptest.NewServer(NewRouter(h, RouterConfig{}))
	t.Cleanup(srv.Close)
	return srv
}

func decodeEnvelope(t *testing.T, resp *http.Response) models.APIResponse {
	t.Helper()
	defer resp.Body.Close()

	var env models.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func fakeEvents(title, venue, start string) json.RawMessage {
	blob, _ := json.Marshal(map[string]interface{}{
		"events": []map[string]interface{}{
			{"title": title, "venue_name": venue, "start_time": start},
		},
	})
	return blob
}

func TestHealthLive(t *testing.T) {
	srv := newTestServer(t, &source.FakeAdapter{SourceName: "a"})

	resp, err := http.Get(srv.URL + "/api/v1/health/live")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	assert.Equal(t, "success", env.Status)
}

func TestHealthReadyRequiresSources(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/health/ready")
	require.NoError(t, err)

	env := decodeEnvelope(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "error", env.Status)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeServiceUnavailable, env.Error.Code)
}

func TestSourcesSnapshot(t *testing.T) {
	srv := newTestServer(t,
		&source.FakeAdapter{SourceName: "ticketsource"},
		&source.FakeAdapter{SourceName: "venuefeed"},
	)

	resp, err := http.Get(srv.URL + "/api/v1/sources")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	env := decodeEnvelope(t, resp)
	data, ok := env.Data.(map[string]interface{})
	require.True(t, ok)
	sources, ok := data["sources"].([]interface{})
	require.True(t, ok)
	assert.Len(t, sources, 2)
}

func TestSearchStreamRejectsMissingQuery(t *testing.T) {
	srv := newTestServer(t, &source.FakeAdapter{SourceName: "a"})

	resp, err := http.Get(srv.URL + "/api/v1/search/stream")
	require.NoError(t, err)

	env := decodeEnvelope(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeValidationFailed, env.Error.Code)
}

func TestSearchStreamDeliversFrames(t *testing.T) {
	adapter := &source.FakeAdapter{
		SourceName: "ticketsource",
		Payload:    fakeEvents("Jazz Night", "Blue Note", "2025-03-01T20:00:00Z"),
	}
	srv := newTestServer(t, adapter)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/search/stream?q=jazz&location=berlin"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(15*time.Second)))

	var types []models.MessageType
	var done *models.DonePayload
	for done == nil {
		var msg models.StreamMessage
		require.NoError(t, conn.ReadJSON(&msg))
		types = append(types, msg.Type)
		if msg.Type == models.MessageDone {
			done = msg.Done
		}
	}

	assert.Equal(t, []models.MessageType{
		models.MessageProgress,
		models.MessageBatch,
		models.MessageDone,
	}, types)
	assert.Equal(t, models.SessionCompleted, done.Status)
	assert.Equal(t, 1, done.TotalEvents)
}

func TestNotFoundEnvelope(t *testing.T) {
	srv := newTestServer(t, &source.FakeAdapter{SourceName: "a"})

	resp, err := http.Get(srv.URL + "/api/v1/nope")
	require.NoError(t, err)

	env := decodeEnvelope(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, ErrCodeNotFound, env.Error.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &source.FakeAdapter{SourceName: "a"})

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
