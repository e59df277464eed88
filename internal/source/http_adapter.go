// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/eventscope/internal/models"
)

// maxResponseSize caps how much of an upstream response body is read.
// Event providers occasionally return multi-megabyte dumps; anything
// past this limit is treated as a malformed response.
const maxResponseSize = 4 * 1024 * 1024 // 4MB

// maxErrorBodySize limits the response body read for error reporting.
const maxErrorBodySize = 64 * 1024 // 64KB

// HTTPConfig configures an HTTPAdapter.
type HTTPConfig struct {
	Name      string
	BaseURL   string
	APIKey    string
	APIKeyHdr string  // header name for the key, defaults to X-API-Key
	RateLimit float64 // requests per second, 0 disables limiting
	Burst     int
}

// HTTPAdapter fetches raw event payloads from a JSON-over-HTTP
// provider. Requests carry the search text and location as query
// parameters; responses are returned verbatim for downstream
// normalization.
//
// A token bucket limiter keeps per-provider request rates polite even
// when many sessions fan out concurrently.
type HTTPAdapter struct {
	name    string
	baseURL string
	apiKey  string
	keyHdr  string
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPAdapter creates an adapter for one upstream provider. The
// http.Client carries no timeout of its own; per-request deadlines
// come from the caller's context.
func NewHTTPAdapter(cfg HTTPConfig) *HTTPAdapter {
	keyHdr := cfg.APIKeyHdr
	if keyHdr == "" {
		keyHdr = "X-API-Key"
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &HTTPAdapter{
		name:    cfg.Name,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		keyHdr:  keyHdr,
		client:  &http.Client{},
		limiter: limiter,
	}
}

// Name returns the provider's registry name.
func (a *HTTPAdapter) Name() string {
	return a.name
}

// Fetch performs one search request against the provider and returns
// the raw response body. Rate limiter waits respect ctx, so a session
// deadline expiring during the wait surfaces as a timeout.
func (a *HTTPAdapter) Fetch(ctx context.Context, query models.Query) (json.RawMessage, error) {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return nil, NewError(a.name, Classify(err), err)
		}
	}

	params := url.Values{}
	params.Set("q", query.Text)
	if query.Location != "" {
		params.Set("location", query.Location)
	}

	reqURL := fmt.Sprintf("%s/events?%s", a.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, NewError(a.name, models.ErrorKindFailure, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if a.apiKey != "" {
		req.Header.Set(a.keyHdr, a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, NewError(a.name, classifyTransportError(err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body := readBodyForError(resp.Body)
		return nil, NewError(a.name, models.ErrorKindFailure,
			fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body)))
	}

	limited := io.LimitReader(resp.Body, maxResponseSize+1)
	payload, err := io.ReadAll(limited)
	if err != nil {
		return nil, NewError(a.name, Classify(err), fmt.Errorf("failed to read response: %w", err))
	}
	if len(payload) > maxResponseSize {
		return nil, NewError(a.name, models.ErrorKindFailure,
			fmt.Errorf("response exceeds %d byte limit", maxResponseSize))
	}

	return json.RawMessage(payload), nil
}

// readBodyForError reads the response body for error reporting, capped
// at maxErrorBodySize to avoid unbounded allocation on large error
// pages.
func readBodyForError(r io.Reader) []byte {
	limited := io.LimitReader(r, maxErrorBodySize)
	body, err := io.ReadAll(limited)
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// classifyTransportError decides whether a transport failure counts as
// a timeout. Net stack timeouts surface as url.Error values whose
// Timeout() reports true even when they do not wrap
// context.DeadlineExceeded.
func classifyTransportError(err error) models.ErrorKind {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return models.ErrorKindTimeout
	}
	return Classify(err)
}
