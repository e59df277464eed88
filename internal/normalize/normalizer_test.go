// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package normalize

import (
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/eventscope/internal/models"
)

func TestNormalize_AcceptsValidRecord(t *testing.T) {
	n := New(nil)

	payload := json.RawMessage(`[
		{"title": "Jazz Night", "start_time": "2025-03-01T20:00:00Z", "venue_name": "Blue Note", "category": "music", "id": "tk-1"}
	]`)

	events, stats, err := n.Normalize("ticketstar", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Accepted != 1 || stats.Rejected != 0 {
		t.Fatalf("expected 1 accepted / 0 rejected, got %+v", stats)
	}

	e := events[0]
	if e.Title != "Jazz Night" {
		t.Errorf("title: got %q", e.Title)
	}
	if !e.StartTime.Equal(time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)) {
		t.Errorf("start time: got %v", e.StartTime)
	}
	if e.Category != models.CategoryMusic {
		t.Errorf("category: got %q", e.Category)
	}
	if e.SourceName != "ticketstar" || e.SourceID != "tk-1" {
		t.Errorf("source identity: got %s/%s", e.SourceName, e.SourceID)
	}
	if len(e.Provenance) != 1 || e.Provenance[0] != "ticketstar" {
		t.Errorf("provenance: got %v", e.Provenance)
	}
	if len(e.RawPayload) == 0 {
		t.Error("raw payload must be retained")
	}
}

func TestNormalize_RejectsMissingDate(t *testing.T) {
	// A record without a parseable start time is rejected silently.
	n := New(nil)

	payload := json.RawMessage(`[
		{"title": "Dateless Gig", "venue_name": "Somewhere"},
		{"title": "Bad Date", "start_time": "next friday-ish"},
		{"title": "Good Gig", "start_time": "2025-03-01 20:00"}
	]`)

	events, stats, err := n.Normalize("cityscan", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Accepted != 1 || stats.Rejected != 2 {
		t.Fatalf("expected 1 accepted / 2 rejected, got %+v", stats)
	}
	if events[0].Title != "Good Gig" {
		t.Errorf("wrong survivor: %q", events[0].Title)
	}
}

func TestNormalize_RejectsPlaceholderTitles(t *testing.T) {
	n := New(nil)

	payload := json.RawMessage(`[
		{"title": "", "start_time": "2025-03-01T20:00:00Z"},
		{"title": "   ", "start_time": "2025-03-01T20:00:00Z"},
		{"title": "Untitled", "start_time": "2025-03-01T20:00:00Z"},
		{"title": "Sin Título", "start_time": "2025-03-01T20:00:00Z"},
		{"title": "TBA", "start_time": "2025-03-01T20:00:00Z"}
	]`)

	_, stats, err := n.Normalize("cityscan", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Accepted != 0 || stats.Rejected != 5 {
		t.Fatalf("expected 0 accepted / 5 rejected, got %+v", stats)
	}
}

func TestNormalize_CategoryMapping(t *testing.T) {
	n := New(map[string]Profile{
		"ticketstar": {
			Categories: map[string]models.Category{
				"concert":  models.CategoryMusic,
				"festival": models.CategoryParty,
				"match":    models.CategorySports,
			},
		},
	})

	payload := json.RawMessage(`[
		{"title": "A", "start_time": "2025-03-01T20:00:00Z", "category": "Concert"},
		{"title": "B", "start_time": "2025-03-01T20:00:00Z", "category": "match"},
		{"title": "C", "start_time": "2025-03-01T20:00:00Z", "category": "interpretive-dance"},
		{"title": "D", "start_time": "2025-03-01T20:00:00Z"}
	]`)

	events, stats, err := n.Normalize("ticketstar", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Accepted != 4 {
		t.Fatalf("expected 4 accepted, got %+v", stats)
	}

	want := []models.Category{models.CategoryMusic, models.CategorySports, models.CategoryOther, models.CategoryOther}
	for i, e := range events {
		if e.Category != want[i] {
			t.Errorf("event %d: category %q, want %q", i, e.Category, want[i])
		}
	}
}

func TestNormalize_PriceRules(t *testing.T) {
	n := New(nil)

	payload := json.RawMessage(`[
		{"title": "Priced", "start_time": "2025-03-01T20:00:00Z", "price": 25.5, "currency": "eur"},
		{"title": "Free", "start_time": "2025-03-01T20:00:00Z", "is_free": true},
		{"title": "Unknown", "start_time": "2025-03-01T20:00:00Z"}
	]`)

	events, _, err := n.Normalize("cityscan", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	priced, free, unknown := events[0], events[1], events[2]

	if priced.Price == nil || *priced.Price != 25.5 || priced.Currency != "EUR" {
		t.Errorf("priced: got %+v", priced)
	}
	if priced.IsFree {
		t.Error("priced event must not be free")
	}

	if !free.IsFree || free.Price != nil {
		t.Errorf("free: got %+v", free)
	}

	// Missing price with no free indicator is price-unknown, not zero
	// and not free.
	if unknown.Price != nil || unknown.IsFree {
		t.Errorf("unknown price: got price=%v free=%v", unknown.Price, unknown.IsFree)
	}
}

func TestNormalize_TimeLayoutsAndZones(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		t.Skip("tzdata unavailable")
	}

	n := New(map[string]Profile{
		"cityscan": {
			TimeLayouts: []string{"02.01.2006 15:04"},
			Location:    berlin,
		},
	})

	payload := json.RawMessage(`[
		{"title": "Local Style", "start_time": "01.03.2025 20:00"},
		{"title": "US Style", "start_time": "Mar 1 2025 8pm"}
	]`)

	events, stats, err := n.Normalize("cityscan", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Accepted != 2 {
		t.Fatalf("expected 2 accepted, got %+v", stats)
	}

	wantLocal := time.Date(2025, 3, 1, 20, 0, 0, 0, berlin)
	if !events[0].StartTime.Equal(wantLocal) {
		t.Errorf("local layout: got %v, want %v", events[0].StartTime, wantLocal)
	}
}

func TestNormalize_WrappedPayloads(t *testing.T) {
	n := New(nil)

	for _, wrapper := range []string{"events", "results", "items", "data"} {
		payload := json.RawMessage(`{"` + wrapper + `": [{"title": "X", "start_time": "2025-03-01T20:00:00Z"}]}`)
		_, stats, err := n.Normalize("any", payload)
		if err != nil {
			t.Errorf("wrapper %q: unexpected error: %v", wrapper, err)
			continue
		}
		if stats.Accepted != 1 {
			t.Errorf("wrapper %q: expected 1 accepted, got %+v", wrapper, stats)
		}
	}
}

func TestNormalize_MalformedPayload(t *testing.T) {
	n := New(nil)

	_, _, err := n.Normalize("cityscan", json.RawMessage(`"just a string"`))
	if err == nil {
		t.Fatal("expected decode error for malformed payload")
	}
}

func TestNormalize_AliasResolution(t *testing.T) {
	n := New(nil)

	payload := json.RawMessage(`[
		{"name": "Aliased", "date": "2025-03-01", "venue": "The Spot", "link": "https://x.example/e/1", "lat": 52.5, "lng": 13.4}
	]`)

	events, stats, err := n.Normalize("scraper", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Accepted != 1 {
		t.Fatalf("expected 1 accepted, got %+v", stats)
	}

	e := events[0]
	if e.Title != "Aliased" || e.VenueName != "The Spot" || e.ExternalURL != "https://x.example/e/1" {
		t.Errorf("alias resolution failed: %+v", e)
	}
	if e.Coordinates == nil || e.Coordinates.Latitude != 52.5 {
		t.Errorf("coordinate aliases failed: %+v", e.Coordinates)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	// Running the same payload twice yields identical results; dedup
	// within a session relies on this.
	n := New(nil)
	payload := json.RawMessage(`[{"title": "Jazz Night", "start_time": "2025-03-01T20:00:00Z", "venue_name": "Blue Note"}]`)

	first, _, err1 := n.Normalize("ticketstar", payload)
	second, _, err2 := n.Normalize("ticketstar", payload)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v %v", err1, err2)
	}
	if first[0].Title != second[0].Title || !first[0].StartTime.Equal(second[0].StartTime) {
		t.Error("normalization is not deterministic")
	}
}
