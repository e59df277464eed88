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

func TestProfileFor(t *testing.T) {
	for _, kind := range []string{"ticketmaster", "eventbrite", "meetup"} {
		if _, ok := ProfileFor(kind); !ok {
			t.Errorf("expected built-in profile for kind %q", kind)
		}
	}
	if _, ok := ProfileFor("unknown-provider"); ok {
		t.Error("unknown kind must not resolve to a profile")
	}
	if _, ok := ProfileFor(""); ok {
		t.Error("empty kind must not resolve to a profile")
	}
}

func TestTicketmasterProfile(t *testing.T) {
	profile, ok := ProfileFor("ticketmaster")
	if !ok {
		t.Fatal("missing ticketmaster profile")
	}
	n := New(map[string]Profile{"tm-east": profile})

	payload := json.RawMessage(`{
		"_embedded": {
			"events": [{
				"id": "G5vYZ9",
				"name": "Jazz Night",
				"url": "https://tickets.example/G5vYZ9",
				"dates": {"start": {"dateTime": "2025-03-01T20:00:00Z"}},
				"classifications": [{"segment": {"name": "Arts & Theatre"}}],
				"priceRanges": [{"min": 25.5, "currency": "USD"}],
				"_embedded": {
					"venues": [{
						"name": "Blue Note",
						"address": {"line1": "131 W 3rd St"},
						"location": {"latitude": "40.7306", "longitude": "-74.0007"}
					}]
				}
			}]
		}
	}`)

	events, stats, err := n.Normalize("tm-east", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Accepted != 1 {
		t.Fatalf("expected 1 accepted, got %+v", stats)
	}

	e := events[0]
	if e.Title != "Jazz Night" || e.SourceID != "G5vYZ9" {
		t.Errorf("identity: got %q/%q", e.Title, e.SourceID)
	}
	if !e.StartTime.Equal(time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)) {
		t.Errorf("start time: got %v", e.StartTime)
	}
	if e.Category != models.CategoryCultural {
		t.Errorf("segment mapping: got %q", e.Category)
	}
	if e.VenueName != "Blue Note" || e.VenueAddr != "131 W 3rd St" {
		t.Errorf("venue: got %q / %q", e.VenueName, e.VenueAddr)
	}
	if e.Coordinates == nil || e.Coordinates.Latitude != 40.7306 {
		t.Errorf("coordinates: got %+v", e.Coordinates)
	}
	if e.Price == nil || *e.Price != 25.5 || e.Currency != "USD" {
		t.Errorf("price: got %v %q", e.Price, e.Currency)
	}
}

func TestEventbriteProfile(t *testing.T) {
	profile, ok := ProfileFor("eventbrite")
	if !ok {
		t.Fatal("missing eventbrite profile")
	}
	n := New(map[string]Profile{"eb": profile})

	payload := json.RawMessage(`{
		"events": [{
			"id": "9001",
			"url": "https://eb.example/9001",
			"name": {"text": "Go Meetup March"},
			"description": {"text": "Talks and pizza"},
			"start": {"utc": "2025-03-05T18:30:00Z"},
			"end": {"utc": "2025-03-05T21:00:00Z"},
			"is_free": true,
			"category": {"name": "Science & Technology"},
			"venue": {
				"name": "The Hub",
				"address": {"localized_address_display": "1 Main St, Berlin"},
				"latitude": "52.52",
				"longitude": "13.405"
			}
		}]
	}`)

	events, stats, err := n.Normalize("eb", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Accepted != 1 {
		t.Fatalf("expected 1 accepted, got %+v", stats)
	}

	e := events[0]
	if e.Title != "Go Meetup March" {
		t.Errorf("title: got %q", e.Title)
	}
	if e.Category != models.CategoryTech {
		t.Errorf("category mapping: got %q", e.Category)
	}
	if !e.IsFree {
		t.Error("is_free must carry through")
	}
	if e.EndTime == nil || !e.EndTime.Equal(time.Date(2025, 3, 5, 21, 0, 0, 0, time.UTC)) {
		t.Errorf("end time: got %v", e.EndTime)
	}
	if e.VenueAddr != "1 Main St, Berlin" {
		t.Errorf("address: got %q", e.VenueAddr)
	}
}

func TestMeetupProfileCategoryAndLayout(t *testing.T) {
	profile, ok := ProfileFor("meetup")
	if !ok {
		t.Fatal("missing meetup profile")
	}
	n := New(map[string]Profile{"mu": profile})

	payload := json.RawMessage(`{
		"events": [
			{"name": "Board Games Social", "time": "2025-03-07T19:00:00+0100", "venue": "Cafe Olm", "category": "Social"}
		]
	}`)

	events, stats, err := n.Normalize("mu", payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Accepted != 1 {
		t.Fatalf("expected 1 accepted, got %+v", stats)
	}

	e := events[0]
	if e.Category != models.CategoryParty {
		t.Errorf("category mapping: got %q", e.Category)
	}
	want := time.Date(2025, 3, 7, 19, 0, 0, 0, time.FixedZone("", 3600))
	if !e.StartTime.Equal(want) {
		t.Errorf("offset layout: got %v, want %v", e.StartTime, want)
	}
}
