// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

// Package normalize maps source-specific payloads into the canonical Event
// record. Each source registers a Profile describing how to decode its raw
// payload and how its native category taxonomy maps onto the canonical enum.
//
// Per-record validation is strict where the canonical invariants demand it
// and forgiving everywhere else: a record without a parseable start time or
// with a placeholder title is dropped, an unmapped category falls back to
// "other", and a missing price stays unknown rather than defaulting to zero.
//
// The normalizer holds no shared mutable state after construction and is
// safe to invoke concurrently for multiple sources.
package normalize

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/eventscope/internal/dedupe"
	"github.com/tomtom215/eventscope/internal/models"
)

// RawEvent is the loose intermediate shape a source profile extracts from
// its payload before validation. All fields are optional; validation
// decides what survives.
type RawEvent struct {
	ID          string
	Title       string
	Description string
	Start       string
	End         string
	VenueName   string
	VenueAddr   string
	Latitude    *float64
	Longitude   *float64
	Category    string
	Price       *float64
	Currency    string
	IsFree      *bool
	ImageURL    string
	ExternalURL string
	Raw         json.RawMessage
}

// Decoder extracts RawEvents from one source's payload. Each adapter's
// payload shape is opaque to everything but its own decoder.
type Decoder func(payload json.RawMessage) ([]RawEvent, error)

// Profile describes how one source's records become canonical events.
type Profile struct {
	// Decode extracts loose records from the raw payload. Nil selects
	// GenericDecode.
	Decode Decoder

	// Categories maps the source's native taxonomy onto the canonical
	// enum. Lookup is case-insensitive; unmapped values become "other".
	Categories map[string]models.Category

	// TimeLayouts lists additional time layouts this source is known to
	// emit, tried before the built-in layouts.
	TimeLayouts []string

	// Location resolves timestamps that carry no zone. Nil means UTC.
	Location *time.Location
}

// Stats counts the outcome of one Normalize call. Rejected records only
// affect counts; they are never surfaced individually.
type Stats struct {
	Accepted int
	Rejected int
}

// titleBlocklist holds known placeholder titles, compared after trimming
// and case/diacritic folding.
var titleBlocklist = map[string]struct{}{
	"untitled":    {},
	"sin titulo":  {},
	"tba":         {},
	"tbd":         {},
	"no title":    {},
	"placeholder": {},
}

// builtinLayouts are the time layouts tried for every source, most
// specific first.
var builtinLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"Jan 2 2006 3:04pm",
	"Jan 2 2006 3pm",
	"January 2, 2006 3:04 PM",
	"2006-01-02",
}

// Normalizer validates and converts raw source payloads. Construct once
// with the per-source profiles and share across sessions.
type Normalizer struct {
	profiles map[string]Profile
}

// New creates a Normalizer from per-source profiles keyed by source name.
func New(profiles map[string]Profile) *Normalizer {
	if profiles == nil {
		profiles = make(map[string]Profile)
	}
	return &Normalizer{profiles: profiles}
}

// Normalize converts one source's payload into canonical events, dropping
// records that violate the canonical invariants. The error is non-nil only
// when the payload itself cannot be decoded; per-record rejections are
// absorbed into Stats.
func (n *Normalizer) Normalize(sourceName string, payload json.RawMessage) ([]models.Event, Stats, error) {
	profile := n.profiles[sourceName]
	decode := profile.Decode
	if decode == nil {
		decode = GenericDecode
	}

	raws, err := decode(payload)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("normalize %s: decode payload: %w", sourceName, err)
	}

	var stats Stats
	events := make([]models.Event, 0, len(raws))
	for i := range raws {
		event, ok := n.normalizeRecord(sourceName, &profile, &raws[i])
		if !ok {
			stats.Rejected++
			continue
		}
		stats.Accepted++
		events = append(events, event)
	}
	return events, stats, nil
}

// normalizeRecord validates one raw record. A false return means the
// record is rejected, silently from the session's point of view.
func (n *Normalizer) normalizeRecord(sourceName string, profile *Profile, raw *RawEvent) (models.Event, bool) {
	title := strings.TrimSpace(raw.Title)
	if !titleAcceptable(title) {
		return models.Event{}, false
	}

	start, ok := parseEventTime(raw.Start, profile)
	if !ok {
		return models.Event{}, false
	}

	event := models.Event{
		Title:       title,
		Description: strings.TrimSpace(raw.Description),
		StartTime:   start,
		VenueName:   strings.TrimSpace(raw.VenueName),
		VenueAddr:   strings.TrimSpace(raw.VenueAddr),
		Category:    mapCategory(profile.Categories, raw.Category),
		SourceID:    raw.ID,
		SourceName:  sourceName,
		Provenance:  []string{sourceName},
		ImageURL:    raw.ImageURL,
		ExternalURL: raw.ExternalURL,
		RawPayload:  raw.Raw,
	}

	if end, ok := parseEventTime(raw.End, profile); ok {
		event.EndTime = &end
	}

	if raw.Latitude != nil && raw.Longitude != nil {
		event.Coordinates = &models.Coordinates{
			Latitude:  *raw.Latitude,
			Longitude: *raw.Longitude,
		}
	}

	applyPriceRules(&event, raw)
	return event, true
}

// titleAcceptable rejects empty and placeholder titles.
func titleAcceptable(title string) bool {
	folded := dedupe.Normalize(title)
	if folded == "" {
		return false
	}
	_, blocked := titleBlocklist[folded]
	return !blocked
}

// mapCategory resolves a native category through the profile's lookup
// table. Unmapped values never fail the record.
func mapCategory(table map[string]models.Category, native string) models.Category {
	key := strings.ToLower(strings.TrimSpace(native))
	if mapped, ok := table[key]; ok && mapped.Valid() {
		return mapped
	}
	// A native value that already names a canonical category passes through.
	if c := models.Category(key); c.Valid() {
		return c
	}
	return models.CategoryOther
}

// parseEventTime tries the profile layouts, then the built-ins.
func parseEventTime(value string, profile *Profile) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	loc := profile.Location
	if loc == nil {
		loc = time.UTC
	}

	for _, layout := range profile.TimeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	for _, layout := range builtinLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// applyPriceRules distinguishes free, priced, and price-unknown states.
// Missing price with no free indicator stays unknown, never zero.
func applyPriceRules(event *models.Event, raw *RawEvent) {
	switch {
	case raw.IsFree != nil && *raw.IsFree:
		event.IsFree = true
	case raw.Price != nil && *raw.Price == 0 && raw.IsFree == nil:
		// A literal zero price with no explicit free flag is treated as
		// free; sources that mean "unknown" omit the field instead.
		event.IsFree = true
	case raw.Price != nil:
		price := *raw.Price
		event.Price = &price
		event.Currency = strings.ToUpper(strings.TrimSpace(raw.Currency))
	}
}
