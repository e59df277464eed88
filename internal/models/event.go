// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Category is the canonical event category taxonomy. Source-native
// categories are mapped onto this enum during normalization; anything
// unmapped falls back to CategoryOther.
type Category string

const (
	CategoryMusic    Category = "music"
	CategorySports   Category = "sports"
	CategoryCultural Category = "cultural"
	CategoryTech     Category = "tech"
	CategoryParty    Category = "party"
	CategoryOther    Category = "other"
)

// Valid reports whether c is one of the canonical categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryMusic, CategorySports, CategoryCultural, CategoryTech, CategoryParty, CategoryOther:
		return true
	}
	return false
}

// Coordinates is a WGS84 point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Event is the canonical record produced by the aggregation pipeline.
//
// Invariants (enforced by the normalizer, relied on downstream):
//   - Title is non-empty after trimming
//   - StartTime is always present and parseable
//   - SourceID + SourceName uniquely identify the originating raw record
type Event struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	StartTime   time.Time    `json:"start_time"`
	EndTime     *time.Time   `json:"end_time,omitempty"`
	VenueName   string       `json:"venue_name"`
	VenueAddr   string       `json:"venue_address,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Category    Category     `json:"category"`

	// Price is nil when the source carries no price information and no
	// free indicator. "Price unknown" is a distinct state from IsFree.
	Price    *float64 `json:"price,omitempty"`
	Currency string   `json:"currency,omitempty"`
	IsFree   bool     `json:"is_free"`

	SourceID   string `json:"source_id"`
	SourceName string `json:"source_name"`

	// Provenance lists every source that contributed to this event after
	// deduplication. The first entry is always SourceName.
	Provenance []string `json:"provenance,omitempty"`

	ImageURL    string `json:"image_url,omitempty"`
	ExternalURL string `json:"external_url,omitempty"`

	// RawPayload is the source record as received, retained for debugging
	// and audit. Never interpreted downstream of the normalizer.
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`
}

// HasCoordinates reports whether the event carries a geographic position.
func (e *Event) HasCoordinates() bool {
	return e.Coordinates != nil
}
