// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

// Package dedupe decides whether a newly normalized event describes the
// same real-world event as one already accepted in the session, and merges
// the two when it does.
//
// The matching policy is applied in order, short-circuiting on the first
// confident signal:
//
//  1. Same normalized venue, start time rounded to the hour, and title
//     similarity >= TitleThreshold: duplicate.
//  2. Same calendar date and venue-name similarity >= VenueThreshold:
//     duplicate — but only across different sources. Same-source feeds are
//     assumed already internally deduplicated.
//  3. Otherwise distinct, even when the events come from different sources.
package dedupe

import (
	"strings"
	"time"

	"github.com/tomtom215/eventscope/internal/models"
)

// Default thresholds. These are configuration, not constants baked into the
// matcher, so they can be tuned without touching orchestrator logic.
const (
	DefaultTitleThreshold = 0.85
	DefaultVenueThreshold = 0.90
)

// Config tunes the matcher.
type Config struct {
	// TitleThreshold is the minimum title similarity for rule 1.
	TitleThreshold float64

	// VenueThreshold is the minimum venue-name similarity for rule 2.
	VenueThreshold float64

	// Similarity is the scoring function. Nil selects TokenSetSimilarity.
	Similarity Similarity
}

// entry is one accepted event plus its precomputed match keys.
type entry struct {
	index      int
	venueNorm  string
	titleBare  string
	hourKey    time.Time
	sourceName string
}

// Matcher indexes accepted events by calendar date so a candidate is only
// compared against events that could plausibly collide with it, instead of
// the whole accepted set. One Matcher serves one session and is not safe
// for concurrent use; the orchestrator's consumer goroutine owns it.
type Matcher struct {
	cfg     Config
	sim     Similarity
	byDate  map[string][]entry
	entries int
}

// NewMatcher creates a session-scoped matcher.
func NewMatcher(cfg Config) *Matcher {
	if cfg.TitleThreshold == 0 {
		cfg.TitleThreshold = DefaultTitleThreshold
	}
	if cfg.VenueThreshold == 0 {
		cfg.VenueThreshold = DefaultVenueThreshold
	}
	sim := cfg.Similarity
	if sim == nil {
		sim = TokenSetSimilarity
	}
	return &Matcher{
		cfg:    cfg,
		sim:    sim,
		byDate: make(map[string][]entry),
	}
}

// Len returns the number of indexed events.
func (m *Matcher) Len() int {
	return m.entries
}

// Match returns the index of the accepted event the candidate duplicates,
// or -1 when the candidate is distinct.
func (m *Matcher) Match(candidate *models.Event) int {
	ce := m.keysFor(candidate, -1)

	for _, ex := range m.byDate[dateKey(candidate.StartTime)] {
		if m.isDuplicate(&ex, &ce) {
			return ex.index
		}
	}
	return -1
}

// Add indexes an accepted event under its position in the accepted set.
func (m *Matcher) Add(e *models.Event, index int) {
	key := dateKey(e.StartTime)
	m.byDate[key] = append(m.byDate[key], m.keysFor(e, index))
	m.entries++
}

// isDuplicate applies the ordered matching rules to a pair of entries.
// Every signal used here is symmetric, so the result does not depend on
// which event was accepted first.
func (m *Matcher) isDuplicate(a, b *entry) bool {
	// Rule 1: exact venue + same hour. Title similarity is the deciding
	// signal for this pair either way: a dissimilar title at the same
	// venue and hour means two different back-to-back shows, and rule 2
	// must not overrule that.
	if a.venueNorm != "" && a.venueNorm == b.venueNorm && a.hourKey.Equal(b.hourKey) {
		return m.sim(a.titleBare, b.titleBare) >= m.cfg.TitleThreshold
	}

	// Rule 2: same date + very similar venue, cross-source only.
	if a.sourceName == b.sourceName {
		return false
	}
	if a.venueNorm == "" || b.venueNorm == "" {
		return false
	}
	return m.sim(a.venueNorm, b.venueNorm) >= m.cfg.VenueThreshold
}

// keysFor precomputes the candidate's match keys. The bare title has the
// venue's tokens removed, so "Jazz Nite @ Blue Note" and "Jazz Night"
// compare on the show name alone.
func (m *Matcher) keysFor(e *models.Event, index int) entry {
	return entry{
		index:      index,
		venueNorm:  Normalize(e.VenueName),
		titleBare:  stripVenueTokens(e.Title, e.VenueName),
		hourKey:    e.StartTime.UTC().Round(time.Hour),
		sourceName: e.SourceName,
	}
}

// dateKey buckets events by UTC calendar date. Two events whose hours
// round across a UTC midnight boundary land in different buckets and are
// never compared.
func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// stripVenueTokens removes the venue's word tokens from a title. When the
// removal would leave nothing, the full normalized title is kept.
func stripVenueTokens(title, venue string) string {
	venueTokens := make(map[string]struct{})
	for _, tok := range Tokenize(venue) {
		venueTokens[tok] = struct{}{}
	}

	titleTokens := Tokenize(title)
	kept := make([]string, 0, len(titleTokens))
	for _, tok := range titleTokens {
		if _, isVenue := venueTokens[tok]; !isVenue {
			kept = append(kept, tok)
		}
	}
	if len(kept) == 0 {
		return Normalize(title)
	}
	return strings.Join(kept, " ")
}
