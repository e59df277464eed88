// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package dedupe

import (
	"github.com/tomtom215/eventscope/internal/models"
)

// Merge folds a duplicate candidate into the already-accepted event and
// returns the merged record. The first-seen SourceID/SourceName are kept
// for traceability; every contributing source lands in Provenance.
//
// Field preferences:
//   - Description: the longer non-empty text wins
//   - ImageURL, Coordinates, EndTime: an existing value is kept; a missing
//     one is filled from the candidate
//   - Price: an existing price is kept; a price-unknown existing record
//     adopts the candidate's price and free flag
func Merge(existing, candidate *models.Event) models.Event {
	merged := *existing

	if len(candidate.Description) > len(merged.Description) {
		merged.Description = candidate.Description
	}
	if merged.ImageURL == "" {
		merged.ImageURL = candidate.ImageURL
	}
	if merged.ExternalURL == "" {
		merged.ExternalURL = candidate.ExternalURL
	}
	if merged.Coordinates == nil {
		merged.Coordinates = candidate.Coordinates
	}
	if merged.EndTime == nil {
		merged.EndTime = candidate.EndTime
	}
	if merged.VenueAddr == "" {
		merged.VenueAddr = candidate.VenueAddr
	}
	if merged.Price == nil && !merged.IsFree {
		merged.Price = candidate.Price
		merged.Currency = candidate.Currency
		merged.IsFree = candidate.IsFree
	}
	if merged.Category == models.CategoryOther && candidate.Category != models.CategoryOther {
		merged.Category = candidate.Category
	}

	merged.Provenance = appendProvenance(merged.Provenance, existing.SourceName)
	merged.Provenance = appendProvenance(merged.Provenance, candidate.SourceName)
	return merged
}

// appendProvenance adds a source name if it is not already recorded.
func appendProvenance(list []string, source string) []string {
	for _, s := range list {
		if s == source {
			return list
		}
	}
	return append(list, source)
}
