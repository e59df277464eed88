// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package normalize

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// Field aliases recognized by the generic decoder, in lookup order.
// Discovery APIs disagree on naming far more than on structure, so one
// alias-tolerant decoder covers most JSON sources without a custom Decoder.
var (
	aliasID       = []string{"id", "event_id", "uid", "identifier"}
	aliasTitle    = []string{"title", "name", "event_name", "headline"}
	aliasDesc     = []string{"description", "summary", "details", "body"}
	aliasStart    = []string{"start_time", "start", "starts_at", "date", "datetime", "start_date", "time"}
	aliasEnd      = []string{"end_time", "end", "ends_at", "end_date"}
	aliasVenue    = []string{"venue_name", "venue", "location_name", "place"}
	aliasAddr     = []string{"venue_address", "address", "location_address"}
	aliasLat      = []string{"latitude", "lat"}
	aliasLon      = []string{"longitude", "lon", "lng"}
	aliasCategory = []string{"category", "type", "genre", "segment"}
	aliasPrice    = []string{"price", "cost", "ticket_price", "min_price"}
	aliasCurrency = []string{"currency", "currency_code"}
	aliasFree     = []string{"is_free", "free"}
	aliasImage    = []string{"image_url", "image", "thumbnail", "cover"}
	aliasURL      = []string{"external_url", "url", "link", "event_url"}
)

// GenericDecode handles the common case of a JSON payload that is either
// a bare array of event objects or an object wrapping one under "events",
// "results", "items", or "data". Field names are resolved through alias
// lists; values that cannot be coerced are left empty for validation to
// judge.
func GenericDecode(payload json.RawMessage) ([]RawEvent, error) {
	records, err := extractRecords(payload)
	if err != nil {
		return nil, err
	}

	raws := make([]RawEvent, 0, len(records))
	for _, rec := range records {
		raw := RawEvent{
			ID:          lookupString(rec, aliasID),
			Title:       lookupString(rec, aliasTitle),
			Description: lookupString(rec, aliasDesc),
			Start:       lookupString(rec, aliasStart),
			End:         lookupString(rec, aliasEnd),
			VenueName:   lookupString(rec, aliasVenue),
			VenueAddr:   lookupString(rec, aliasAddr),
			Latitude:    lookupFloat(rec, aliasLat),
			Longitude:   lookupFloat(rec, aliasLon),
			Category:    lookupString(rec, aliasCategory),
			Price:       lookupFloat(rec, aliasPrice),
			Currency:    lookupString(rec, aliasCurrency),
			IsFree:      lookupBool(rec, aliasFree),
			ImageURL:    lookupString(rec, aliasImage),
			ExternalURL: lookupString(rec, aliasURL),
		}
		if blob, err := json.Marshal(rec); err == nil {
			raw.Raw = blob
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

// extractRecords accepts both bare arrays and common wrapper objects.
func extractRecords(payload json.RawMessage) ([]map[string]interface{}, error) {
	var direct []map[string]interface{}
	if err := json.Unmarshal(payload, &direct); err == nil {
		return direct, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(payload, &wrapper); err != nil {
		return nil, fmt.Errorf("payload is neither an array nor an object: %w", err)
	}

	for _, key := range []string{"events", "results", "items", "data"} {
		inner, ok := wrapper[key]
		if !ok {
			continue
		}
		var records []map[string]interface{}
		if err := json.Unmarshal(inner, &records); err != nil {
			return nil, fmt.Errorf("wrapper key %q is not an event array: %w", key, err)
		}
		return records, nil
	}
	return nil, fmt.Errorf("no recognized event array in payload")
}

func lookupString(rec map[string]interface{}, aliases []string) string {
	for _, key := range aliases {
		switch v := rec[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func lookupFloat(rec map[string]interface{}, aliases []string) *float64 {
	for _, key := range aliases {
		switch v := rec[key].(type) {
		case float64:
			f := v
			return &f
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func lookupBool(rec map[string]interface{}, aliases []string) *bool {
	for _, key := range aliases {
		if v, ok := rec[key].(bool); ok {
			b := v
			return &b
		}
	}
	return nil
}
