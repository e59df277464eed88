// Eventscope - Multi-Source Event Discovery and Streaming Aggregation
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscope

package normalize

import (
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/eventscope/internal/models"
)

// builtinProfiles maps a source's configured kind to its provider profile.
// A source whose kind is absent here (or empty) falls through to the
// generic alias decoder with pass-through categories. Keys in the category
// tables are lowercase; mapCategory folds the native value before lookup.
var builtinProfiles = map[string]Profile{
	"ticketmaster": {
		Decode: ticketmasterDecode,
		Categories: map[string]models.Category{
			"music":          models.CategoryMusic,
			"sports":         models.CategorySports,
			"arts & theatre": models.CategoryCultural,
			"film":           models.CategoryCultural,
			"miscellaneous":  models.CategoryOther,
		},
	},
	"eventbrite": {
		Decode: eventbriteDecode,
		Categories: map[string]models.Category{
			"music":                       models.CategoryMusic,
			"performing & visual arts":    models.CategoryCultural,
			"film, media & entertainment": models.CategoryCultural,
			"community & culture":         models.CategoryCultural,
			"science & technology":        models.CategoryTech,
			"sports & fitness":            models.CategorySports,
		},
	},
	"meetup": {
		Categories: map[string]models.Category{
			"technology":       models.CategoryTech,
			"music":            models.CategoryMusic,
			"social":           models.CategoryParty,
			"sports & fitness": models.CategorySports,
			"arts & culture":   models.CategoryCultural,
		},
		TimeLayouts: []string{"2006-01-02T15:04:05-0700"},
	},
}

// ProfileFor returns the built-in profile for a source kind. The second
// return is false for unknown kinds, which should use the zero Profile.
func ProfileFor(kind string) (Profile, bool) {
	p, ok := builtinProfiles[kind]
	return p, ok
}

// ticketmasterDecode unwraps the Discovery API envelope: events under
// _embedded.events, each venue under its own nested _embedded.
func ticketmasterDecode(payload json.RawMessage) ([]RawEvent, error) {
	var env struct {
		Embedded struct {
			Events []struct {
				ID    string `json:"id"`
				Name  string `json:"name"`
				Info  string `json:"info"`
				URL   string `json:"url"`
				Dates struct {
					Start struct {
						DateTime  string `json:"dateTime"`
						LocalDate string `json:"localDate"`
					} `json:"start"`
				} `json:"dates"`
				Classifications []struct {
					Segment struct {
						Name string `json:"name"`
					} `json:"segment"`
				} `json:"classifications"`
				PriceRanges []struct {
					Min      float64 `json:"min"`
					Currency string  `json:"currency"`
				} `json:"priceRanges"`
				Images []struct {
					URL string `json:"url"`
				} `json:"images"`
				Embedded struct {
					Venues []struct {
						Name    string `json:"name"`
						Address struct {
							Line1 string `json:"line1"`
						} `json:"address"`
						Location struct {
							Latitude  string `json:"latitude"`
							Longitude string `json:"longitude"`
						} `json:"location"`
					} `json:"venues"`
				} `json:"_embedded"`
			} `json:"events"`
		} `json:"_embedded"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}

	raws := make([]RawEvent, 0, len(env.Embedded.Events))
	for _, ev := range env.Embedded.Events {
		raw := RawEvent{
			ID:          ev.ID,
			Title:       ev.Name,
			Description: ev.Info,
			Start:       ev.Dates.Start.DateTime,
			ExternalURL: ev.URL,
		}
		if raw.Start == "" {
			raw.Start = ev.Dates.Start.LocalDate
		}
		if len(ev.Classifications) > 0 {
			raw.Category = ev.Classifications[0].Segment.Name
		}
		if len(ev.PriceRanges) > 0 {
			minPrice := ev.PriceRanges[0].Min
			raw.Price = &minPrice
			raw.Currency = ev.PriceRanges[0].Currency
		}
		if len(ev.Images) > 0 {
			raw.ImageURL = ev.Images[0].URL
		}
		if len(ev.Embedded.Venues) > 0 {
			venue := ev.Embedded.Venues[0]
			raw.VenueName = venue.Name
			raw.VenueAddr = venue.Address.Line1
			if lat, err := strconv.ParseFloat(venue.Location.Latitude, 64); err == nil {
				if lon, err := strconv.ParseFloat(venue.Location.Longitude, 64); err == nil {
					raw.Latitude = &lat
					raw.Longitude = &lon
				}
			}
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

// eventbriteDecode handles the v3 events list with category and venue
// expansions. Times come from the utc pair, already zoned.
func eventbriteDecode(payload json.RawMessage) ([]RawEvent, error) {
	var env struct {
		Events []struct {
			ID   string `json:"id"`
			URL  string `json:"url"`
			Name struct {
				Text string `json:"text"`
			} `json:"name"`
			Description struct {
				Text string `json:"text"`
			} `json:"description"`
			Start struct {
				UTC string `json:"utc"`
			} `json:"start"`
			End struct {
				UTC string `json:"utc"`
			} `json:"end"`
			IsFree   bool `json:"is_free"`
			Category struct {
				Name string `json:"name"`
			} `json:"category"`
			Logo struct {
				URL string `json:"url"`
			} `json:"logo"`
			Venue struct {
				Name    string `json:"name"`
				Address struct {
					LocalizedAddressDisplay string `json:"localized_address_display"`
				} `json:"address"`
				Latitude  string `json:"latitude"`
				Longitude string `json:"longitude"`
			} `json:"venue"`
		} `json:"events"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, err
	}

	raws := make([]RawEvent, 0, len(env.Events))
	for _, ev := range env.Events {
		free := ev.IsFree
		raw := RawEvent{
			ID:          ev.ID,
			Title:       ev.Name.Text,
			Description: ev.Description.Text,
			Start:       ev.Start.UTC,
			End:         ev.End.UTC,
			VenueName:   ev.Venue.Name,
			VenueAddr:   ev.Venue.Address.LocalizedAddressDisplay,
			Category:    ev.Category.Name,
			IsFree:      &free,
			ImageURL:    ev.Logo.URL,
			ExternalURL: ev.URL,
		}
		if lat, err := strconv.ParseFloat(ev.Venue.Latitude, 64); err == nil {
			if lon, err := strconv.ParseFloat(ev.Venue.Longitude, 64); err == nil {
				raw.Latitude = &lat
				raw.Longitude = &lon
			}
		}
		raws = append(raws, raw)
	}
	return raws, nil
}
