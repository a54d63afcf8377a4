package models

import (
	"encoding/json"
	"strings"
	"time"
)

// LocationQuery identifies the place to geocode. Built once from config.
type LocationQuery struct {
	City    string `json:"city"`
	State   string `json:"state,omitempty"`
	Country string `json:"country"`
	Limit   int    `json:"limit"`
}

// Q renders the geocoding "q" parameter as city,state,country. Empty parts are skipped.
func (q LocationQuery) Q() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{q.City, q.State, q.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ",")
}

// Coordinates is a resolved position. A nil *Coordinates means resolution failed.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WeatherSnapshot carries the current-weather body exactly as the provider returned it.
// A nil *WeatherSnapshot means the fetch failed.
type WeatherSnapshot struct {
	Raw         json.RawMessage `json:"raw"`
	Coordinates Coordinates     `json:"coordinates"`
	FetchedAt   time.Time       `json:"fetchedAt"`
}
