// Package models defines the core domain entities: quakes, event records, and alert metadata.
package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Quake is a single upstream seismic event as parsed from the feed.
// It is never modified after parsing.
type Quake struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Magnitude float64 `json:"magnitude"`
	DepthKm   float64 `json:"depth_km"`
	OriginRaw string  `json:"origin_raw"`
	Title     string  `json:"title"`
	SourceURL string  `json:"source_url"`
}

// Validate checks required fields and value ranges.
func (q *Quake) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("%w: quake id must not be empty", ErrParseFailure)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{{"latitude", q.Latitude}, {"longitude", q.Longitude}, {"magnitude", q.Magnitude}, {"depth", q.DepthKm}} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s %v is not a finite number", ErrParseFailure, f.name, f.v)
		}
	}
	if q.Latitude < -90 || q.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrParseFailure, q.Latitude)
	}
	if q.Longitude < -180 || q.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrParseFailure, q.Longitude)
	}
	if q.Magnitude < 0 {
		return fmt.Errorf("%w: magnitude must not be negative", ErrParseFailure)
	}
	if q.DepthKm < 0 {
		return fmt.Errorf("%w: depth must not be negative", ErrParseFailure)
	}
	return nil
}

// OriginTime parses the feed-supplied origin time as UTC.
func (q *Quake) OriginTime() (time.Time, error) {
	return ParseOriginTime(q.OriginRaw)
}

var originLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	time.RFC3339Nano,
	time.RFC3339,
}

// ParseOriginTime accepts the textual formats seen across feeds, optionally
// suffixed with "UTC", and returns the instant in UTC.
func ParseOriginTime(raw string) (time.Time, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimSpace(strings.TrimSuffix(clean, "UTC"))
	if clean == "" {
		return time.Time{}, fmt.Errorf("%w: empty origin time", ErrParseFailure)
	}
	for _, layout := range originLayouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unrecognised origin time %q", ErrParseFailure, raw)
}
