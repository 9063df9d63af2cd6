package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/rewired-gh/quakewatch/internal/models"
)

// GeoJSONAdapter reads a USGS-style summary feed: a FeatureCollection of
// points with [lon, lat, depth] coordinates and mag/place/time/url properties.
type GeoJSONAdapter struct{}

func (GeoJSONAdapter) Name() string { return "geojson" }

type rawCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// orb points are 2D, so depth is read from the raw coordinates.
type rawGeometry struct {
	Geometry struct {
		Coordinates []float64 `json:"coordinates"`
	} `json:"geometry"`
}

func (GeoJSONAdapter) Parse(data []byte) ([]models.Quake, []error, error) {
	var fc rawCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, nil, err
	}
	if fc.Type != "FeatureCollection" {
		return nil, nil, fmt.Errorf("unexpected geojson type %q", fc.Type)
	}

	quakes := make([]models.Quake, 0, len(fc.Features))
	var skipped []error
	for i, raw := range fc.Features {
		q, err := quakeFromFeature(raw)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("feature %d: %w", i, err))
			continue
		}
		quakes = append(quakes, q)
	}
	return quakes, skipped, nil
}

func quakeFromFeature(raw json.RawMessage) (models.Quake, error) {
	f, err := geojson.UnmarshalFeature(raw)
	if err != nil {
		return models.Quake{}, fmt.Errorf("%w: %v", models.ErrParseFailure, err)
	}
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return models.Quake{}, fmt.Errorf("%w: geometry is %T, want point", models.ErrParseFailure, f.Geometry)
	}
	var g rawGeometry
	if err := json.Unmarshal(raw, &g); err != nil || len(g.Geometry.Coordinates) < 3 {
		return models.Quake{}, fmt.Errorf("%w: missing depth coordinate", models.ErrParseFailure)
	}

	id, _ := f.ID.(string)
	mag := f.Properties.MustFloat64("mag", -1)
	millis := f.Properties.MustFloat64("time", 0)
	if mag < 0 || millis <= 0 {
		return models.Quake{}, fmt.Errorf("%w: %s: missing mag or time", models.ErrParseFailure, id)
	}

	q := models.Quake{
		ID:        id,
		Latitude:  pt.Lat(),
		Longitude: pt.Lon(),
		Magnitude: mag,
		DepthKm:   g.Geometry.Coordinates[2],
		OriginRaw: time.UnixMilli(int64(millis)).UTC().Format(time.RFC3339),
		Title:     f.Properties.MustString("place", ""),
		SourceURL: f.Properties.MustString("url", ""),
	}
	// USGS reports shallow events with slightly negative depths.
	if q.DepthKm < 0 {
		q.DepthKm = 0
	}
	if err := q.Validate(); err != nil {
		return models.Quake{}, err
	}
	return q, nil
}
