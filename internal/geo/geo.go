// Package geo provides great-circle distance, region bounds and nearest-place lookup.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/rewired-gh/quakewatch/internal/models"
)

const milesPerKm = 0.621371

// Unit is a display unit for distances.
type Unit string

const (
	Kilometres Unit = "km"
	Miles      Unit = "mi"
)

// Point builds an orb point from latitude/longitude (orb stores lon first).
func Point(lat, lon float64) orb.Point {
	return orb.Point{lon, lat}
}

// HaversineKm returns the great-circle distance between two coordinates in kilometres.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	return geo.DistanceHaversine(Point(lat1, lon1), Point(lat2, lon2)) / 1000
}

// Convert turns kilometres into the given display unit.
func Convert(km float64, unit Unit) float64 {
	if unit == Miles {
		return km * milesPerKm
	}
	return km
}

// BBox is an inclusive latitude/longitude rectangle.
type BBox struct {
	MinLat float64 `mapstructure:"min_lat"`
	MaxLat float64 `mapstructure:"max_lat"`
	MinLon float64 `mapstructure:"min_lon"`
	MaxLon float64 `mapstructure:"max_lon"`
}

// IsZero reports whether the box is unset.
func (b BBox) IsZero() bool {
	return b == BBox{}
}

// Bound converts the box to an orb.Bound.
func (b BBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLon, b.MinLat},
		Max: orb.Point{b.MaxLon, b.MaxLat},
	}
}

// Contains reports whether the coordinate lies inside the box, edges included.
func (b BBox) Contains(lat, lon float64) bool {
	if b.IsZero() {
		return false
	}
	return b.Bound().Contains(Point(lat, lon))
}

// Nearest returns the closest location to (lat, lon). Ties keep the first
// minimum encountered. ok is false when locations is empty.
func Nearest(lat, lon float64, locations []Location, unit Unit) (nearest models.NearestLocation, ok bool) {
	minDist := math.Inf(1)
	for _, loc := range locations {
		d := HaversineKm(lat, lon, loc.Lat, loc.Lng)
		if d < minDist {
			minDist = d
			nearest = models.NearestLocation{
				Name:      loc.Name,
				LocalName: loc.LocalName,
				Unit:      string(unit),
			}
			ok = true
		}
	}
	if ok {
		nearest.Distance = int(math.Round(Convert(minDist, unit)))
	}
	return nearest, ok
}
