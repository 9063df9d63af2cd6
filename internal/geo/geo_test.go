package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLocations = []Location{
	{Name: "Yangon", LocalName: "ရန်ကုန်", Lat: 16.8409, Lng: 96.1735},
	{Name: "Naypyitaw", LocalName: "နေပြည်တော်", Lat: 19.7633, Lng: 96.0785},
	{Name: "Mandalay", LocalName: "မန္တလေး", Lat: 21.9588, Lng: 96.0891},
}

func TestHaversineKm_SamePoint(t *testing.T) {
	assert.Equal(t, 0.0, HaversineKm(16.8, 96.1, 16.8, 96.1))
}

func TestHaversineKm_YangonMandalay(t *testing.T) {
	d := HaversineKm(16.8409, 96.1735, 21.9588, 96.0891)
	assert.InDelta(t, 569.5, d, 2.0)
	assert.InDelta(t, d, HaversineKm(21.9588, 96.0891, 16.8409, 96.1735), 1e-9, "distance must be symmetric")
}

func TestConvert(t *testing.T) {
	assert.InDelta(t, 62.1371, Convert(100, Miles), 1e-9)
	assert.Equal(t, 100.0, Convert(100, Kilometres))
}

func TestNearest(t *testing.T) {
	got, ok := Nearest(21.9, 96.1, testLocations, Miles)
	require.True(t, ok)
	assert.Equal(t, "Mandalay", got.Name)
	assert.Equal(t, "မန္တလေး", got.LocalName)
	assert.Equal(t, "mi", got.Unit)

	wantMiles := int(math.Round(HaversineKm(21.9, 96.1, 21.9588, 96.0891) * milesPerKm))
	assert.Equal(t, wantMiles, got.Distance)

	gotKm, _ := Nearest(21.9, 96.1, testLocations, Kilometres)
	assert.Equal(t, int(math.Round(HaversineKm(21.9, 96.1, 21.9588, 96.0891))), gotKm.Distance)
}

func TestNearest_ExactMatchIsZero(t *testing.T) {
	got, ok := Nearest(16.8409, 96.1735, testLocations, Miles)
	require.True(t, ok)
	assert.Equal(t, "Yangon", got.Name)
	assert.Equal(t, 0, got.Distance)
}

func TestNearest_TieKeepsFirst(t *testing.T) {
	locs := []Location{
		{Name: "First", Lat: 20, Lng: 96},
		{Name: "Second", Lat: 20, Lng: 96},
	}
	got, ok := Nearest(20.5, 96.5, locs, Kilometres)
	require.True(t, ok)
	assert.Equal(t, "First", got.Name)
}

func TestNearest_Empty(t *testing.T) {
	_, ok := Nearest(20, 96, nil, Miles)
	assert.False(t, ok)
}

func TestBBoxContains(t *testing.T) {
	myanmar := BBox{MinLat: 9, MaxLat: 29, MinLon: 92, MaxLon: 101}

	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"inside", 19.7, 96.1, true},
		{"on edge", 9, 92, true},
		{"north of box", 30, 96, false},
		{"east of box", 20, 102, false},
		{"bangkok", 13.75, 100.5, true},
		{"tokyo", 35.68, 139.69, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, myanmar.Contains(tt.lat, tt.lon))
		})
	}

	assert.False(t, BBox{}.Contains(0, 0), "unset box contains nothing")
}

func TestParseLocations_JSON(t *testing.T) {
	data := []byte(`[
		{"city": "Yangon", "city_mm": "ရန်ကုန်", "lat": "16.8409", "lng": "96.1735"},
		{"city": "Mandalay", "city_mm": "မန္တလေး", "lat": 21.9588, "lng": 96.0891},
		{"city": "Broken", "lat": "abc", "lng": "96"},
		{"city": "NoCoords"},
		{"city_mm": "no name", "lat": 1, "lng": 1},
		{"city": "Nowhere", "lat": 95, "lng": 1}
	]`)

	locs, skipped, err := ParseLocations(data)
	require.NoError(t, err)
	assert.Equal(t, 4, skipped)
	require.Len(t, locs, 2)
	assert.Equal(t, Location{Name: "Yangon", LocalName: "ရန်ကုန်", Lat: 16.8409, Lng: 96.1735}, locs[0])
	assert.Equal(t, "Mandalay", locs[1].Name)
}

func TestParseLocations_YAML(t *testing.T) {
	data := []byte(`
- city: Bago
  city_mm: ပဲခူး
  lat: 17.3352
  lng: 96.4813
`)
	locs, skipped, err := ParseLocations(data)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, locs, 1)
	assert.Equal(t, "Bago", locs[0].Name)
}

func TestParseLocations_Malformed(t *testing.T) {
	_, _, err := ParseLocations([]byte(`{not: [a list`))
	assert.Error(t, err)
}
