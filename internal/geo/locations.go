package geo

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Location is a curated named place used for "N miles from X" captions.
type Location struct {
	Name      string
	LocalName string
	Lat       float64
	Lng       float64
}

// rawLocation mirrors the on-disk city list, where coordinates may be strings.
type rawLocation struct {
	Name      string     `yaml:"city"`
	LocalName string     `yaml:"city_mm"`
	Lat       *flexFloat `yaml:"lat"`
	Lng       *flexFloat `yaml:"lng"`
}

type flexFloat float64

func (f *flexFloat) UnmarshalYAML(node *yaml.Node) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(node.Value), 64)
	if err != nil {
		return fmt.Errorf("line %d: invalid coordinate %q", node.Line, node.Value)
	}
	*f = flexFloat(v)
	return nil
}

// LoadLocations reads a YAML or JSON list of locations from path.
func LoadLocations(path string) (locations []Location, skipped int, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read locations file: %w", err)
	}
	return ParseLocations(b)
}

// ParseLocations decodes a YAML or JSON list of locations. Entries without a
// name, with missing or unparseable coordinates, or out of range are skipped;
// skipped reports how many.
func ParseLocations(data []byte) (locations []Location, skipped int, err error) {
	var nodes []yaml.Node
	if err := yaml.Unmarshal(data, &nodes); err != nil {
		return nil, 0, fmt.Errorf("failed to parse locations: %w", err)
	}

	locations = make([]Location, 0, len(nodes))
	for i := range nodes {
		var raw rawLocation
		if err := nodes[i].Decode(&raw); err != nil || raw.Name == "" || raw.Lat == nil || raw.Lng == nil {
			skipped++
			continue
		}
		loc := Location{
			Name:      raw.Name,
			LocalName: raw.LocalName,
			Lat:       float64(*raw.Lat),
			Lng:       float64(*raw.Lng),
		}
		if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
			skipped++
			continue
		}
		locations = append(locations, loc)
	}
	return locations, skipped, nil
}
