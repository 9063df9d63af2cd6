// Package monitor decides what happens to each quake and records it exactly once.
package monitor

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/rewired-gh/quakewatch/internal/geo"
	"github.com/rewired-gh/quakewatch/internal/models"
)

type ClassifierConfig struct {
	MinReportMagnitude      float64
	MinAlertMagnitudeGlobal float64
	RegionBBox              geo.BBox
	RegionKeywords          []string
}

func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		MinReportMagnitude:      2.0,
		MinAlertMagnitudeGlobal: 3.0,
		RegionBBox:              geo.BBox{MinLat: 9, MaxLat: 29, MinLon: 92, MaxLon: 101},
		RegionKeywords:          []string{"Myanmar", "เมียนมา"},
	}
}

// Classifier is a pure function of the quake and its configuration.
type Classifier struct {
	config   ClassifierConfig
	keywords []string
}

func NewClassifier(config ClassifierConfig) *Classifier {
	c := &Classifier{config: config}
	for _, kw := range config.RegionKeywords {
		if n := foldText(kw); n != "" {
			c.keywords = append(c.keywords, n)
		}
	}
	return c
}

// Classify applies, in order: below the report floor is ignored; outside the
// region and below the global alert floor is recorded only; anything else alerts.
func (c *Classifier) Classify(q models.Quake) models.Decision {
	if q.Magnitude < c.config.MinReportMagnitude {
		return models.Ignore
	}
	if !c.InRegion(q) && q.Magnitude < c.config.MinAlertMagnitudeGlobal {
		return models.RecordOnly
	}
	return models.Alert
}

// InRegion is true when the epicentre is inside the region box or the title
// names the region. Either signal alone is enough.
func (c *Classifier) InRegion(q models.Quake) bool {
	if c.config.RegionBBox.Contains(q.Latitude, q.Longitude) {
		return true
	}
	if len(c.keywords) == 0 || q.Title == "" {
		return false
	}
	title := foldText(q.Title)
	for _, kw := range c.keywords {
		if strings.Contains(title, kw) {
			return true
		}
	}
	return false
}

// foldText lowercases s and strips combining marks so that keyword matching
// ignores case and diacritics.
func foldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	res, _, err := transform.String(t, s)
	if err != nil {
		res = s
	}
	return strings.ToLower(strings.TrimSpace(res))
}
