package feed

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/rewired-gh/quakewatch/internal/models"
)

// RSSAdapter reads the TMD-style RSS feed, where each item carries geo:lat,
// geo:long and tmd:magnitude/depth/time extension elements.
type RSSAdapter struct{}

func (RSSAdapter) Name() string { return "rss" }

func (RSSAdapter) Parse(data []byte) ([]models.Quake, []error, error) {
	f, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, err
	}

	quakes := make([]models.Quake, 0, len(f.Items))
	var skipped []error
	for i, item := range f.Items {
		q, err := quakeFromItem(item)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("item %d: %w", i, err))
			continue
		}
		quakes = append(quakes, q)
	}
	return quakes, skipped, nil
}

func quakeFromItem(item *gofeed.Item) (models.Quake, error) {
	if item == nil {
		return models.Quake{}, fmt.Errorf("%w: nil item", models.ErrParseFailure)
	}
	q := models.Quake{
		ID:        itemID(item),
		Title:     strings.TrimSpace(item.Title),
		SourceURL: item.Link,
		OriginRaw: extValue(item.Extensions, "tmd", "time"),
	}

	var errs []error
	for _, f := range []struct {
		dst          *float64
		prefix, name string
	}{
		{&q.Latitude, "geo", "lat"},
		{&q.Longitude, "geo", "long"},
		{&q.Magnitude, "tmd", "magnitude"},
		{&q.DepthKm, "tmd", "depth"},
	} {
		raw := extValue(item.Extensions, f.prefix, f.name)
		if raw == "" {
			errs = append(errs, fmt.Errorf("missing %s:%s", f.prefix, f.name))
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s:%s %q", f.prefix, f.name, raw))
			continue
		}
		*f.dst = v
	}
	if q.OriginRaw == "" {
		errs = append(errs, errors.New("missing tmd:time"))
	}
	if len(errs) > 0 {
		return models.Quake{}, fmt.Errorf("%w: %s: %v", models.ErrParseFailure, q.ID, errors.Join(errs...))
	}
	if err := q.Validate(); err != nil {
		return models.Quake{}, err
	}
	return q, nil
}

// itemID prefers the value after "earthquake=" in the link, then the GUID,
// then the bare link.
func itemID(item *gofeed.Item) string {
	if _, after, ok := strings.Cut(item.Link, "earthquake="); ok && after != "" {
		return strings.TrimSpace(after)
	}
	if item.GUID != "" {
		return strings.TrimSpace(item.GUID)
	}
	return strings.TrimSpace(item.Link)
}

func extValue(exts ext.Extensions, prefix, name string) string {
	if exts == nil {
		return ""
	}
	vals := exts[prefix][name]
	if len(vals) == 0 {
		return ""
	}
	return strings.TrimSpace(vals[0].Value)
}
