package feed

import (
	"context"
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/rewired-gh/quakewatch/internal/logger"
	"github.com/rewired-gh/quakewatch/internal/models"
)

// Adapter turns one feed document into quakes in feed order. Entries that
// cannot be parsed are returned in skipped rather than failing the batch; err
// is reserved for documents that cannot be read at all.
type Adapter interface {
	Name() string
	Parse(data []byte) (quakes []models.Quake, skipped []error, err error)
}

// NewAdapter returns the adapter for a configured format name.
func NewAdapter(format string) (Adapter, error) {
	switch format {
	case "", "rss":
		return RSSAdapter{}, nil
	case "geojson":
		return GeoJSONAdapter{}, nil
	default:
		return nil, fmt.Errorf("unknown feed format %q", format)
	}
}

// Fetcher is the part of Client the Poller needs.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
}

type Poller struct {
	fetcher Fetcher
	adapter Adapter
}

func NewPoller(fetcher Fetcher, adapter Adapter) *Poller {
	return &Poller{fetcher: fetcher, adapter: adapter}
}

// FetchQuakes returns the current feed contents oldest-first. Feeds list the
// newest entry first, so the adapter's order is reversed.
func (p *Poller) FetchQuakes(ctx context.Context) ([]models.Quake, error) {
	body, err := p.fetcher.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	quakes, skipped, err := p.adapter.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s feed: %v", models.ErrParseFailure, p.adapter.Name(), err)
	}
	for _, e := range skipped {
		logger.With(logrus.Fields{"stage": "feed", "format": p.adapter.Name()}).
			Warnf("Skipping malformed entry: %v", e)
	}

	slices.Reverse(quakes)
	return quakes, nil
}
