package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/quakewatch/internal/models"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:geo="http://www.w3.org/2003/01/geo/wgs84_pos#" xmlns:tmd="https://earthquake.tmd.go.th/rss/">
<channel>
  <title>TMD Earthquake</title>
  <link>https://earthquake.tmd.go.th</link>
  <item>
    <title>ประเทศเมียนมา</title>
    <link>https://earthquake.tmd.go.th/inside-info.html?earthquake=Q3</link>
    <geo:lat>21.7</geo:lat>
    <geo:long>96.0</geo:long>
    <tmd:magnitude>4.6</tmd:magnitude>
    <tmd:depth>10</tmd:depth>
    <tmd:time>2025-04-25 12:10:00 UTC</tmd:time>
  </item>
  <item>
    <title>Broken entry</title>
    <link>https://earthquake.tmd.go.th/inside-info.html?earthquake=BAD</link>
    <geo:lat>not-a-number</geo:lat>
    <geo:long>96.0</geo:long>
    <tmd:magnitude>3.1</tmd:magnitude>
    <tmd:depth>5</tmd:depth>
    <tmd:time>2025-04-25 12:05:00 UTC</tmd:time>
  </item>
  <item>
    <title>Andaman Sea</title>
    <link>https://earthquake.tmd.go.th/inside-info.html?earthquake=Q2</link>
    <geo:lat>12.5</geo:lat>
    <geo:long>94.1</geo:long>
    <tmd:magnitude>3.2</tmd:magnitude>
    <tmd:depth>35</tmd:depth>
    <tmd:time>2025-04-25 12:00:00 UTC</tmd:time>
  </item>
  <item>
    <title>Laos</title>
    <guid>Q1</guid>
    <geo:lat>19.9</geo:lat>
    <geo:long>102.1</geo:long>
    <tmd:magnitude>2.1</tmd:magnitude>
    <tmd:depth>7</tmd:depth>
    <tmd:time>2025-04-25 11:50:00 UTC</tmd:time>
  </item>
</channel>
</rss>`

const sampleGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "us2",
     "properties": {"mag": 5.1, "place": "30 km SW of Mandalay, Myanmar", "time": 1745582400000, "url": "https://earthquake.usgs.gov/us2"},
     "geometry": {"type": "Point", "coordinates": [95.9, 21.8, 12.5]}},
    {"type": "Feature", "id": "us-line",
     "properties": {"mag": 4.0, "time": 1745582000000},
     "geometry": {"type": "LineString", "coordinates": [[95.0, 21.0], [96.0, 22.0]]}},
    {"type": "Feature", "id": "us1",
     "properties": {"mag": 3.3, "place": "Shan, Myanmar", "time": 1745581800000, "url": "https://earthquake.usgs.gov/us1"},
     "geometry": {"type": "Point", "coordinates": [97.5, 20.1, -0.4]}}
  ]
}`

func ids(qs []models.Quake) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func TestRSSAdapter_Parse(t *testing.T) {
	quakes, skipped, err := RSSAdapter{}.Parse([]byte(sampleRSS))
	require.NoError(t, err)
	require.Len(t, skipped, 1)
	assert.ErrorIs(t, skipped[0], models.ErrParseFailure)

	if diff := cmp.Diff([]string{"Q3", "Q2", "Q1"}, ids(quakes)); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}

	q := quakes[0]
	assert.Equal(t, 21.7, q.Latitude)
	assert.Equal(t, 96.0, q.Longitude)
	assert.Equal(t, 4.6, q.Magnitude)
	assert.Equal(t, 10.0, q.DepthKm)
	assert.Equal(t, "2025-04-25 12:10:00 UTC", q.OriginRaw)
	assert.Equal(t, "ประเทศเมียนมา", q.Title)
	assert.Equal(t, "https://earthquake.tmd.go.th/inside-info.html?earthquake=Q3", q.SourceURL)
}

func TestRSSAdapter_SkipsNonFiniteValues(t *testing.T) {
	item := func(id, mag, depth string) string {
		return `<item><title>Myanmar</title>` +
			`<link>https://earthquake.tmd.go.th/inside-info.html?earthquake=` + id + `</link>` +
			`<geo:lat>21.9</geo:lat><geo:long>96.1</geo:long>` +
			`<tmd:magnitude>` + mag + `</tmd:magnitude><tmd:depth>` + depth + `</tmd:depth>` +
			`<tmd:time>2025-04-25 12:00:00 UTC</tmd:time></item>`
	}
	feed := `<?xml version="1.0"?><rss version="2.0" xmlns:geo="http://www.w3.org/2003/01/geo/wgs84_pos#" xmlns:tmd="https://earthquake.tmd.go.th/rss/"><channel><title>t</title>` +
		item("NAN", "NaN", "10") + item("INF", "4.0", "+Inf") + item("OK", "4.5", "10") +
		`</channel></rss>`

	quakes, skipped, err := RSSAdapter{}.Parse([]byte(feed))
	require.NoError(t, err)
	require.Len(t, skipped, 2)
	for _, e := range skipped {
		assert.ErrorIs(t, e, models.ErrParseFailure)
	}
	assert.Equal(t, []string{"OK"}, ids(quakes))
}

func TestRSSAdapter_NotAFeed(t *testing.T) {
	_, _, err := RSSAdapter{}.Parse([]byte("<html><body>maintenance</body></html>"))
	assert.Error(t, err)
}

func TestGeoJSONAdapter_Parse(t *testing.T) {
	quakes, skipped, err := GeoJSONAdapter{}.Parse([]byte(sampleGeoJSON))
	require.NoError(t, err)
	assert.Len(t, skipped, 1, "the line feature is skipped")
	require.Len(t, quakes, 2)

	q := quakes[0]
	assert.Equal(t, "us2", q.ID)
	assert.Equal(t, 21.8, q.Latitude)
	assert.Equal(t, 95.9, q.Longitude)
	assert.Equal(t, 12.5, q.DepthKm)
	assert.Equal(t, 5.1, q.Magnitude)
	assert.Equal(t, "2025-04-25T12:00:00Z", q.OriginRaw)
	assert.Equal(t, "30 km SW of Mandalay, Myanmar", q.Title)

	assert.Equal(t, 0.0, quakes[1].DepthKm, "negative depth is clamped")
}

func TestGeoJSONAdapter_WrongType(t *testing.T) {
	_, _, err := GeoJSONAdapter{}.Parse([]byte(`{"type": "Feature"}`))
	assert.Error(t, err)
}

func TestNewAdapter(t *testing.T) {
	for format, want := range map[string]string{"": "rss", "rss": "rss", "geojson": "geojson"} {
		a, err := NewAdapter(format)
		require.NoError(t, err)
		assert.Equal(t, want, a.Name())
	}
	_, err := NewAdapter("atom")
	assert.Error(t, err)
}

func TestPoller_OldestFirst(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(sampleRSS))
	}))
	defer srv.Close()

	p := NewPoller(NewClient(ClientConfig{URL: srv.URL, Timeout: 5 * time.Second}), RSSAdapter{})
	quakes, err := p.FetchQuakes(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"Q1", "Q2", "Q3"}, ids(quakes)); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestPoller_ParseFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{{{"))
	}))
	defer srv.Close()

	p := NewPoller(NewClient(ClientConfig{URL: srv.URL, Timeout: 5 * time.Second}), GeoJSONAdapter{})
	_, err := p.FetchQuakes(context.Background())
	assert.ErrorIs(t, err, models.ErrParseFailure)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{URL: srv.URL, Timeout: time.Second, MaxRetries: 3, RetryDelay: time.Millisecond})
	body, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{URL: srv.URL, Timeout: time.Second, MaxRetries: 3, RetryDelay: time.Millisecond})
	_, err := c.Fetch(context.Background())
	assert.True(t, errors.Is(err, models.ErrFeedUnavailable))
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(ClientConfig{URL: url, Timeout: time.Second, MaxRetries: 2, RetryDelay: time.Millisecond})
	_, err := c.Fetch(context.Background())
	assert.ErrorIs(t, err, models.ErrFeedUnavailable)
}
