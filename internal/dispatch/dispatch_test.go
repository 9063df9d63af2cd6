package dispatch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/quakewatch/internal/geo"
	"github.com/rewired-gh/quakewatch/internal/models"
	"github.com/rewired-gh/quakewatch/internal/observability"
)

var mmt = models.FixedZone("MMT", 6*time.Hour+30*time.Minute)

type fakeRenderer struct {
	dir  string
	err  error
	skip bool // return a path without writing it
	reqs []models.RenderRequest
}

func (f *fakeRenderer) Render(_ context.Context, req models.RenderRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return "", f.err
	}
	p := filepath.Join(f.dir, req.QuakeID+".png")
	if !f.skip {
		if err := os.WriteFile(p, []byte("png"), 0o644); err != nil {
			return "", err
		}
	}
	return p, nil
}

type fakeSocial struct {
	err      error
	captions []string
}

func (f *fakeSocial) PostImage(_ context.Context, _, caption string) (models.PostRef, error) {
	f.captions = append(f.captions, caption)
	if f.err != nil {
		return models.PostRef{}, f.err
	}
	return models.PostRef{PageID: "111", PostID: "222"}, nil
}

type fakeMessenger struct {
	err        error
	captions   []string
	permalinks []string
}

func (f *fakeMessenger) SendQuakePhoto(ctx context.Context, imagePath, caption, permalink string) error {
	if _, err := os.Stat(imagePath); err != nil {
		return err
	}
	f.captions = append(f.captions, caption)
	f.permalinks = append(f.permalinks, permalink)
	return f.err
}

func testQuake(mag float64) (models.Quake, *models.EventRecord) {
	q := models.Quake{
		ID:        "q1",
		Latitude:  21.9,
		Longitude: 96.1,
		Magnitude: mag,
		DepthKm:   10,
		OriginRaw: "2025-04-25 12:00:00 UTC",
	}
	rec, err := models.NewEventRecord(q, models.StatusAlerted, mmt, time.Now())
	if err != nil {
		panic(err)
	}
	return q, rec
}

func newDispatcher(t *testing.T, r Renderer, s SocialPoster, m Messenger) (*Dispatcher, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	d, err := New(Config{
		MinMessagingMagnitude: 3.0,
		Unit:                  geo.Miles,
		Locations: []geo.Location{
			{Name: "Mandalay", LocalName: "မန္တလေး", Lat: 21.9588, Lng: 96.0891},
			{Name: "Yangon", LocalName: "ရန်ကုန်", Lat: 16.8409, Lng: 96.1735},
		},
		Captions: Captioner{Local: mmt},
	}, r, s, m, metrics)
	require.NoError(t, err)
	return d, metrics
}

func steps(m *observability.Metrics, channel, outcome string) float64 {
	return testutil.ToFloat64(m.DispatchSteps.WithLabelValues(channel, outcome))
}

func TestDispatch_AllChannels(t *testing.T) {
	r := &fakeRenderer{dir: t.TempDir()}
	s := &fakeSocial{}
	m := &fakeMessenger{}
	d, metrics := newDispatcher(t, r, s, m)

	q, rec := testQuake(4.5)
	require.NoError(t, d.Dispatch(context.Background(), q, rec))

	require.Len(t, r.reqs, 1)
	assert.Equal(t, 9, r.reqs[0].Zoom)
	assert.Equal(t, 95, r.reqs[0].RingRadius)
	assert.True(t, r.reqs[0].OriginUTC.Equal(time.Date(2025, 4, 25, 12, 0, 0, 0, time.UTC)))

	require.Len(t, s.captions, 1)
	assert.Contains(t, s.captions[0], "🚨 Magnitude 4.5 earthquake near Mandalay")
	assert.Contains(t, s.captions[0], "https://www.google.com/maps?q=21.9,96.1")

	require.Len(t, m.captions, 1)
	assert.Equal(t, "https://www.facebook.com/111/posts/222", m.permalinks[0])
	assert.True(t, strings.HasPrefix(m.captions[0], "🟡 Magnitude 4.5"))

	assert.Equal(t, 1.0, steps(metrics, "messaging", "ok"))

	entries, _ := os.ReadDir(r.dir)
	assert.Empty(t, entries, "rendered image is removed after dispatch")
}

func TestDispatch_SocialFailureSkipsMessaging(t *testing.T) {
	s := &fakeSocial{err: errors.New("graph api down")}
	m := &fakeMessenger{}
	d, metrics := newDispatcher(t, &fakeRenderer{dir: t.TempDir()}, s, m)

	q, rec := testQuake(5.2)
	var err error
	assert.NotPanics(t, func() { err = d.Dispatch(context.Background(), q, rec) })
	assert.ErrorIs(t, err, models.ErrChannelPost)
	assert.Empty(t, m.captions, "messaging must not be attempted")
	assert.Equal(t, 1.0, steps(metrics, "social", "error"))
}

func TestDispatch_RenderFailure(t *testing.T) {
	s := &fakeSocial{}
	d, _ := newDispatcher(t, &fakeRenderer{err: errors.New("map service 403")}, s, &fakeMessenger{})

	q, rec := testQuake(4.0)
	err := d.Dispatch(context.Background(), q, rec)
	assert.ErrorIs(t, err, models.ErrRenderFailure)
	assert.Empty(t, s.captions)
}

func TestDispatch_RenderedFileMissing(t *testing.T) {
	s := &fakeSocial{}
	d, _ := newDispatcher(t, &fakeRenderer{dir: t.TempDir(), skip: true}, s, &fakeMessenger{})

	q, rec := testQuake(4.0)
	assert.ErrorIs(t, d.Dispatch(context.Background(), q, rec), models.ErrRenderFailure)
	assert.Empty(t, s.captions)
}

func TestDispatch_MessagingFailureIsNotReturned(t *testing.T) {
	m := &fakeMessenger{err: errors.New("telegram 502")}
	d, metrics := newDispatcher(t, &fakeRenderer{dir: t.TempDir()}, &fakeSocial{}, m)

	q, rec := testQuake(3.5)
	assert.NoError(t, d.Dispatch(context.Background(), q, rec))
	assert.Equal(t, 1.0, steps(metrics, "messaging", "error"))
}

func TestDispatch_SmallQuakeSkipsMessaging(t *testing.T) {
	s := &fakeSocial{}
	m := &fakeMessenger{}
	d, metrics := newDispatcher(t, &fakeRenderer{dir: t.TempDir()}, s, m)

	q, rec := testQuake(2.7)
	require.NoError(t, d.Dispatch(context.Background(), q, rec))
	assert.Len(t, s.captions, 1)
	assert.Empty(t, m.captions)
	assert.Equal(t, 1.0, steps(metrics, "messaging", "skipped"))
}

func TestDispatch_SocialDisabled(t *testing.T) {
	m := &fakeMessenger{}
	d, _ := newDispatcher(t, &fakeRenderer{dir: t.TempDir()}, nil, m)

	q, rec := testQuake(4.0)
	require.NoError(t, d.Dispatch(context.Background(), q, rec))
	require.Len(t, m.permalinks, 1)
	assert.Equal(t, "", m.permalinks[0])
}

func TestDispatch_CancelledBeforeSocial(t *testing.T) {
	s := &fakeSocial{}
	d, _ := newDispatcher(t, &fakeRenderer{dir: t.TempDir()}, s, &fakeMessenger{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q, rec := testQuake(4.0)
	assert.ErrorIs(t, d.Dispatch(ctx, q, rec), context.Canceled)
	assert.Empty(t, s.captions)
}

func TestNew_RequiresRenderer(t *testing.T) {
	_, err := New(Config{}, nil, nil, nil, nil)
	assert.Error(t, err)
}

func TestRingRadiusAndZoom(t *testing.T) {
	tests := []struct {
		mag, depth float64
		radius     int
		zoom       int
	}{
		{2.0, 0, 40, 9},
		{4.5, 10, 95, 9},
		{4.99, 35, 117, 9},
		{5.0, 10, 105, 8},
		{6.0, 20, 130, 7},
		{7.7, 10, 159, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.radius, RingRadius(tt.mag, tt.depth), "radius for M%v depth %v", tt.mag, tt.depth)
		assert.Equal(t, tt.zoom, Zoom(tt.mag), "zoom for M%v", tt.mag)
	}
}
