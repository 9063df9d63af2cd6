package heartbeat

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/quakewatch/internal/models"
)

var t0 = time.Date(2025, 4, 25, 12, 0, 0, 0, time.UTC)

func TestBeat_WritesRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "status.json")
	w := NewWriter(path, clockwork.NewFakeClockAt(t0))

	_, err := w.Beat(StatusHealthy)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec models.HeartbeatRecord
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, StatusHealthy, rec.Status)
	assert.True(t, rec.Time.Equal(t0))

	entries, _ := os.ReadDir(filepath.Dir(path))
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestBeat_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	clock := clockwork.NewFakeClockAt(t0)
	w := NewWriter(path, clock)

	_, err := w.Beat(StatusHealthy)
	require.NoError(t, err)
	clock.Advance(time.Minute)
	_, err = w.Beat(StatusDegraded)
	require.NoError(t, err)

	rec, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, rec.Status)
	assert.True(t, rec.Time.Equal(t0.Add(time.Minute)))
}

func TestCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	w := NewWriter(path, clockwork.NewFakeClockAt(t0))
	_, err := w.Beat(StatusHealthy)
	require.NoError(t, err)

	tests := []struct {
		name    string
		age     time.Duration
		healthy bool
	}{
		{"fresh", 30 * time.Second, true},
		{"at threshold", 90 * time.Second, true},
		{"stale", 120 * time.Second, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Check(path, 90*time.Second, t0.Add(tt.age))
			assert.Equal(t, tt.healthy, res.Healthy)
			assert.Equal(t, tt.age, res.Age)
		})
	}

	res := Check(path, 90*time.Second, t0.Add(120*time.Second))
	assert.Contains(t, res.Message, "(120s ago)")
	assert.Contains(t, res.Message, "2025-04-25T12:00:00Z")
}

func TestCheck_Missing(t *testing.T) {
	res := Check(filepath.Join(t.TempDir(), "status.json"), 0, t0)
	assert.False(t, res.Healthy)
	assert.Contains(t, res.Message, "status.json is missing")
}

func TestCheck_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"status": "healthy"}`), 0o644))
	res := Check(path, time.Minute, t0)
	assert.False(t, res.Healthy)
	assert.Contains(t, res.Message, "unreadable")
}

func TestCheck_IgnoresStatusValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	_, err := NewWriter(path, clockwork.NewFakeClockAt(t0)).Beat(StatusDegraded)
	require.NoError(t, err)

	res := Check(path, DefaultThreshold, t0.Add(30*time.Second))
	assert.True(t, res.Healthy, "a recent degraded beat still proves liveness")
	assert.Equal(t, StatusDegraded, res.Last.Status)
}
