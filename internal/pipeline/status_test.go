package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rewired-gh/quakewatch/internal/heartbeat"
	"github.com/rewired-gh/quakewatch/internal/models"
)

type fakeFinder struct {
	rec *models.EventRecord
	err error
}

func (f fakeFinder) LastAlerted(context.Context) (*models.EventRecord, error) { return f.rec, f.err }

func TestStatusReport_StatusText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	clock := clockwork.NewFakeClockAt(t0)
	report := StatusReport{HeartbeatPath: path, Threshold: 90 * time.Second, Clock: clock}

	assert.Equal(t, "❌ Cannot communicate with the quake monitor.", report.StatusText(context.Background()))

	_, err := heartbeat.NewWriter(path, clock).Beat(heartbeat.StatusHealthy)
	assert.NoError(t, err)
	clock.Advance(30 * time.Second)
	assert.Equal(t, "✅ Quake monitor is running (healthy). Last check-in: 2025-04-25T12:30:00Z UTC (30s ago)",
		report.StatusText(context.Background()))

	clock.Advance(2 * time.Minute)
	assert.Contains(t, report.StatusText(context.Background()), "(150s ago)")
}

func TestStatusReport_LastQuakeText(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		finder LastAlertedFinder
		want   string
	}{
		{"no store", nil, "ℹ️ No quake history found yet."},
		{"empty store", fakeFinder{}, "ℹ️ No quake history found yet."},
		{"store error", fakeFinder{err: errors.New("locked")}, "❌ Error reading last quake info: locked"},
		{
			"alerted quake",
			fakeFinder{rec: &models.EventRecord{QuakeID: "Q9", Magnitude: decimal.RequireFromString("4.5"), OriginLocal: "2025-04-25T18:30:00"}},
			"Last quake event ID: Q9 (M4.5, 2025-04-25T18:30:00 local)",
		},
		{"id only", fakeFinder{rec: &models.EventRecord{QuakeID: "Q7"}}, "Last quake event ID: Q7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusReport{Store: tt.finder}.LastQuakeText(ctx))
		})
	}
}
