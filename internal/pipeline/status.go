package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rewired-gh/quakewatch/internal/heartbeat"
	"github.com/rewired-gh/quakewatch/internal/models"
)

// LastAlertedFinder is the read side of the event store used for status replies.
type LastAlertedFinder interface {
	LastAlerted(ctx context.Context) (*models.EventRecord, error)
}

// StatusReport answers chat status commands from the heartbeat file and the store.
type StatusReport struct {
	HeartbeatPath string
	Threshold     time.Duration
	Store         LastAlertedFinder
	Clock         clockwork.Clock
}

func (s StatusReport) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}

func (s StatusReport) StatusText(_ context.Context) string {
	res := heartbeat.Check(s.HeartbeatPath, s.Threshold, s.now())
	if !res.Healthy {
		if res.Last.Time.IsZero() {
			return "❌ Cannot communicate with the quake monitor."
		}
		return res.Message
	}
	return fmt.Sprintf("✅ Quake monitor is running (%s). Last check-in: %s UTC (%ds ago)",
		res.Last.Status, res.Last.Time.UTC().Format(time.RFC3339), int(res.Age.Seconds()))
}

func (s StatusReport) LastQuakeText(ctx context.Context) string {
	if s.Store == nil {
		return "ℹ️ No quake history found yet."
	}
	rec, err := s.Store.LastAlerted(ctx)
	if err != nil {
		return fmt.Sprintf("❌ Error reading last quake info: %v", err)
	}
	if rec == nil {
		return "ℹ️ No quake history found yet."
	}
	if rec.OriginLocal == "" {
		return fmt.Sprintf("Last quake event ID: %s", rec.QuakeID)
	}
	return fmt.Sprintf("Last quake event ID: %s (M%s, %s local)", rec.QuakeID, rec.Magnitude.String(), rec.OriginLocal)
}
