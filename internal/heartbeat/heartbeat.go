// Package heartbeat maintains the liveness file and checks it for staleness.
package heartbeat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rewired-gh/quakewatch/internal/models"
)

const (
	DefaultPath      = "status.json"
	DefaultThreshold = 90 * time.Second

	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// Writer overwrites the heartbeat file after every cycle.
type Writer struct {
	path  string
	clock clockwork.Clock
}

func NewWriter(path string, clock clockwork.Clock) *Writer {
	if path == "" {
		path = DefaultPath
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Writer{path: path, clock: clock}
}

func (w *Writer) Path() string { return w.path }

// Beat records status with the current time. The file is replaced atomically
// so readers never see a partial write.
func (w *Writer) Beat(status string) (models.HeartbeatRecord, error) {
	rec := models.HeartbeatRecord{Status: status, Time: w.clock.Now().UTC()}
	data, err := json.Marshal(rec)
	if err != nil {
		return rec, err
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return rec, fmt.Errorf("failed to create heartbeat directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".heartbeat-*")
	if err != nil {
		return rec, fmt.Errorf("failed to create heartbeat temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return rec, fmt.Errorf("failed to write heartbeat: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return rec, fmt.Errorf("failed to write heartbeat: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return rec, fmt.Errorf("failed to replace heartbeat: %w", err)
	}
	return rec, nil
}

// Result of a staleness check.
type Result struct {
	Healthy bool
	Age     time.Duration
	Last    models.HeartbeatRecord
	Message string
}

// Read loads the heartbeat record at path.
func Read(path string) (models.HeartbeatRecord, error) {
	var rec models.HeartbeatRecord
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("corrupt heartbeat: %w", err)
	}
	if rec.Time.IsZero() {
		return rec, errors.New("corrupt heartbeat: missing time")
	}
	return rec, nil
}

// Check reports whether the heartbeat at path is younger than threshold.
// A missing or unreadable file is unhealthy.
func Check(path string, threshold time.Duration, now time.Time) Result {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	rec, err := Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{Message: fmt.Sprintf("❌ %s is missing!", filepath.Base(path))}
	}
	if err != nil {
		return Result{Message: fmt.Sprintf("❌ %s is unreadable: %v", filepath.Base(path), err)}
	}

	age := now.Sub(rec.Time)
	if age > threshold {
		return Result{
			Age:  age,
			Last: rec,
			Message: fmt.Sprintf("⚠️ Quake monitor may be frozen. Last check-in: `%s` UTC (%ds ago)",
				rec.Time.UTC().Format(time.RFC3339), int(age.Seconds())),
		}
	}
	return Result{Healthy: true, Age: age, Last: rec}
}
