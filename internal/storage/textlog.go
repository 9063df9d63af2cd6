package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rewired-gh/quakewatch/internal/logger"
	"github.com/rewired-gh/quakewatch/internal/models"
)

const (
	alertedFile   = "broadcasted_quakes.txt"
	ignoredFile   = "ignored_quakes.txt"
	lastQuakeFile = "last_quake_text.txt"
)

// TextLog is the legacy file backend: one quake id per line, alerted ids in
// one file and everything else in another. Only ids and status survive a
// round trip.
type TextLog struct {
	dir string
	mu  sync.Mutex
}

// NewTextLog uses dir (created if needed) for the id files.
func NewTextLog(dir string) (*TextLog, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create text log directory: %w", err)
	}
	return &TextLog{dir: dir}, nil
}

func (t *TextLog) path(name string) string {
	return filepath.Join(t.dir, name)
}

func (t *TextLog) InsertIfAbsent(_ context.Context, rec *models.EventRecord) (bool, error) {
	if rec == nil || rec.QuakeID == "" {
		return false, errors.New("record must have a quake id")
	}
	if strings.ContainsAny(rec.QuakeID, "\r\n") {
		return false, fmt.Errorf("quake id %q contains a line break", rec.QuakeID)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	found, err := t.containsLocked(rec.QuakeID)
	if err != nil {
		return false, err
	}
	if found {
		return false, nil
	}

	name := ignoredFile
	if rec.Status == models.StatusAlerted {
		name = alertedFile
	}
	if err := appendLine(t.path(name), rec.QuakeID); err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	if rec.Status == models.StatusAlerted {
		// The id is already persisted; the last-quake file only feeds /lastquake.
		if err := os.WriteFile(t.path(lastQuakeFile), []byte(rec.QuakeID), 0o644); err != nil {
			logger.Warn("Failed to write last quake %s: %v", rec.QuakeID, err)
		}
	}
	return true, nil
}

func (t *TextLog) Exists(_ context.Context, quakeID string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.containsLocked(quakeID)
}

func (t *TextLog) containsLocked(quakeID string) (bool, error) {
	for _, name := range []string{alertedFile, ignoredFile} {
		ids, err := readIDs(t.path(name))
		if err != nil {
			return false, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
		}
		for _, id := range ids {
			if id == quakeID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (t *TextLog) LastAlerted(_ context.Context) (*models.EventRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, err := os.ReadFile(t.path(lastQuakeFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last quake: %w", err)
	}
	id := strings.TrimSpace(string(b))
	if id == "" {
		return nil, nil
	}
	return &models.EventRecord{QuakeID: id, Status: models.StatusAlerted}, nil
}

// All returns alerted ids first, then the rest, each in file order. Records
// from the ignored file are reported as recorded_no_alert since the legacy
// format does not tell the two apart.
func (t *TextLog) All(_ context.Context) ([]models.EventRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	records := []models.EventRecord{}
	for _, f := range []struct {
		name   string
		status models.Status
	}{{alertedFile, models.StatusAlerted}, {ignoredFile, models.StatusRecordedNoAlert}} {
		ids, err := readIDs(t.path(f.name))
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			records = append(records, models.EventRecord{QuakeID: id, Status: f.status})
		}
	}
	return records, nil
}

func (t *TextLog) Close() error { return nil }

func readIDs(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var ids []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			ids = append(ids, id)
		}
	}
	return ids, sc.Err()
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
