// Package storage persists event records behind an atomic insert-if-absent boundary.
package storage

import (
	"context"
	"fmt"

	"github.com/rewired-gh/quakewatch/internal/models"
)

// EventStore is the dedup boundary. InsertIfAbsent must be a single atomic
// conditional write: it returns false, without touching the stored record,
// when a record with the same quake id already exists.
type EventStore interface {
	InsertIfAbsent(ctx context.Context, rec *models.EventRecord) (bool, error)
	Exists(ctx context.Context, quakeID string) (bool, error)
	LastAlerted(ctx context.Context) (*models.EventRecord, error)
	All(ctx context.Context) ([]models.EventRecord, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Driver     string // sqlite, postgres, textlog
	DBPath     string
	DSN        string
	TextLogDir string
}

// Open returns the backend named by opts.Driver.
func Open(opts Options) (EventStore, error) {
	switch opts.Driver {
	case "", "sqlite":
		return New(opts.DBPath)
	case "postgres":
		return NewPostgres(opts.DSN)
	case "textlog":
		return NewTextLog(opts.TextLogDir)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
	}
}

// Copy inserts every record of src into dst, skipping ids dst already has.
// It returns how many records were copied and how many were skipped.
func Copy(ctx context.Context, src, dst EventStore) (copied, skipped int, err error) {
	records, err := src.All(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read source records: %w", err)
	}
	for i := range records {
		inserted, err := dst.InsertIfAbsent(ctx, &records[i])
		if err != nil {
			return copied, skipped, fmt.Errorf("failed to copy %s: %w", records[i].QuakeID, err)
		}
		if inserted {
			copied++
		} else {
			skipped++
		}
	}
	return copied, skipped, nil
}
