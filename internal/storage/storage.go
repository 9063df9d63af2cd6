package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rewired-gh/quakewatch/internal/models"
)

// Storage wraps a SQLite database holding one row per processed quake.
type Storage struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/quakewatch/quakes.db.
func New(dbPath string) (*Storage, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "quakewatch", "quakes.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	s := &Storage{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS quake_events (
			quake_id     TEXT PRIMARY KEY,
			magnitude    TEXT NOT NULL,
			depth_km     TEXT NOT NULL,
			latitude     TEXT NOT NULL,
			longitude    TEXT NOT NULL,
			origin_utc   INTEGER NOT NULL,
			origin_local TEXT NOT NULL,
			status       TEXT NOT NULL,
			source_url   TEXT,
			last_updated INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_quake_events_status ON quake_events(status, last_updated)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertIfAbsent stores rec unless its quake id is already present.
func (s *Storage) InsertIfAbsent(ctx context.Context, rec *models.EventRecord) (bool, error) {
	if rec == nil || rec.QuakeID == "" {
		return false, errors.New("record must have a quake id")
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO quake_events
			(quake_id, magnitude, depth_km, latitude, longitude,
			 origin_utc, origin_local, status, source_url, last_updated)
		VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(quake_id) DO NOTHING`,
		rec.QuakeID, rec.Magnitude.String(), rec.DepthKm.String(),
		rec.Latitude.String(), rec.Longitude.String(),
		rec.OriginUTC.UnixNano(), rec.OriginLocal, string(rec.Status), rec.SourceURL,
		rec.LastUpdated.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("%w: failed to insert quake %s: %v", models.ErrStoreUnavailable, rec.QuakeID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

func (s *Storage) Exists(ctx context.Context, quakeID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM quake_events WHERE quake_id = ?`, quakeID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: failed to look up quake %s: %v", models.ErrStoreUnavailable, quakeID, err)
	}
	return true, nil
}

// Get returns the record for quakeID, or nil if there is none.
func (s *Storage) Get(ctx context.Context, quakeID string) (*models.EventRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordCols+` FROM quake_events WHERE quake_id = ?`, quakeID)
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get quake %s: %w", quakeID, err)
	}
	return rec, nil
}

func (s *Storage) LastAlerted(ctx context.Context) (*models.EventRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordCols+` FROM quake_events
		WHERE status = ? ORDER BY last_updated DESC LIMIT 1`, string(models.StatusAlerted))
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last alerted quake: %w", err)
	}
	return rec, nil
}

func (s *Storage) All(ctx context.Context) ([]models.EventRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordCols+` FROM quake_events ORDER BY last_updated`)
	if err != nil {
		return nil, fmt.Errorf("failed to query quakes: %w", err)
	}
	defer rows.Close()

	records := []models.EventRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quake: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

const recordCols = `quake_id, magnitude, depth_km, latitude, longitude,
	origin_utc, origin_local, status, source_url, last_updated`

func scanRecord(scan func(...any) error) (*models.EventRecord, error) {
	var rec models.EventRecord
	var mag, depth, lat, lon, status string
	var sourceURL sql.NullString
	var originNano, updatedNano int64
	err := scan(
		&rec.QuakeID, &mag, &depth, &lat, &lon,
		&originNano, &rec.OriginLocal, &status, &sourceURL, &updatedNano,
	)
	if err != nil {
		return nil, err
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&rec.Magnitude, mag}, {&rec.DepthKm, depth}, {&rec.Latitude, lat}, {&rec.Longitude, lon}} {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, fmt.Errorf("corrupt decimal %q: %w", f.src, err)
		}
		*f.dst = d
	}
	rec.Status = models.Status(status)
	rec.SourceURL = sourceURL.String
	rec.OriginUTC = time.Unix(0, originNano).UTC()
	rec.LastUpdated = time.Unix(0, updatedNano).UTC()
	return &rec, nil
}
