package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rewired-gh/quakewatch/internal/models"
)

const (
	connectAttempts = 5
	connectDelay    = 2 * time.Second
)

// Postgres stores event records through gorm.
type Postgres struct {
	db *gorm.DB
}

// NewPostgres connects to dsn, retrying a few times, and migrates the schema.
func NewPostgres(dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := ConnectWithRetry(dsn, connectAttempts, connectDelay)
	if err != nil {
		return nil, err
	}
	return &Postgres{db: db}, nil
}

// ConnectWithRetry opens a Postgres connection with retry.
func ConnectWithRetry(dsn string, attempts int, delay time.Duration) (*gorm.DB, error) {
	var lastErr error
	for i := 1; i <= attempts; i++ {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err == nil {
			if err := db.AutoMigrate(&models.EventRecord{}); err != nil {
				return nil, fmt.Errorf("failed to migrate schema: %w", err)
			}
			return db, nil
		}
		lastErr = err
		if i < attempts {
			time.Sleep(delay)
		}
	}
	return nil, fmt.Errorf("db connect failed after %d attempts: %w", attempts, lastErr)
}

// InsertIfAbsent relies on ON CONFLICT DO NOTHING against the primary key.
func (p *Postgres) InsertIfAbsent(ctx context.Context, rec *models.EventRecord) (bool, error) {
	if rec == nil || rec.QuakeID == "" {
		return false, errors.New("record must have a quake id")
	}
	res := p.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "quake_id"}}, DoNothing: true}).
		Create(rec)
	if res.Error != nil {
		return false, fmt.Errorf("%w: failed to insert quake %s: %v", models.ErrStoreUnavailable, rec.QuakeID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (p *Postgres) Exists(ctx context.Context, quakeID string) (bool, error) {
	var n int64
	err := p.db.WithContext(ctx).Model(&models.EventRecord{}).Where("quake_id = ?", quakeID).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("%w: failed to look up quake %s: %v", models.ErrStoreUnavailable, quakeID, err)
	}
	return n > 0, nil
}

func (p *Postgres) LastAlerted(ctx context.Context) (*models.EventRecord, error) {
	var rec models.EventRecord
	err := p.db.WithContext(ctx).
		Where("status = ?", models.StatusAlerted).
		Order("last_updated DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last alerted quake: %w", err)
	}
	return &rec, nil
}

func (p *Postgres) All(ctx context.Context) ([]models.EventRecord, error) {
	records := []models.EventRecord{}
	if err := p.db.WithContext(ctx).Order("last_updated").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query quakes: %w", err)
	}
	return records, nil
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
