package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the persisted outcome of classifying a quake.
type Status string

const (
	StatusIgnored         Status = "ignored"
	StatusRecordedNoAlert Status = "recorded_no_alert"
	StatusAlerted         Status = "alerted"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusIgnored, StatusRecordedNoAlert, StatusAlerted:
		return true
	}
	return false
}

// Decision is the classifier's verdict for a quake.
type Decision int

const (
	Ignore Decision = iota
	RecordOnly
	Alert
)

func (d Decision) String() string {
	switch d {
	case Ignore:
		return "ignore"
	case RecordOnly:
		return "record_only"
	case Alert:
		return "alert"
	default:
		return "unknown"
	}
}

// Status maps a decision to the status it is persisted with.
func (d Decision) Status() Status {
	switch d {
	case Alert:
		return StatusAlerted
	case RecordOnly:
		return StatusRecordedNoAlert
	default:
		return StatusIgnored
	}
}

// LocalLayout is the persisted form of OriginLocal (wall clock, no zone suffix).
const LocalLayout = "2006-01-02T15:04:05"

// EventRecord is the persisted, write-once record of a processed quake.
// Numeric fields use decimals so stored values never drift.
type EventRecord struct {
	QuakeID     string          `json:"quake_id" gorm:"column:quake_id;primaryKey"`
	Magnitude   decimal.Decimal `json:"magnitude" gorm:"column:magnitude;type:numeric"`
	DepthKm     decimal.Decimal `json:"depth_km" gorm:"column:depth_km;type:numeric"`
	Latitude    decimal.Decimal `json:"latitude" gorm:"column:latitude;type:numeric"`
	Longitude   decimal.Decimal `json:"longitude" gorm:"column:longitude;type:numeric"`
	OriginUTC   time.Time       `json:"origin_utc" gorm:"column:origin_utc"`
	OriginLocal string          `json:"origin_local" gorm:"column:origin_local"`
	Status      Status          `json:"status" gorm:"column:status"`
	SourceURL   string          `json:"source_url" gorm:"column:source_url"`
	LastUpdated time.Time       `json:"last_updated" gorm:"column:last_updated"`
}

// TableName pins the table used by the relational backends.
func (EventRecord) TableName() string { return "quake_events" }

// NewEventRecord builds the record for q. The origin time must parse; otherwise
// the quake is rejected with ErrParseFailure and nothing should be stored.
func NewEventRecord(q Quake, status Status, local *time.Location, now time.Time) (*EventRecord, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	origin, err := q.OriginTime()
	if err != nil {
		return nil, fmt.Errorf("quake %s: %w", q.ID, err)
	}
	if local == nil {
		local = time.UTC
	}
	return &EventRecord{
		QuakeID:     q.ID,
		Magnitude:   decimal.NewFromFloat(q.Magnitude),
		DepthKm:     decimal.NewFromFloat(q.DepthKm),
		Latitude:    decimal.NewFromFloat(q.Latitude),
		Longitude:   decimal.NewFromFloat(q.Longitude),
		OriginUTC:   origin,
		OriginLocal: origin.In(local).Format(LocalLayout),
		Status:      status,
		SourceURL:   q.SourceURL,
		LastUpdated: now.UTC(),
	}, nil
}

// FixedZone returns the location for a fixed UTC offset such as +6h30m.
func FixedZone(name string, offset time.Duration) *time.Location {
	if name == "" {
		name = fmt.Sprintf("UTC%+.1f", offset.Hours())
	}
	return time.FixedZone(name, int(offset.Seconds()))
}
