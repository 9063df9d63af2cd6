package models

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestQuakeValidate(t *testing.T) {
	tests := []struct {
		name    string
		quake   Quake
		wantErr bool
	}{
		{
			name:  "valid quake",
			quake: Quake{ID: "q1", Latitude: 16.8, Longitude: 96.1, Magnitude: 4.2, DepthKm: 10},
		},
		{
			name:    "empty ID",
			quake:   Quake{Latitude: 16.8, Longitude: 96.1, Magnitude: 4.2},
			wantErr: true,
		},
		{
			name:    "latitude out of range",
			quake:   Quake{ID: "q1", Latitude: 91, Longitude: 96.1, Magnitude: 4.2},
			wantErr: true,
		},
		{
			name:    "longitude out of range",
			quake:   Quake{ID: "q1", Latitude: 16.8, Longitude: -181, Magnitude: 4.2},
			wantErr: true,
		},
		{
			name:    "negative magnitude",
			quake:   Quake{ID: "q1", Latitude: 16.8, Longitude: 96.1, Magnitude: -1},
			wantErr: true,
		},
		{
			name:    "negative depth",
			quake:   Quake{ID: "q1", Latitude: 16.8, Longitude: 96.1, Magnitude: 3, DepthKm: -5},
			wantErr: true,
		},
		{
			name:    "NaN magnitude",
			quake:   Quake{ID: "q1", Latitude: 16.8, Longitude: 96.1, Magnitude: math.NaN()},
			wantErr: true,
		},
		{
			name:    "infinite magnitude",
			quake:   Quake{ID: "q1", Latitude: 16.8, Longitude: 96.1, Magnitude: math.Inf(1)},
			wantErr: true,
		},
		{
			name:    "NaN latitude",
			quake:   Quake{ID: "q1", Latitude: math.NaN(), Longitude: 96.1, Magnitude: 3},
			wantErr: true,
		},
		{
			name:    "NaN longitude",
			quake:   Quake{ID: "q1", Latitude: 16.8, Longitude: math.NaN(), Magnitude: 3},
			wantErr: true,
		},
		{
			name:    "infinite depth",
			quake:   Quake{ID: "q1", Latitude: 16.8, Longitude: 96.1, Magnitude: 3, DepthKm: math.Inf(1)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.quake.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Quake.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrParseFailure) {
				t.Errorf("expected ErrParseFailure, got %v", err)
			}
		})
	}
}

func TestParseOriginTime(t *testing.T) {
	want := time.Date(2025, 4, 25, 12, 0, 0, 0, time.UTC)
	inputs := []string{
		"2025-04-25 12:00:00 UTC",
		"2025-04-25 12:00:00",
		"  2025-04-25 12:00:00UTC ",
		"2025-04-25T12:00:00",
		"2025-04-25T12:00:00Z",
		"2025-04-25T18:30:00+06:30",
		"2025-04-25 12:00",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got, err := ParseOriginTime(in)
			if err != nil {
				t.Fatalf("ParseOriginTime(%q): %v", in, err)
			}
			if !got.Equal(want) {
				t.Errorf("ParseOriginTime(%q) = %v, want %v", in, got, want)
			}
			if got.Location() != time.UTC {
				t.Errorf("expected UTC location, got %v", got.Location())
			}
		})
	}
}

func TestParseOriginTime_Invalid(t *testing.T) {
	for _, in := range []string{"", "UTC", "25/04/2025 12:00", "yesterday"} {
		if _, err := ParseOriginTime(in); !errors.Is(err, ErrParseFailure) {
			t.Errorf("ParseOriginTime(%q) error = %v, want ErrParseFailure", in, err)
		}
	}
}

func TestNewEventRecord_LocalOffset(t *testing.T) {
	q := Quake{
		ID:        "testquake001",
		Latitude:  16.8,
		Longitude: 96.1,
		Magnitude: 5.5,
		DepthKm:   10,
		OriginRaw: "2025-04-25 12:00:00 UTC",
	}
	now := time.Date(2025, 4, 25, 12, 5, 0, 0, time.UTC)
	rec, err := NewEventRecord(q, StatusAlerted, FixedZone("MMT", 6*time.Hour+30*time.Minute), now)
	if err != nil {
		t.Fatalf("NewEventRecord: %v", err)
	}
	if rec.OriginLocal != "2025-04-25T18:30:00" {
		t.Errorf("OriginLocal = %q, want 2025-04-25T18:30:00", rec.OriginLocal)
	}
	if rec.Magnitude.String() != "5.5" {
		t.Errorf("Magnitude = %s, want 5.5", rec.Magnitude)
	}
	if rec.Latitude.String() != "16.8" || rec.Longitude.String() != "96.1" {
		t.Errorf("coordinates = %s,%s", rec.Latitude, rec.Longitude)
	}
	if !rec.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated = %v, want %v", rec.LastUpdated, now)
	}
}

func TestNewEventRecord_BadOriginTime(t *testing.T) {
	q := Quake{ID: "q1", OriginRaw: "not a time"}
	if _, err := NewEventRecord(q, StatusAlerted, time.UTC, time.Now()); !errors.Is(err, ErrParseFailure) {
		t.Errorf("expected ErrParseFailure, got %v", err)
	}
}

func TestDecisionStatus(t *testing.T) {
	cases := map[Decision]Status{
		Ignore:     StatusIgnored,
		RecordOnly: StatusRecordedNoAlert,
		Alert:      StatusAlerted,
	}
	for d, want := range cases {
		if got := d.Status(); got != want {
			t.Errorf("%s.Status() = %s, want %s", d, got, want)
		}
	}
}

func TestPostRefPermalink(t *testing.T) {
	if got := (PostRef{PageID: "123", PostID: "456"}).Permalink(); got != "https://www.facebook.com/123/posts/456" {
		t.Errorf("Permalink() = %q", got)
	}
	if got := (PostRef{PostID: "456"}).Permalink(); got != "" {
		t.Errorf("Permalink() without page = %q, want empty", got)
	}
}
