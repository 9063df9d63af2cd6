package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rewired-gh/quakewatch/internal/models"
	"github.com/rewired-gh/quakewatch/internal/storage"
)

// Outcome of a dedup attempt. AlreadyExists is a normal result, not an error.
type Outcome int

const (
	Recorded Outcome = iota
	AlreadyExists
)

func (o Outcome) String() string {
	if o == Recorded {
		return "recorded"
	}
	return "already_exists"
}

// Gate turns a classified quake into a persisted record via the store's
// atomic insert-if-absent.
type Gate struct {
	store storage.EventStore
	local *time.Location
	clock clockwork.Clock
}

func NewGate(store storage.EventStore, local *time.Location, clock clockwork.Clock) *Gate {
	if local == nil {
		local = time.UTC
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Gate{store: store, local: local, clock: clock}
}

// TryRecord persists q with the status implied by decision. The returned
// record is nil when err is non-nil.
func (g *Gate) TryRecord(ctx context.Context, q models.Quake, decision models.Decision) (Outcome, *models.EventRecord, error) {
	rec, err := models.NewEventRecord(q, decision.Status(), g.local, g.clock.Now())
	if err != nil {
		return AlreadyExists, nil, err
	}

	inserted, err := g.store.InsertIfAbsent(ctx, rec)
	if err != nil {
		if !errors.Is(err, models.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)
		}
		return AlreadyExists, nil, err
	}
	if !inserted {
		return AlreadyExists, rec, nil
	}
	return Recorded, rec, nil
}
