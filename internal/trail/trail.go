// Package trail implements the append-only decision trail underlying
// every other subsystem. Entries record what was decided, why, and how
// it turned out; nothing here can update or delete one.
package trail

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/toolate28/SpiralSafe-sub005/internal/errs"
	"github.com/toolate28/SpiralSafe-sub005/internal/state"
	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

// Vortex identifiers for the originating components.
const (
	VortexWave = "wave"
	VortexBump = "bump"
	VortexAWI  = "awi"
	VortexAtom = "atom"
)

// Trail records and queries provenance entries.
type Trail struct {
	store state.TrailStore
	now   func() time.Time
}

// New creates a Trail backed by the given store.
func New(store state.TrailStore) *Trail {
	return &Trail{store: store, now: time.Now}
}

// Append validates and stores one entry, filling in id and timestamp
// when the caller left them empty. A storage failure propagates as
// StorageUnavailable, never silently.
func (t *Trail) Append(ctx context.Context, e models.TrailEntry) (*models.TrailEntry, error) {
	if e.VortexID == "" {
		return nil, errs.Validation("trail", "vortex id is required")
	}
	if e.Decision == "" {
		return nil, errs.Validation("trail", "decision text is required")
	}
	if e.Outcome == "" {
		e.Outcome = models.OutcomePending
	}
	if !e.Outcome.Valid() {
		return nil, errs.Validation("trail", "unknown outcome "+string(e.Outcome))
	}
	if !e.Context.IsZero() && !e.Context.Valid() {
		return nil, errs.Validation("trail", "malformed context payload")
	}
	if e.ID == "" {
		e.ID = "trail-" + uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = t.now()
	}

	if err := t.store.AppendTrail(&e); err != nil {
		return nil, errs.Storage("append trail entry", err)
	}
	return &e, nil
}

// Query returns entries matching the filter with stable pagination.
func (t *Trail) Query(ctx context.Context, f state.TrailFilter) ([]models.TrailEntry, error) {
	entries, err := t.store.QueryTrail(f)
	if err != nil {
		return nil, errs.Storage("query trail", err)
	}
	return entries, nil
}

// Stats aggregates the whole trail.
func (t *Trail) Stats(ctx context.Context) (*state.TrailStats, error) {
	stats, err := t.store.TrailStatistics()
	if err != nil {
		return nil, errs.Storage("trail stats", err)
	}
	return stats, nil
}
