// Package bump implements the handoff registry: typed markers that
// signal transfer or synchronization points between two collaborators.
package bump

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/toolate28/SpiralSafe-sub005/internal/config"
	"github.com/toolate28/SpiralSafe-sub005/internal/errs"
	"github.com/toolate28/SpiralSafe-sub005/internal/state"
	"github.com/toolate28/SpiralSafe-sub005/internal/trail"
	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

// CreateParams carries everything needed to create a marker.
type CreateParams struct {
	Type       models.BumpType
	FromAgent  string
	ToAgent    string
	StateLabel string
	Context    models.Context
	// FromSnapshot and ToSnapshot are required for SYNC markers and
	// rejected for every other type.
	FromSnapshot models.SyncSnapshot
	ToSnapshot   models.SyncSnapshot
	// Reason feeds the escalation record for BLOCK markers.
	Reason string
}

// Registry creates, resolves, and queries handoff markers.
type Registry struct {
	store state.BumpStore
	trail *trail.Trail

	mu  sync.RWMutex
	cfg config.BumpsConfig

	now func() time.Time
}

// NewRegistry creates a Registry backed by the given store.
func NewRegistry(store state.BumpStore, tr *trail.Trail, cfg config.BumpsConfig) *Registry {
	return &Registry{store: store, trail: tr, cfg: cfg, now: time.Now}
}

// UpdateConfig swaps the timing settings, for live config reload.
func (r *Registry) UpdateConfig(cfg config.BumpsConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg = cfg
}

func (r *Registry) config() config.BumpsConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Create validates and stores a new pending marker. BLOCK markers also
// produce an escalation record for the external notifier to poll.
func (r *Registry) Create(ctx context.Context, p CreateParams) (*models.BumpMarker, error) {
	if !p.Type.Valid() {
		return nil, errs.Validation("bump", "unknown marker type "+string(p.Type))
	}
	if p.FromAgent == "" || p.ToAgent == "" {
		return nil, errs.Validation("bump", "from and to agents are required")
	}
	if p.FromAgent == p.ToAgent {
		return nil, errs.Validation("bump", "from and to agents must differ")
	}
	if !p.Context.IsZero() && !p.Context.Valid() {
		return nil, errs.Validation("bump", "malformed context payload")
	}
	if p.Type == models.BumpSync {
		if len(p.FromSnapshot) == 0 || len(p.ToSnapshot) == 0 {
			return nil, errs.Validation("bump", "SYNC markers require both snapshots")
		}
	} else if len(p.FromSnapshot) > 0 || len(p.ToSnapshot) > 0 {
		return nil, errs.Validation("bump", "snapshots are only valid on SYNC markers")
	}

	now := r.now()
	marker := &models.BumpMarker{
		ID:           "bump-" + uuid.NewString(),
		Type:         p.Type,
		FromAgent:    p.FromAgent,
		ToAgent:      p.ToAgent,
		StateLabel:   p.StateLabel,
		Context:      p.Context,
		FromSnapshot: p.FromSnapshot,
		ToSnapshot:   p.ToSnapshot,
		State:        models.BumpPending,
		CreatedAt:    now,
	}

	if err := r.store.CreateBump(marker); err != nil {
		return nil, errs.Storage("create bump", err)
	}

	if p.Type == models.BumpBlock {
		escalation := &models.Escalation{
			ID:        "esc-" + uuid.NewString(),
			MarkerID:  marker.ID,
			RaisedBy:  p.FromAgent,
			Reason:    p.Reason,
			CreatedAt: now,
		}
		if err := r.store.CreateEscalation(escalation); err != nil {
			return nil, errs.Storage("create escalation", err)
		}
	}

	_, err := r.trail.Append(ctx, models.TrailEntry{
		VortexID: trail.VortexBump,
		Decision: fmt.Sprintf("created %s marker %s -> %s", marker.Type, marker.FromAgent, marker.ToAgent),
		Outcome:  models.OutcomeSuccess,
		Context:  models.EntityContext("bump", marker.ID),
	})
	if err != nil {
		return nil, err
	}
	return marker, nil
}

// Resolve moves a pending marker to resolved. Resolving an
// already-resolved marker is an idempotent no-op that reports
// ConflictError; BLOCK markers reject resolution by their creator.
func (r *Registry) Resolve(ctx context.Context, id, resolvedBy, notes string) (*models.BumpMarker, error) {
	marker, err := r.store.GetBump(id)
	if err != nil {
		return nil, errs.Storage("get bump", err)
	}
	if marker == nil {
		return nil, errs.NotFound("bump", id)
	}
	if marker.State == models.BumpResolved {
		return nil, errs.Conflict("bump", id, errs.ReasonAlreadyResolved, "marker already resolved")
	}
	if marker.Type == models.BumpBlock && resolvedBy == marker.FromAgent {
		return nil, errs.Conflict("bump", id, errs.ReasonSelfResolve,
			"BLOCK markers require resolution by a different agent")
	}

	if marker.Type == models.BumpSync {
		resolution := reconcile(marker.FromSnapshot, marker.ToSnapshot, r.config().SyncEpsilon)
		encoded, err := json.Marshal(resolution)
		if err != nil {
			return nil, errs.Validation("bump", "encode sync resolution: "+err.Error())
		}
		if notes != "" {
			notes += "\n"
		}
		notes += string(encoded)
	}

	now := r.now()
	won, err := r.store.ResolveBump(id, resolvedBy, notes, now)
	if err != nil {
		return nil, errs.Storage("resolve bump", err)
	}
	if !won {
		// A concurrent resolver got there first; the state did not change.
		return nil, errs.Conflict("bump", id, errs.ReasonAlreadyResolved, "marker already resolved")
	}

	if marker.Type == models.BumpPass {
		if err := r.lockPassEntities(marker, now); err != nil {
			return nil, err
		}
	}
	if marker.Type == models.BumpBlock {
		if err := r.store.ResolveEscalation(id, now); err != nil {
			return nil, errs.Storage("resolve escalation", err)
		}
	}

	_, err = r.trail.Append(ctx, models.TrailEntry{
		VortexID:  trail.VortexBump,
		Decision:  fmt.Sprintf("resolved %s marker by %s", marker.Type, resolvedBy),
		Rationale: notes,
		Outcome:   models.OutcomeSuccess,
		Context:   models.EntityContext("bump", marker.ID),
	})
	if err != nil {
		return nil, err
	}

	return r.store.GetBump(id)
}

// lockPassEntities records that the original sender of a resolved PASS
// no longer owns what the marker referenced.
func (r *Registry) lockPassEntities(marker *models.BumpMarker, at time.Time) error {
	if marker.Context.Kind != models.ContextEntity || marker.Context.Entity == nil {
		return nil
	}
	ref := marker.Context.Entity
	if err := r.store.CreateOwnershipLock(ref.Kind, ref.ID, marker.FromAgent, marker.ID, at); err != nil {
		return errs.Storage("create ownership lock", err)
	}
	return nil
}

// CheckOwnership rejects ownership-bearing writes by identities that
// handed the entity off through a resolved PASS marker.
func (r *Registry) CheckOwnership(ctx context.Context, entityKind, entityID, identity string) error {
	locked, err := r.store.HasOwnershipLock(entityKind, entityID, identity)
	if err != nil {
		return errs.Storage("check ownership", err)
	}
	if locked {
		return errs.Conflict(entityKind, entityID, errs.ReasonOwnership,
			"ownership was transferred away from "+identity)
	}
	return nil
}

// Query returns markers matching the filter with PING staleness derived
// at read time. Filtering on the stale state selects pending PINGs
// whose TTL has elapsed; combining it with any other type is rejected,
// since only PINGs go stale.
func (r *Registry) Query(ctx context.Context, f state.BumpFilter) ([]models.BumpMarker, error) {
	wantStale := f.State == models.BumpStale
	if wantStale {
		if f.Type != "" && f.Type != models.BumpPing {
			return nil, errs.Validation("bump", "stale state applies only to PING markers")
		}
		f.State = models.BumpPending
		f.Type = models.BumpPing
	}

	markers, err := r.store.ListBumps(f)
	if err != nil {
		return nil, errs.Storage("list bumps", err)
	}

	now := r.now()
	ttl := r.config().PingTTL
	var out []models.BumpMarker
	for _, m := range markers {
		effective := m.EffectiveState(now, ttl)
		if wantStale && effective != models.BumpStale {
			continue
		}
		m.State = effective
		out = append(out, m)
	}
	return out, nil
}

// OpenEscalations returns unresolved BLOCK escalations, oldest first.
func (r *Registry) OpenEscalations(ctx context.Context) ([]models.Escalation, error) {
	escalations, err := r.store.ListOpenEscalations()
	if err != nil {
		return nil, errs.Storage("list escalations", err)
	}
	return escalations, nil
}
