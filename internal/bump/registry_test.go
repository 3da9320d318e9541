package bump

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/toolate28/SpiralSafe-sub005/internal/config"
	"github.com/toolate28/SpiralSafe-sub005/internal/errs"
	"github.com/toolate28/SpiralSafe-sub005/internal/state"
	"github.com/toolate28/SpiralSafe-sub005/internal/trail"
	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

func setupRegistry(t *testing.T) (*Registry, *state.DB) {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewRegistry(db, trail.New(db), config.Default().Bumps), db
}

func TestCreateValidation(t *testing.T) {
	snapshot := models.SyncSnapshot{
		"status": {Value: "done", UpdatedAt: time.Now()},
	}

	tests := []struct {
		name string
		p    CreateParams
	}{
		{
			name: "unknown type",
			p:    CreateParams{Type: "NUDGE", FromAgent: "alice", ToAgent: "bob"},
		},
		{
			name: "missing agents",
			p:    CreateParams{Type: models.BumpWave, FromAgent: "alice"},
		},
		{
			name: "same agent on both sides",
			p:    CreateParams{Type: models.BumpWave, FromAgent: "alice", ToAgent: "alice"},
		},
		{
			name: "sync without snapshots",
			p:    CreateParams{Type: models.BumpSync, FromAgent: "alice", ToAgent: "bob"},
		},
		{
			name: "sync with one snapshot",
			p: CreateParams{
				Type: models.BumpSync, FromAgent: "alice", ToAgent: "bob",
				FromSnapshot: snapshot,
			},
		},
		{
			name: "snapshots on a wave",
			p: CreateParams{
				Type: models.BumpWave, FromAgent: "alice", ToAgent: "bob",
				FromSnapshot: snapshot, ToSnapshot: snapshot,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := setupRegistry(t)
			if _, err := r.Create(context.Background(), tt.p); !errs.IsKind(err, errs.KindValidation) {
				t.Errorf("Create error = %v, want validation error", err)
			}
		})
	}
}

func TestPassResolveLocksOwnership(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	m, err := r.Create(ctx, CreateParams{
		Type:      models.BumpPass,
		FromAgent: "alice",
		ToAgent:   "bob",
		Context:   models.EntityContext("atom", "atom-1"),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Before resolution the sender still owns the entity.
	if err := r.CheckOwnership(ctx, "atom", "atom-1", "alice"); err != nil {
		t.Fatalf("CheckOwnership before resolve: %v", err)
	}

	resolved, err := r.Resolve(ctx, m.ID, "bob", "taking over")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved.State != models.BumpResolved {
		t.Errorf("State = %s, want resolved", resolved.State)
	}

	err = r.CheckOwnership(ctx, "atom", "atom-1", "alice")
	if !errs.IsKind(err, errs.KindConflict) || errs.ReasonOf(err) != errs.ReasonOwnership {
		t.Errorf("CheckOwnership for sender = %v, want ownership conflict", err)
	}
	// The receiver and third parties are unaffected.
	if err := r.CheckOwnership(ctx, "atom", "atom-1", "bob"); err != nil {
		t.Errorf("CheckOwnership for receiver: %v", err)
	}
}

func TestResolveIsTerminal(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	m, err := r.Create(ctx, CreateParams{
		Type: models.BumpWave, FromAgent: "alice", ToAgent: "bob",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	first, err := r.Resolve(ctx, m.ID, "bob", "done")
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}

	_, err = r.Resolve(ctx, m.ID, "carol", "me too")
	if !errs.IsKind(err, errs.KindConflict) || errs.ReasonOf(err) != errs.ReasonAlreadyResolved {
		t.Fatalf("second Resolve error = %v, want already-resolved conflict", err)
	}

	// The losing resolve must not have mutated the marker.
	got, err := r.store.GetBump(m.ID)
	if err != nil {
		t.Fatalf("GetBump: %v", err)
	}
	if got.ResolvedBy != first.ResolvedBy {
		t.Errorf("ResolvedBy = %q, want %q", got.ResolvedBy, first.ResolvedBy)
	}
}

func TestResolveUnknownMarker(t *testing.T) {
	r, _ := setupRegistry(t)
	_, err := r.Resolve(context.Background(), "bump-missing", "bob", "")
	if !errs.IsKind(err, errs.KindNotFound) {
		t.Errorf("Resolve error = %v, want not-found", err)
	}
}

func TestBlockEscalationLifecycle(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	m, err := r.Create(ctx, CreateParams{
		Type:      models.BumpBlock,
		FromAgent: "alice",
		ToAgent:   "team",
		Reason:    "schema migration failed",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	open, err := r.OpenEscalations(ctx)
	if err != nil {
		t.Fatalf("OpenEscalations: %v", err)
	}
	if len(open) != 1 || open[0].MarkerID != m.ID {
		t.Fatalf("open escalations = %+v, want one for %s", open, m.ID)
	}
	if open[0].Reason != "schema migration failed" {
		t.Errorf("Reason = %q", open[0].Reason)
	}

	// The agent that raised the block cannot clear it.
	_, err = r.Resolve(ctx, m.ID, "alice", "never mind")
	if !errs.IsKind(err, errs.KindConflict) || errs.ReasonOf(err) != errs.ReasonSelfResolve {
		t.Fatalf("self-resolve error = %v, want self-resolve conflict", err)
	}

	if _, err := r.Resolve(ctx, m.ID, "bob", "fixed the migration"); err != nil {
		t.Fatalf("Resolve by other agent: %v", err)
	}

	open, err = r.OpenEscalations(ctx)
	if err != nil {
		t.Fatalf("OpenEscalations after resolve: %v", err)
	}
	if len(open) != 0 {
		t.Errorf("still %d open escalations, want 0", len(open))
	}
}

func TestPingStalenessIsDerived(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	created := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return created }

	m, err := r.Create(ctx, CreateParams{
		Type: models.BumpPing, FromAgent: "alice", ToAgent: "bob",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Inside the TTL the ping is pending, and nothing reads as stale.
	stale, err := r.Query(ctx, state.BumpFilter{State: models.BumpStale})
	if err != nil {
		t.Fatalf("Query stale: %v", err)
	}
	if len(stale) != 0 {
		t.Fatalf("got %d stale markers before TTL, want 0", len(stale))
	}

	// Move past the TTL; no writer ever touched the marker.
	r.now = func() time.Time { return created.Add(25 * time.Hour) }

	stale, err = r.Query(ctx, state.BumpFilter{State: models.BumpStale})
	if err != nil {
		t.Fatalf("Query stale: %v", err)
	}
	if len(stale) != 1 || stale[0].ID != m.ID {
		t.Fatalf("stale markers = %+v, want just %s", stale, m.ID)
	}
	if stale[0].State != models.BumpStale {
		t.Errorf("State = %s, want stale", stale[0].State)
	}

	// Explicitly filtering stale PINGs is fine; pairing the stale state
	// with any other type is rejected rather than silently remapped.
	stale, err = r.Query(ctx, state.BumpFilter{State: models.BumpStale, Type: models.BumpPing})
	if err != nil {
		t.Fatalf("Query stale pings: %v", err)
	}
	if len(stale) != 1 {
		t.Fatalf("got %d stale pings, want 1", len(stale))
	}
	_, err = r.Query(ctx, state.BumpFilter{State: models.BumpStale, Type: models.BumpWave})
	if !errs.IsKind(err, errs.KindValidation) {
		t.Errorf("Query stale waves error = %v, want validation", err)
	}

	// A stale ping can still be resolved.
	if _, err := r.Resolve(ctx, m.ID, "bob", "late but handled"); err != nil {
		t.Fatalf("Resolve stale ping: %v", err)
	}
}

func TestSyncResolveRecordsReconciliation(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	m, err := r.Create(ctx, CreateParams{
		Type:      models.BumpSync,
		FromAgent: "alice",
		ToAgent:   "bob",
		FromSnapshot: models.SyncSnapshot{
			"status": {Value: "done", UpdatedAt: base.Add(500 * time.Millisecond)},
		},
		ToSnapshot: models.SyncSnapshot{
			"status": {Value: "failed", UpdatedAt: base},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	resolved, err := r.Resolve(ctx, m.ID, "bob", "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !strings.Contains(resolved.ResolutionNotes, `"merged"`) {
		t.Errorf("ResolutionNotes missing merged snapshot: %q", resolved.ResolutionNotes)
	}
	if !strings.Contains(resolved.ResolutionNotes, `"conflicts"`) {
		t.Errorf("ResolutionNotes missing conflicts: %q", resolved.ResolutionNotes)
	}
}

func TestQueryFilters(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	if _, err := r.Create(ctx, CreateParams{Type: models.BumpWave, FromAgent: "alice", ToAgent: "bob"}); err != nil {
		t.Fatalf("Create wave: %v", err)
	}
	if _, err := r.Create(ctx, CreateParams{Type: models.BumpPing, FromAgent: "carol", ToAgent: "bob"}); err != nil {
		t.Fatalf("Create ping: %v", err)
	}

	waves, err := r.Query(ctx, state.BumpFilter{Type: models.BumpWave})
	if err != nil {
		t.Fatalf("Query by type: %v", err)
	}
	if len(waves) != 1 || waves[0].Type != models.BumpWave {
		t.Fatalf("waves = %+v, want one WAVE", waves)
	}

	fromCarol, err := r.Query(ctx, state.BumpFilter{FromAgent: "carol"})
	if err != nil {
		t.Fatalf("Query by sender: %v", err)
	}
	if len(fromCarol) != 1 || fromCarol[0].FromAgent != "carol" {
		t.Fatalf("fromCarol = %+v, want one from carol", fromCarol)
	}
}
