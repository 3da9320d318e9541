package awi

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/toolate28/SpiralSafe-sub005/internal/cache"
	"github.com/toolate28/SpiralSafe-sub005/internal/config"
	"github.com/toolate28/SpiralSafe-sub005/internal/errs"
	"github.com/toolate28/SpiralSafe-sub005/internal/state"
	"github.com/toolate28/SpiralSafe-sub005/internal/trail"
	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

func setupGrantor(t *testing.T) (*Grantor, *state.DB) {
	t.Helper()
	db, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Default().AWI
	return NewGrantor(db, cache.NewMemory(cfg.LockoutWindow), trail.New(db), cfg), db
}

func readerParams() RequestParams {
	return RequestParams{
		Authority: "lead",
		Intent:    "review sprint docs",
		GrantedTo: "alice",
		Level:     models.LevelReader,
		Scope: models.Scope{
			Resources: []string{"docs/*"},
			Actions:   []string{"read"},
		},
	}
}

func TestRequestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RequestParams)
	}{
		{"missing authority", func(p *RequestParams) { p.Authority = "" }},
		{"missing grantee", func(p *RequestParams) { p.GrantedTo = "" }},
		{"level out of range", func(p *RequestParams) { p.Level = 5 }},
		{"no actions", func(p *RequestParams) { p.Scope.Actions = nil }},
		{"no resources", func(p *RequestParams) { p.Scope.Resources = nil }},
		{"ttl over maximum", func(p *RequestParams) { p.TTL = 48 * time.Hour }},
		{"negative ttl", func(p *RequestParams) { p.TTL = -time.Hour }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := setupGrantor(t)
			p := readerParams()
			tt.mutate(&p)
			if _, err := g.Request(context.Background(), p); !errs.IsKind(err, errs.KindValidation) {
				t.Errorf("Request error = %v, want validation error", err)
			}
		})
	}
}

func TestVerifyAllowed(t *testing.T) {
	g, db := setupGrantor(t)
	ctx := context.Background()

	grant, err := g.Request(ctx, readerParams())
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	got, err := g.Verify(ctx, VerifyParams{
		Identity: "alice",
		GrantID:  grant.ID,
		Action:   "read",
		Resource: "docs/sprint-plan",
	})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got.ID != grant.ID {
		t.Errorf("Verify returned grant %s, want %s", got.ID, grant.ID)
	}

	entries, err := db.ListAuditByGrant(grant.ID)
	if err != nil {
		t.Fatalf("ListAuditByGrant: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d audit entries, want 2 (granted + allowed)", len(entries))
	}
	if entries[0].Result != models.AuditGranted || entries[1].Result != models.AuditAllowed {
		t.Errorf("audit results = %s, %s", entries[0].Result, entries[1].Result)
	}
}

func TestVerifyExpiredGrant(t *testing.T) {
	g, db := setupGrantor(t)
	ctx := context.Background()

	issued := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return issued }

	p := readerParams()
	p.TTL = time.Hour
	grant, err := g.Request(ctx, p)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	// Expiry is computed at read time; no sweeper ever marks the grant.
	g.now = func() time.Time { return issued.Add(2 * time.Hour) }

	before, err := db.CountAuditByGrant(grant.ID)
	if err != nil {
		t.Fatalf("CountAuditByGrant: %v", err)
	}

	_, err = g.Verify(ctx, VerifyParams{
		Identity: "alice",
		GrantID:  grant.ID,
		Action:   "read",
		Resource: "docs/sprint-plan",
	})
	if !errs.IsKind(err, errs.KindConflict) || errs.ReasonOf(err) != errs.ReasonExpired {
		t.Fatalf("Verify error = %v, want expired conflict", err)
	}

	after, err := db.CountAuditByGrant(grant.ID)
	if err != nil {
		t.Fatalf("CountAuditByGrant: %v", err)
	}
	if after != before+1 {
		t.Errorf("audit grew by %d entries, want exactly 1", after-before)
	}

	entries, err := db.ListAuditByGrant(grant.ID)
	if err != nil {
		t.Fatalf("ListAuditByGrant: %v", err)
	}
	last := entries[len(entries)-1]
	if last.Result != models.AuditDenied {
		t.Errorf("last audit result = %s, want denied", last.Result)
	}
}

func TestVerifyDenialReasons(t *testing.T) {
	tests := []struct {
		name       string
		params     RequestParams
		verify     VerifyParams
		wantReason string
	}{
		{
			name:   "action outside scope",
			params: readerParams(),
			verify: VerifyParams{
				Identity: "alice", Action: "write", Resource: "docs/plan",
			},
			wantReason: errs.ReasonActionScope,
		},
		{
			name:   "resource outside scope",
			params: readerParams(),
			verify: VerifyParams{
				Identity: "alice", Action: "read", Resource: "secrets/key",
			},
			wantReason: errs.ReasonResourceScope,
		},
		{
			name: "level insufficient for action",
			params: RequestParams{
				Authority: "lead",
				Intent:    "attempt sign-off",
				GrantedTo: "alice",
				Level:     models.LevelContributor,
				Scope: models.Scope{
					Resources: []string{"atom/*"},
					Actions:   []string{"sign_off"},
				},
			},
			verify: VerifyParams{
				Identity: "alice", Action: "sign_off", Resource: "atom/atom-1",
			},
			wantReason: errs.ReasonLevel,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := setupGrantor(t)
			ctx := context.Background()

			grant, err := g.Request(ctx, tt.params)
			if err != nil {
				t.Fatalf("Request: %v", err)
			}
			tt.verify.GrantID = grant.ID

			_, err = g.Verify(ctx, tt.verify)
			if !errs.IsKind(err, errs.KindConflict) {
				t.Fatalf("Verify error = %v, want conflict", err)
			}
			if got := errs.ReasonOf(err); got != tt.wantReason {
				t.Errorf("reason = %s, want %s", got, tt.wantReason)
			}
		})
	}
}

func TestRevokedGrantDeniesAndStaysRevoked(t *testing.T) {
	g, _ := setupGrantor(t)
	ctx := context.Background()

	grant, err := g.Request(ctx, readerParams())
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if err := g.Revoke(ctx, grant.ID, "lead"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	_, err = g.Verify(ctx, VerifyParams{
		Identity: "alice", GrantID: grant.ID, Action: "read", Resource: "docs/plan",
	})
	if !errs.IsKind(err, errs.KindConflict) || errs.ReasonOf(err) != errs.ReasonRevoked {
		t.Fatalf("Verify error = %v, want revoked conflict", err)
	}

	// Revocation is idempotent at the storage level but reports conflict.
	err = g.Revoke(ctx, grant.ID, "lead")
	if !errs.IsKind(err, errs.KindConflict) || errs.ReasonOf(err) != errs.ReasonRevoked {
		t.Errorf("second Revoke error = %v, want revoked conflict", err)
	}
}

func TestLockoutAfterRepeatedFailures(t *testing.T) {
	g, db := setupGrantor(t)
	ctx := context.Background()

	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }

	grant, err := g.Request(ctx, readerParams())
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	// Five failures inside the window, each a few seconds apart.
	for i := 0; i < 5; i++ {
		now = now.Add(5 * time.Second)
		_, err := g.Verify(ctx, VerifyParams{
			Identity: "alice", GrantID: grant.ID, Action: "write", Resource: "docs/plan",
		})
		if !errs.IsKind(err, errs.KindConflict) {
			t.Fatalf("failure %d: error = %v, want conflict", i+1, err)
		}
	}

	// The sixth attempt is valid on its own terms but the identity is
	// locked out, and the lockout check runs before the grant check.
	now = now.Add(5 * time.Second)
	_, err = g.Verify(ctx, VerifyParams{
		Identity: "alice", GrantID: grant.ID, Action: "read", Resource: "docs/plan",
	})
	if !errs.IsKind(err, errs.KindRateLimit) {
		t.Fatalf("Verify error = %v, want rate limit", err)
	}

	entries, err := db.ListAuditByGrant(grant.ID)
	if err != nil {
		t.Fatalf("ListAuditByGrant: %v", err)
	}
	last := entries[len(entries)-1]
	if last.Result != models.AuditLockedOut {
		t.Errorf("last audit result = %s, want locked_out", last.Result)
	}

	lockouts := g.ActiveLockouts(ctx)
	if len(lockouts) != 1 || lockouts[0].Identity != "alice" {
		t.Fatalf("ActiveLockouts = %+v, want alice", lockouts)
	}

	// A different identity is unaffected.
	_, err = g.Verify(ctx, VerifyParams{
		Identity: "bob", GrantID: grant.ID, Action: "read", Resource: "docs/plan",
	})
	if err != nil {
		t.Errorf("Verify for bob: %v", err)
	}
}

func TestLockoutAccumulatesAcrossInstances(t *testing.T) {
	db, err := state.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	cfg := config.Default().AWI
	now := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	// Each Grantor stands in for a separate process over the same
	// database; the failure window is shared state, not process memory.
	newGrantor := func() *Grantor {
		g := NewGrantor(db, state.NewCache(db, cfg.LockoutWindow), trail.New(db), cfg)
		g.now = func() time.Time { return now }
		return g
	}

	grant, err := newGrantor().Request(ctx, readerParams())
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	for i := 0; i < cfg.LockoutThreshold; i++ {
		now = now.Add(5 * time.Second)
		_, err := newGrantor().Verify(ctx, VerifyParams{
			Identity: "alice", GrantID: grant.ID, Action: "write", Resource: "docs/plan",
		})
		if !errs.IsKind(err, errs.KindConflict) {
			t.Fatalf("failure %d: error = %v, want conflict", i+1, err)
		}
	}

	now = now.Add(5 * time.Second)
	_, err = newGrantor().Verify(ctx, VerifyParams{
		Identity: "alice", GrantID: grant.ID, Action: "read", Resource: "docs/plan",
	})
	if !errs.IsKind(err, errs.KindRateLimit) {
		t.Fatalf("Verify after threshold = %v, want rate limit", err)
	}
}

func TestAuditTimestampsMonotonic(t *testing.T) {
	g, db := setupGrantor(t)
	ctx := context.Background()

	grant, err := g.Request(ctx, readerParams())
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	for i := 0; i < 3; i++ {
		g.Verify(ctx, VerifyParams{
			Identity: "alice", GrantID: grant.ID, Action: "read", Resource: "docs/plan",
		})
	}

	entries, err := db.ListAuditByGrant(grant.ID)
	if err != nil {
		t.Fatalf("ListAuditByGrant: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d audit entries, want 4", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Timestamp.Before(entries[i-1].Timestamp) {
			t.Errorf("audit entry %d predates entry %d", i, i-1)
		}
	}
}

func TestRequiredLevelDefaults(t *testing.T) {
	g, _ := setupGrantor(t)
	if got := g.RequiredLevel("sign_off"); got != models.LevelAdmin {
		t.Errorf("RequiredLevel(sign_off) = %v, want admin", got)
	}
	if got := g.RequiredLevel("read"); got != models.LevelReader {
		t.Errorf("RequiredLevel(read) = %v, want reader", got)
	}
	// Unmapped actions default to maintainer, not observer.
	if got := g.RequiredLevel("deploy"); got != models.LevelMaintainer {
		t.Errorf("RequiredLevel(deploy) = %v, want maintainer", got)
	}
}
