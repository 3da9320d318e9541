// Package awi implements the authority grantor: scoped, time-boxed
// permission grants with a full audit log and brute-force lockout.
package awi

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/toolate28/SpiralSafe-sub005/internal/cache"
	"github.com/toolate28/SpiralSafe-sub005/internal/config"
	"github.com/toolate28/SpiralSafe-sub005/internal/errs"
	"github.com/toolate28/SpiralSafe-sub005/internal/state"
	"github.com/toolate28/SpiralSafe-sub005/internal/trail"
	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

// RequestParams carries everything needed to issue a grant.
type RequestParams struct {
	Authority string
	Intent    string
	Scope     models.Scope
	Level     models.GrantLevel
	GrantedTo string
	// TTL bounds the grant lifetime; zero applies the configured
	// default, and anything above the configured maximum is rejected.
	TTL time.Duration
}

// VerifyParams identifies one verification attempt.
type VerifyParams struct {
	// Identity is the caller being verified. The lockout window is
	// keyed on it and checked before any grant state is consulted.
	Identity string
	GrantID  string
	Action   string
	Resource string
}

// Grantor issues, verifies, and revokes authority grants.
type Grantor struct {
	store state.GrantStore
	cache cache.Cache
	trail *trail.Trail

	mu  sync.RWMutex
	cfg config.AWIConfig

	// actionLevels maps action names to the minimum grant level they
	// require. Unmapped actions require maintainer level.
	actionLevels map[string]models.GrantLevel

	now func() time.Time
}

// DefaultActionLevels is the built-in action-to-level policy.
func DefaultActionLevels() map[string]models.GrantLevel {
	return map[string]models.GrantLevel{
		"read":     models.LevelReader,
		"create":   models.LevelContributor,
		"write":    models.LevelContributor,
		"resolve":  models.LevelMaintainer,
		"assign":   models.LevelMaintainer,
		"sign_off": models.LevelAdmin,
		"revoke":   models.LevelAdmin,
	}
}

// NewGrantor creates a Grantor backed by the given collaborators.
func NewGrantor(store state.GrantStore, c cache.Cache, tr *trail.Trail, cfg config.AWIConfig) *Grantor {
	return &Grantor{
		store:        store,
		cache:        c,
		trail:        tr,
		cfg:          cfg,
		actionLevels: DefaultActionLevels(),
		now:          time.Now,
	}
}

// UpdateConfig swaps the timing and lockout settings, for live reload.
func (g *Grantor) UpdateConfig(cfg config.AWIConfig) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
}

func (g *Grantor) config() config.AWIConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// RequiredLevel returns the minimum level for an action.
func (g *Grantor) RequiredLevel(action string) models.GrantLevel {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if level, ok := g.actionLevels[action]; ok {
		return level
	}
	return models.LevelMaintainer
}

// Request issues a new grant and records it in the audit log and trail.
func (g *Grantor) Request(ctx context.Context, p RequestParams) (*models.Grant, error) {
	if p.Authority == "" || p.GrantedTo == "" {
		return nil, errs.Validation("grant", "authority and grantee are required")
	}
	if !p.Level.Valid() {
		return nil, errs.Validation("grant", fmt.Sprintf("level %d out of range", p.Level))
	}
	if len(p.Scope.Actions) == 0 || len(p.Scope.Resources) == 0 {
		return nil, errs.Validation("grant", "scope requires at least one action and one resource pattern")
	}

	cfg := g.config()
	ttl := p.TTL
	if ttl == 0 {
		ttl = cfg.DefaultGrantTTL
	}
	if ttl < 0 || (cfg.MaxGrantTTL > 0 && ttl > cfg.MaxGrantTTL) {
		return nil, errs.Validation("grant", fmt.Sprintf("ttl %s outside allowed range", ttl))
	}

	now := g.now()
	grant := &models.Grant{
		ID:        "awi-" + uuid.NewString(),
		Authority: p.Authority,
		Intent:    p.Intent,
		Scope:     p.Scope,
		Level:     p.Level,
		GrantedTo: p.GrantedTo,
		GrantedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	if err := g.store.CreateGrant(grant); err != nil {
		return nil, errs.Storage("create grant", err)
	}
	if err := g.audit(grant.ID, p.GrantedTo, "request", "", models.AuditGranted, p.Intent); err != nil {
		return nil, err
	}

	_, err := g.trail.Append(ctx, models.TrailEntry{
		VortexID:  trail.VortexAWI,
		Decision:  fmt.Sprintf("granted level %d (%s) to %s", grant.Level, grant.Level, grant.GrantedTo),
		Rationale: p.Intent,
		Outcome:   models.OutcomeSuccess,
		Context:   models.EntityContext("awi", grant.ID),
	})
	if err != nil {
		return nil, err
	}
	return grant, nil
}

// Verify checks one action attempt against a grant. Every call appends
// exactly one audit entry regardless of outcome. The lockout window is
// consulted first, independent of the grant's state, so a locked-out
// identity is denied even against a valid grant.
func (g *Grantor) Verify(ctx context.Context, p VerifyParams) (*models.Grant, error) {
	if p.Identity == "" || p.GrantID == "" || p.Action == "" {
		return nil, errs.Validation("grant", "identity, grant id, and action are required")
	}

	cfg := g.config()
	now := g.now()

	if g.lockedOut(p.Identity, cfg, now) {
		if err := g.audit(p.GrantID, p.Identity, p.Action, p.Resource, models.AuditLockedOut, "lockout window active"); err != nil {
			return nil, err
		}
		return nil, errs.RateLimited(p.Identity,
			fmt.Sprintf("locked out after %d failures in %s", cfg.LockoutThreshold, cfg.LockoutWindow))
	}

	grant, err := g.store.GetGrant(p.GrantID)
	if err != nil {
		return nil, errs.Storage("get grant", err)
	}
	if grant == nil {
		if err := g.deny(p, cfg, now, "grant not found"); err != nil {
			return nil, err
		}
		return nil, errs.NotFound("grant", p.GrantID)
	}

	switch {
	case grant.RevokedAt != nil:
		if err := g.deny(p, cfg, now, "grant revoked"); err != nil {
			return nil, err
		}
		return nil, errs.Conflict("grant", grant.ID, errs.ReasonRevoked, "grant is revoked")

	case !now.Before(grant.ExpiresAt):
		if err := g.deny(p, cfg, now, "grant expired"); err != nil {
			return nil, err
		}
		return nil, errs.Conflict("grant", grant.ID, errs.ReasonExpired, "grant is expired")

	case !grant.Scope.AllowsAction(p.Action):
		if err := g.deny(p, cfg, now, "action not in scope"); err != nil {
			return nil, err
		}
		return nil, errs.Conflict("grant", grant.ID, errs.ReasonActionScope,
			"action "+p.Action+" is outside the grant scope")

	case !matchesResource(grant.Scope.Resources, p.Resource):
		if err := g.deny(p, cfg, now, "resource not in scope"); err != nil {
			return nil, err
		}
		return nil, errs.Conflict("grant", grant.ID, errs.ReasonResourceScope,
			"resource "+p.Resource+" matches no scope pattern")

	case !grant.Level.Covers(g.RequiredLevel(p.Action)):
		if err := g.deny(p, cfg, now, "level insufficient"); err != nil {
			return nil, err
		}
		return nil, errs.Conflict("grant", grant.ID, errs.ReasonLevel,
			fmt.Sprintf("action %s requires level %d, grant has %d",
				p.Action, g.RequiredLevel(p.Action), grant.Level))
	}

	if err := g.audit(grant.ID, p.Identity, p.Action, p.Resource, models.AuditAllowed, ""); err != nil {
		return nil, err
	}
	return grant, nil
}

// Revoke permanently invalidates a grant.
func (g *Grantor) Revoke(ctx context.Context, grantID, revokedBy string) error {
	grant, err := g.store.GetGrant(grantID)
	if err != nil {
		return errs.Storage("get grant", err)
	}
	if grant == nil {
		return errs.NotFound("grant", grantID)
	}

	now := g.now()
	won, err := g.store.RevokeGrant(grantID, now)
	if err != nil {
		return errs.Storage("revoke grant", err)
	}
	if !won {
		return errs.Conflict("grant", grantID, errs.ReasonRevoked, "grant already revoked")
	}

	if err := g.audit(grantID, revokedBy, "revoke", "", models.AuditRevoked, ""); err != nil {
		return err
	}
	_, err = g.trail.Append(ctx, models.TrailEntry{
		VortexID: trail.VortexAWI,
		Decision: fmt.Sprintf("revoked grant for %s", grant.GrantedTo),
		Outcome:  models.OutcomeSuccess,
		Context:  models.EntityContext("awi", grantID),
	})
	return err
}

// AuditFor returns the audit entries for one grant, oldest first.
func (g *Grantor) AuditFor(ctx context.Context, grantID string) ([]models.AuditEntry, error) {
	entries, err := g.store.ListAuditByGrant(grantID)
	if err != nil {
		return nil, errs.Storage("list audit", err)
	}
	return entries, nil
}

// deny records a verification failure in both the audit log and the
// identity's sliding failure window.
func (g *Grantor) deny(p VerifyParams, cfg config.AWIConfig, now time.Time, reason string) error {
	g.recordFailure(p.Identity, cfg, now)
	return g.audit(p.GrantID, p.Identity, p.Action, p.Resource, models.AuditDenied, reason)
}

// audit appends one audit entry; a storage failure here fails the call,
// since an unaudited verification must not succeed.
func (g *Grantor) audit(grantID, identity, action, resource string, result models.AuditResult, reason string) error {
	entry := &models.AuditEntry{
		ID:        "audit-" + uuid.NewString(),
		GrantID:   grantID,
		Identity:  identity,
		Action:    action,
		Resource:  resource,
		Result:    result,
		Reason:    reason,
		Timestamp: g.now(),
	}
	if err := g.store.AppendAudit(entry); err != nil {
		return errs.Storage("append audit", err)
	}
	return nil
}

// matchesResource reports whether the resource matches any scope
// pattern. Patterns use path.Match syntax; a bare "*" matches anything.
func matchesResource(patterns []string, resource string) bool {
	for _, pattern := range patterns {
		if pattern == "*" {
			return true
		}
		if ok, err := path.Match(pattern, resource); err == nil && ok {
			return true
		}
	}
	return false
}
