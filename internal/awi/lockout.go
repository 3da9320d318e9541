package awi

import (
	"context"
	"strings"
	"time"

	"github.com/toolate28/SpiralSafe-sub005/internal/config"
)

// Lockout keys live in the shared cache collaborator, not in process
// memory, so the window holds across concurrent service instances.
const (
	failureKeyPrefix = "awi:failures:"
	lockoutKeyPrefix = "awi:lockout:"
)

// Lockout describes one active deny-all window for an identity.
type Lockout struct {
	Identity string    `json:"identity"`
	Until    time.Time `json:"until"`
}

// lockedOut reports whether the identity's failure count inside the
// sliding window has reached the threshold.
func (g *Grantor) lockedOut(identity string, cfg config.AWIConfig, now time.Time) bool {
	return g.cache.Count(failureKeyPrefix+identity, cfg.LockoutWindow, now) >= cfg.LockoutThreshold
}

// recordFailure adds one failure to the identity's window and, when the
// threshold is crossed, publishes the lockout for the polling surface.
func (g *Grantor) recordFailure(identity string, cfg config.AWIConfig, now time.Time) {
	g.cache.Add(failureKeyPrefix+identity, now)
	if g.cache.Count(failureKeyPrefix+identity, cfg.LockoutWindow, now) >= cfg.LockoutThreshold {
		until := now.Add(cfg.LockoutWindow)
		g.cache.Set(lockoutKeyPrefix+identity, until.UTC().Format(time.RFC3339Nano), cfg.LockoutWindow, now)
	}
}

// ActiveLockouts returns the identities currently denied by the
// lockout window, for the external notifier to poll alongside BLOCK
// escalations.
func (g *Grantor) ActiveLockouts(ctx context.Context) []Lockout {
	entries := g.cache.Entries(lockoutKeyPrefix, g.now())

	lockouts := make([]Lockout, 0, len(entries))
	for key, value := range entries {
		until, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			continue
		}
		lockouts = append(lockouts, Lockout{
			Identity: strings.TrimPrefix(key, lockoutKeyPrefix),
			Until:    until,
		})
	}
	return lockouts
}
