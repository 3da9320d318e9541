package state

import (
	"testing"
	"time"
)

func TestCacheSlidingWindowCount(t *testing.T) {
	c := NewCache(setupTestDB(t), time.Hour)
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	c.Add("failures", base)
	c.Add("failures", base.Add(time.Minute))
	c.Add("failures", base.Add(10*time.Minute))

	if got := c.Count("failures", 5*time.Minute, base.Add(2*time.Minute)); got != 2 {
		t.Errorf("Count inside window = %d, want 2", got)
	}
	if got := c.Count("failures", 5*time.Minute, base.Add(10*time.Minute)); got != 1 {
		t.Errorf("Count after slide = %d, want 1", got)
	}
	if got := c.Count("other", time.Hour, base); got != 0 {
		t.Errorf("Count for unknown key = %d, want 0", got)
	}
	// Events stamped after now stay outside the window.
	if got := c.Count("failures", time.Hour, base.Add(2*time.Minute)); got != 2 {
		t.Errorf("Count with future event = %d, want 2", got)
	}
}

func TestCacheCountSurvivesReopen(t *testing.T) {
	db := setupTestDB(t)
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	first := NewCache(db, time.Hour)
	first.Add("failures:alice", base)
	first.Add("failures:alice", base.Add(time.Second))

	// A fresh Cache over the same database sees the earlier events, so
	// windows accumulate across separate process invocations.
	second := NewCache(db, time.Hour)
	second.Add("failures:alice", base.Add(2*time.Second))

	if got := second.Count("failures:alice", time.Minute, base.Add(2*time.Second)); got != 3 {
		t.Errorf("Count across instances = %d, want 3", got)
	}
}

func TestCacheAddPrunesOldEvents(t *testing.T) {
	db := setupTestDB(t)
	c := NewCache(db, time.Minute)
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	c.Add("k", base)
	c.Add("k", base.Add(2*time.Minute))

	var kept int
	row := db.QueryRow(`SELECT COUNT(*) FROM cache_events WHERE key = ?`, "k")
	if err := row.Scan(&kept); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if kept != 1 {
		t.Errorf("retained %d events, want 1 after pruning", kept)
	}
}

func TestCacheSetGetExpiry(t *testing.T) {
	c := NewCache(setupTestDB(t), time.Hour)
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	c.Set("lockout:alice", "until-noon", 5*time.Minute, base)

	if v, ok := c.Get("lockout:alice", base.Add(time.Minute)); !ok || v != "until-noon" {
		t.Errorf("Get before expiry = %q, %v", v, ok)
	}
	// Overwriting refreshes both value and deadline.
	c.Set("lockout:alice", "until-one", 5*time.Minute, base.Add(2*time.Minute))
	if v, ok := c.Get("lockout:alice", base.Add(6*time.Minute)); !ok || v != "until-one" {
		t.Errorf("Get after refresh = %q, %v", v, ok)
	}
	if _, ok := c.Get("lockout:alice", base.Add(10*time.Minute)); ok {
		t.Error("Get at expiry returned a live value")
	}
	if _, ok := c.Get("missing", base); ok {
		t.Error("Get for unknown key returned a value")
	}
}

func TestCacheEntriesByPrefix(t *testing.T) {
	c := NewCache(setupTestDB(t), time.Hour)
	base := time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC)

	c.Set("lockout:alice", "a", time.Hour, base)
	c.Set("lockout:bob", "b", time.Minute, base)
	c.Set("failures:carol", "c", time.Hour, base)

	got := c.Entries("lockout:", base.Add(5*time.Minute))
	if len(got) != 1 {
		t.Fatalf("Entries = %v, want only the unexpired lockout", got)
	}
	if got["lockout:alice"] != "a" {
		t.Errorf("Entries[lockout:alice] = %q, want %q", got["lockout:alice"], "a")
	}
}
