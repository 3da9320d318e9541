// Package cache provides the fast TTL-based cache collaborator used for
// ephemeral coordination state: lockout failure windows and short-lived
// lookups. Keys are shared across service instances by contract; the
// in-process implementation here satisfies the same interface a shared
// deployment (e.g. a networked cache) would.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Cache is the narrow contract the core consumes. Expiry is always
// computed against the caller-supplied instant, never stored as a
// boolean, so a stale-but-unswept entry still reads as expired.
type Cache interface {
	// Add records one event for a key in its sliding window.
	Add(key string, at time.Time)
	// Count returns how many events for the key fall inside the window
	// ending at now.
	Count(key string, window time.Duration, now time.Time) int
	// Set stores a value that expires ttl after now.
	Set(key, value string, ttl time.Duration, now time.Time)
	// Get returns the value for the key if it has not expired as of now.
	Get(key string, now time.Time) (string, bool)
	// Entries returns all unexpired key/value pairs whose key starts
	// with prefix, for poll-style surfaces like active lockouts.
	Entries(prefix string, now time.Time) map[string]string
}

// Memory is the in-process Cache implementation. All operations are
// safe for concurrent callers.
type Memory struct {
	mu      sync.Mutex
	events  map[string][]time.Time
	values  map[string]entry
	maxHold time.Duration
}

type entry struct {
	value     string
	expiresAt time.Time
}

// NewMemory creates an empty in-memory cache. maxHold bounds how long
// sliding-window events are retained before pruning; it should be at
// least the longest window any caller uses.
func NewMemory(maxHold time.Duration) *Memory {
	if maxHold <= 0 {
		maxHold = time.Hour
	}
	return &Memory{
		events:  make(map[string][]time.Time),
		values:  make(map[string]entry),
		maxHold: maxHold,
	}
}

// Add records one event for a key.
func (m *Memory) Add(key string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[key] = append(m.pruneLocked(key, at), at)
}

// Count returns the number of events inside the window ending at now.
func (m *Memory) Count(key string, window time.Duration, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := now.Add(-window)
	count := 0
	for _, t := range m.events[key] {
		if t.After(cutoff) && !t.After(now) {
			count++
		}
	}
	return count
}

// Set stores a value that expires ttl after now.
func (m *Memory) Set(key, value string, ttl time.Duration, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = entry{value: value, expiresAt: now.Add(ttl)}
}

// Get returns the value for the key if still live as of now.
func (m *Memory) Get(key string, now time.Time) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.values[key]
	if !ok {
		return "", false
	}
	if !now.Before(e.expiresAt) {
		delete(m.values, key)
		return "", false
	}
	return e.value, true
}

// Entries returns unexpired values under the prefix.
func (m *Memory) Entries(prefix string, now time.Time) map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]string)
	for key, e := range m.values {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if !now.Before(e.expiresAt) {
			delete(m.values, key)
			continue
		}
		out[key] = e.value
	}
	return out
}

// pruneLocked drops events older than maxHold so hot keys do not grow
// without bound. Caller must hold m.mu.
func (m *Memory) pruneLocked(key string, now time.Time) []time.Time {
	cutoff := now.Add(-m.maxHold)
	events := m.events[key]
	kept := events[:0]
	for _, t := range events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
