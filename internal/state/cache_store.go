package state

import (
	"strings"
	"time"

	"github.com/toolate28/SpiralSafe-sub005/internal/cache"
)

// Cache is the database-backed cache.Cache implementation. Sliding
// windows and expiring values live in shared tables, so counters such
// as the lockout failure window accumulate across processes and CLI
// invocations instead of resetting with each one.
//
// The cache contract is best-effort: a read failure reads as an empty
// cache and write failures are dropped.
type Cache struct {
	db      *DB
	maxHold time.Duration
}

var _ cache.Cache = (*Cache)(nil)

// NewCache creates a Cache on the given database. maxHold bounds how
// long sliding-window events are retained before pruning; it should be
// at least the longest window any caller uses.
func NewCache(db *DB, maxHold time.Duration) *Cache {
	if maxHold <= 0 {
		maxHold = time.Hour
	}
	return &Cache{db: db, maxHold: maxHold}
}

// Add records one event for a key and prunes events older than maxHold.
func (c *Cache) Add(key string, at time.Time) {
	_, _ = c.db.Exec(
		`DELETE FROM cache_events WHERE key = ? AND at <= ?`,
		key, formatTime(at.Add(-c.maxHold)))
	_, _ = c.db.Exec(
		`INSERT INTO cache_events (key, at) VALUES (?, ?)`,
		key, formatTime(at))
}

// Count returns the number of events inside the window ending at now.
func (c *Cache) Count(key string, window time.Duration, now time.Time) int {
	rows, err := c.db.Query(`SELECT at FROM cache_events WHERE key = ?`, key)
	if err != nil {
		return 0
	}
	defer rows.Close()

	cutoff := now.Add(-window)
	count := 0
	for rows.Next() {
		var at string
		if err := rows.Scan(&at); err != nil {
			return 0
		}
		t, err := parseTime(at)
		if err != nil {
			continue
		}
		if t.After(cutoff) && !t.After(now) {
			count++
		}
	}
	return count
}

// Set stores a value that expires ttl after now.
func (c *Cache) Set(key, value string, ttl time.Duration, now time.Time) {
	_, _ = c.db.Exec(
		`INSERT OR REPLACE INTO cache_values (key, value, expires_at) VALUES (?, ?, ?)`,
		key, value, formatTime(now.Add(ttl)))
}

// Get returns the value for the key if still live as of now.
func (c *Cache) Get(key string, now time.Time) (string, bool) {
	var value, expiresAt string
	row := c.db.QueryRow(`SELECT value, expires_at FROM cache_values WHERE key = ?`, key)
	if err := row.Scan(&value, &expiresAt); err != nil {
		return "", false
	}
	exp, err := parseTime(expiresAt)
	if err != nil || !now.Before(exp) {
		_, _ = c.db.Exec(`DELETE FROM cache_values WHERE key = ?`, key)
		return "", false
	}
	return value, true
}

// Entries returns unexpired values under the prefix.
func (c *Cache) Entries(prefix string, now time.Time) map[string]string {
	out := make(map[string]string)
	rows, err := c.db.Query(`SELECT key, value, expires_at FROM cache_values`)
	if err != nil {
		return out
	}
	defer rows.Close()

	for rows.Next() {
		var key, value, expiresAt string
		if err := rows.Scan(&key, &value, &expiresAt); err != nil {
			return out
		}
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		exp, err := parseTime(expiresAt)
		if err != nil || !now.Before(exp) {
			continue
		}
		out[key] = value
	}
	return out
}
