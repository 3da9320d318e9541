// Package state provides the SQLite-backed relational store for the
// coordination core. It persists waves, bump markers, authority grants,
// audit entries, atoms, and the decision trail behind narrow store
// interfaces; the default location is the XDG data dir
// (~/.local/share/spiralsafe/spiralsafe.db).
package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps an SQLite database connection with SpiralSafe-specific operations.
type DB struct {
	conn *sql.DB
	path string
	mu   sync.RWMutex
}

// DefaultDBPath returns the path to the default SpiralSafe database.
func DefaultDBPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, _ := os.UserHomeDir()
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "spiralsafe", "spiralsafe.db")
}

// Open opens an SQLite database at the given path.
// It creates the parent directories if they don't exist.
// WAL mode is enabled for concurrent reads.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// OpenDefault opens the database at the default data-dir location.
func OpenDefault() (*DB, error) {
	return Open(DefaultDBPath())
}

// Close closes the database connection.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Trail},
		{2, migrationV2Waves},
		{3, migrationV3Bumps},
		{4, migrationV4Grants},
		{5, migrationV5Atoms},
		{6, migrationV6Cache},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Migration SQL statements.
//
// The decision trail has no UPDATE or DELETE anywhere in this package;
// the table is append-only by contract.
const migrationV1Trail = `
CREATE TABLE IF NOT EXISTS trail_entries (
	id TEXT PRIMARY KEY,
	vortex_id TEXT NOT NULL,
	decision TEXT NOT NULL,
	rationale TEXT,
	outcome TEXT NOT NULL DEFAULT 'pending',
	coherence_score REAL,
	weight INTEGER,
	context TEXT,
	parent_id TEXT,
	timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trail_vortex ON trail_entries(vortex_id);
CREATE INDEX IF NOT EXISTS idx_trail_outcome ON trail_entries(outcome);
CREATE INDEX IF NOT EXISTS idx_trail_timestamp ON trail_entries(timestamp);
`

const migrationV2Waves = `
CREATE TABLE IF NOT EXISTS waves (
	hash TEXT PRIMARY KEY,
	curl REAL NOT NULL,
	divergence REAL NOT NULL,
	potential REAL NOT NULL,
	coherence_score REAL NOT NULL,
	coherent INTEGER NOT NULL,
	trivial INTEGER NOT NULL DEFAULT 0,
	source TEXT,
	timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_waves_timestamp ON waves(timestamp);
`

const migrationV3Bumps = `
CREATE TABLE IF NOT EXISTS bumps (
	id TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	from_agent TEXT NOT NULL,
	to_agent TEXT NOT NULL,
	state_label TEXT,
	context TEXT,
	from_snapshot TEXT,
	to_snapshot TEXT,
	state TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL,
	resolved_at DATETIME,
	resolved_by TEXT,
	resolution_notes TEXT
);

CREATE INDEX IF NOT EXISTS idx_bumps_state ON bumps(state);
CREATE INDEX IF NOT EXISTS idx_bumps_type ON bumps(type);
CREATE INDEX IF NOT EXISTS idx_bumps_to_agent ON bumps(to_agent);

CREATE TABLE IF NOT EXISTS escalations (
	id TEXT PRIMARY KEY,
	marker_id TEXT NOT NULL,
	raised_by TEXT NOT NULL,
	reason TEXT,
	created_at DATETIME NOT NULL,
	resolved_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_escalations_marker ON escalations(marker_id);

CREATE TABLE IF NOT EXISTS ownership_locks (
	entity_kind TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	locked_against TEXT NOT NULL,
	marker_id TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (entity_kind, entity_id, locked_against)
);
`

const migrationV4Grants = `
CREATE TABLE IF NOT EXISTS grants (
	id TEXT PRIMARY KEY,
	authority TEXT NOT NULL,
	intent TEXT,
	resources TEXT NOT NULL,
	actions TEXT NOT NULL,
	level INTEGER NOT NULL,
	granted_to TEXT NOT NULL,
	granted_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL,
	revoked_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_grants_granted_to ON grants(granted_to);
CREATE INDEX IF NOT EXISTS idx_grants_expires_at ON grants(expires_at);

CREATE TABLE IF NOT EXISTS awi_audit (
	id TEXT PRIMARY KEY,
	grant_id TEXT,
	identity TEXT NOT NULL,
	action TEXT NOT NULL,
	resource TEXT,
	result TEXT NOT NULL,
	reason TEXT,
	timestamp DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_awi_audit_grant ON awi_audit(grant_id);
CREATE INDEX IF NOT EXISTS idx_awi_audit_identity ON awi_audit(identity);
CREATE INDEX IF NOT EXISTS idx_awi_audit_timestamp ON awi_audit(timestamp);
`

const migrationV5Atoms = `
CREATE TABLE IF NOT EXISTS atoms (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	requires TEXT,
	criteria TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	assignee TEXT,
	priority INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	completed_at DATETIME,
	verified_at DATETIME,
	failure_reason TEXT
);

CREATE INDEX IF NOT EXISTS idx_atoms_status ON atoms(status);
CREATE INDEX IF NOT EXISTS idx_atoms_assignee ON atoms(assignee);
`

const migrationV6Cache = `
CREATE TABLE IF NOT EXISTS cache_events (
	key TEXT NOT NULL,
	at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_events_key ON cache_events(key);

CREATE TABLE IF NOT EXISTS cache_values (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	expires_at DATETIME NOT NULL
);
`

// Exec executes a query that doesn't return rows.
func (db *DB) Exec(query string, args ...any) (sql.Result, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows.
func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row.
func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.conn.QueryRow(query, args...)
}

// Transaction runs the given function within a transaction.
func (db *DB) Transaction(fn func(tx *sql.Tx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

// formatTime formats a time.Time for SQLite storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime parses a time string from SQLite.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// parseNullableTime parses a nullable time string from SQLite.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}

// nullableTimeArg converts an optional time into a bindable argument.
func nullableTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
