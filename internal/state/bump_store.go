package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

// Bump store operations, including the ownership locks PASS markers
// impose and the escalation records BLOCK markers produce.

// BumpFilter selects markers for ListBumps. Zero values mean "any".
type BumpFilter struct {
	Type      models.BumpType
	State     models.BumpState
	FromAgent string
	ToAgent   string
	Limit     int
}

// CreateBump inserts a new marker.
func (db *DB) CreateBump(m *models.BumpMarker) error {
	contextJSON, err := marshalContext(m.Context)
	if err != nil {
		return fmt.Errorf("create bump: encode context: %w", err)
	}
	fromSnap, err := marshalSnapshot(m.FromSnapshot)
	if err != nil {
		return fmt.Errorf("create bump: encode from snapshot: %w", err)
	}
	toSnap, err := marshalSnapshot(m.ToSnapshot)
	if err != nil {
		return fmt.Errorf("create bump: encode to snapshot: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO bumps (id, type, from_agent, to_agent, state_label, context, from_snapshot, to_snapshot, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, string(m.Type), m.FromAgent, m.ToAgent, m.StateLabel,
		contextJSON, fromSnap, toSnap, string(m.State), formatTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("create bump: %w", err)
	}
	return nil
}

// GetBump retrieves a marker by ID. Returns nil when absent.
func (db *DB) GetBump(id string) (*models.BumpMarker, error) {
	row := db.QueryRow(`
		SELECT id, type, from_agent, to_agent, state_label, context, from_snapshot, to_snapshot,
			state, created_at, resolved_at, resolved_by, resolution_notes
		FROM bumps WHERE id = ?
	`, id)

	m, err := scanBumpRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bump: %w", err)
	}
	return m, nil
}

// ResolveBump atomically moves a pending marker to resolved. The
// conditional update arbitrates concurrent resolutions: it reports
// whether this caller won, and a loser never silently overwrites.
func (db *DB) ResolveBump(id, resolvedBy, notes string, at time.Time) (bool, error) {
	result, err := db.Exec(`
		UPDATE bumps SET state = ?, resolved_at = ?, resolved_by = ?, resolution_notes = ?
		WHERE id = ? AND state = ?
	`, string(models.BumpResolved), formatTime(at), resolvedBy, notes,
		id, string(models.BumpPending))
	if err != nil {
		return false, fmt.Errorf("resolve bump: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve bump rows affected: %w", err)
	}
	return n == 1, nil
}

// ListBumps returns markers matching the filter, oldest first.
func (db *DB) ListBumps(f BumpFilter) ([]models.BumpMarker, error) {
	query := `
		SELECT id, type, from_agent, to_agent, state_label, context, from_snapshot, to_snapshot,
			state, created_at, resolved_at, resolved_by, resolution_notes
		FROM bumps WHERE 1=1`
	var args []any

	if f.Type != "" {
		query += " AND type = ?"
		args = append(args, string(f.Type))
	}
	if f.State != "" {
		query += " AND state = ?"
		args = append(args, string(f.State))
	}
	if f.FromAgent != "" {
		query += " AND from_agent = ?"
		args = append(args, f.FromAgent)
	}
	if f.ToAgent != "" {
		query += " AND to_agent = ?"
		args = append(args, f.ToAgent)
	}

	query += " ORDER BY created_at ASC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list bumps: %w", err)
	}
	defer rows.Close()

	var markers []models.BumpMarker
	for rows.Next() {
		m, err := scanBumpRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan bump: %w", err)
		}
		markers = append(markers, *m)
	}
	return markers, rows.Err()
}

// Escalation operations

// CreateEscalation records the escalation a BLOCK marker produces.
func (db *DB) CreateEscalation(e *models.Escalation) error {
	_, err := db.Exec(`
		INSERT INTO escalations (id, marker_id, raised_by, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, e.ID, e.MarkerID, e.RaisedBy, e.Reason, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("create escalation: %w", err)
	}
	return nil
}

// ResolveEscalation stamps the escalation for a marker as resolved.
func (db *DB) ResolveEscalation(markerID string, at time.Time) error {
	_, err := db.Exec(`
		UPDATE escalations SET resolved_at = ? WHERE marker_id = ? AND resolved_at IS NULL
	`, formatTime(at), markerID)
	if err != nil {
		return fmt.Errorf("resolve escalation: %w", err)
	}
	return nil
}

// ListOpenEscalations returns escalations with no resolution yet,
// oldest first, for the external notifier to poll.
func (db *DB) ListOpenEscalations() ([]models.Escalation, error) {
	rows, err := db.Query(`
		SELECT id, marker_id, raised_by, reason, created_at, resolved_at
		FROM escalations WHERE resolved_at IS NULL
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list open escalations: %w", err)
	}
	defer rows.Close()

	var escalations []models.Escalation
	for rows.Next() {
		var e models.Escalation
		var reason sql.NullString
		var createdAt string
		var resolvedAt sql.NullString
		if err := rows.Scan(&e.ID, &e.MarkerID, &e.RaisedBy, &reason, &createdAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("scan escalation: %w", err)
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		e.CreatedAt, _ = parseTime(createdAt)
		e.ResolvedAt = parseNullableTime(resolvedAt)
		escalations = append(escalations, e)
	}
	return escalations, rows.Err()
}

// Ownership lock operations (PASS semantics)

// CreateOwnershipLock rejects future ownership-bearing writes by the
// locked-against identity on the given entity.
func (db *DB) CreateOwnershipLock(entityKind, entityID, lockedAgainst, markerID string, at time.Time) error {
	_, err := db.Exec(`
		INSERT OR IGNORE INTO ownership_locks (entity_kind, entity_id, locked_against, marker_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, entityKind, entityID, lockedAgainst, markerID, formatTime(at))
	if err != nil {
		return fmt.Errorf("create ownership lock: %w", err)
	}
	return nil
}

// HasOwnershipLock reports whether the identity is locked out of the entity.
func (db *DB) HasOwnershipLock(entityKind, entityID, identity string) (bool, error) {
	var count int
	row := db.QueryRow(`
		SELECT COUNT(*) FROM ownership_locks
		WHERE entity_kind = ? AND entity_id = ? AND locked_against = ?
	`, entityKind, entityID, identity)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check ownership lock: %w", err)
	}
	return count > 0, nil
}

// scanBumpRow scans one bump row through the given scan function.
func scanBumpRow(scan func(...any) error) (*models.BumpMarker, error) {
	var m models.BumpMarker
	var stateLabel, contextJSON, fromSnap, toSnap sql.NullString
	var createdAt string
	var resolvedAt, resolvedBy, notes sql.NullString

	err := scan(&m.ID, &m.Type, &m.FromAgent, &m.ToAgent, &stateLabel,
		&contextJSON, &fromSnap, &toSnap, &m.State, &createdAt,
		&resolvedAt, &resolvedBy, &notes)
	if err != nil {
		return nil, err
	}

	if stateLabel.Valid {
		m.StateLabel = stateLabel.String
	}
	if contextJSON.Valid && contextJSON.String != "" {
		json.Unmarshal([]byte(contextJSON.String), &m.Context)
	}
	if fromSnap.Valid && fromSnap.String != "" {
		json.Unmarshal([]byte(fromSnap.String), &m.FromSnapshot)
	}
	if toSnap.Valid && toSnap.String != "" {
		json.Unmarshal([]byte(toSnap.String), &m.ToSnapshot)
	}
	m.CreatedAt, _ = parseTime(createdAt)
	m.ResolvedAt = parseNullableTime(resolvedAt)
	if resolvedBy.Valid {
		m.ResolvedBy = resolvedBy.String
	}
	if notes.Valid {
		m.ResolutionNotes = notes.String
	}
	return &m, nil
}

// marshalSnapshot encodes a SYNC snapshot; nil snapshots store empty.
func marshalSnapshot(s models.SyncSnapshot) (string, error) {
	if len(s) == 0 {
		return "", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
