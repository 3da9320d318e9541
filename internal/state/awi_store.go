package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

// Grant and audit store operations. The audit table is append-only:
// grant lifecycle events and every verification attempt land here and
// are never rewritten.

// CreateGrant inserts a new grant.
func (db *DB) CreateGrant(g *models.Grant) error {
	resources, _ := json.Marshal(g.Scope.Resources)
	actions, _ := json.Marshal(g.Scope.Actions)

	_, err := db.Exec(`
		INSERT INTO grants (id, authority, intent, resources, actions, level, granted_to, granted_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, g.ID, g.Authority, g.Intent, string(resources), string(actions),
		int(g.Level), g.GrantedTo, formatTime(g.GrantedAt), formatTime(g.ExpiresAt))
	if err != nil {
		return fmt.Errorf("create grant: %w", err)
	}
	return nil
}

// GetGrant retrieves a grant by ID. Returns nil when absent.
func (db *DB) GetGrant(id string) (*models.Grant, error) {
	row := db.QueryRow(`
		SELECT id, authority, intent, resources, actions, level, granted_to, granted_at, expires_at, revoked_at
		FROM grants WHERE id = ?
	`, id)

	var g models.Grant
	var intent sql.NullString
	var resources, actions string
	var level int
	var grantedAt, expiresAt string
	var revokedAt sql.NullString
	err := row.Scan(&g.ID, &g.Authority, &intent, &resources, &actions,
		&level, &g.GrantedTo, &grantedAt, &expiresAt, &revokedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get grant: %w", err)
	}

	if intent.Valid {
		g.Intent = intent.String
	}
	json.Unmarshal([]byte(resources), &g.Scope.Resources)
	json.Unmarshal([]byte(actions), &g.Scope.Actions)
	g.Level = models.GrantLevel(level)
	g.GrantedAt, _ = parseTime(grantedAt)
	g.ExpiresAt, _ = parseTime(expiresAt)
	g.RevokedAt = parseNullableTime(revokedAt)
	return &g, nil
}

// RevokeGrant atomically stamps revoked_at on an unrevoked grant.
// Reports whether this caller won the conditional update.
func (db *DB) RevokeGrant(id string, at time.Time) (bool, error) {
	result, err := db.Exec(`
		UPDATE grants SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL
	`, formatTime(at), id)
	if err != nil {
		return false, fmt.Errorf("revoke grant: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke grant rows affected: %w", err)
	}
	return n == 1, nil
}

// ListGrantsFor returns all grants issued to an identity, newest first.
func (db *DB) ListGrantsFor(identity string) ([]models.Grant, error) {
	rows, err := db.Query(`
		SELECT id, authority, intent, resources, actions, level, granted_to, granted_at, expires_at, revoked_at
		FROM grants WHERE granted_to = ? ORDER BY granted_at DESC
	`, identity)
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}
	defer rows.Close()

	var grants []models.Grant
	for rows.Next() {
		var g models.Grant
		var intent sql.NullString
		var resources, actions string
		var level int
		var grantedAt, expiresAt string
		var revokedAt sql.NullString
		if err := rows.Scan(&g.ID, &g.Authority, &intent, &resources, &actions,
			&level, &g.GrantedTo, &grantedAt, &expiresAt, &revokedAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		if intent.Valid {
			g.Intent = intent.String
		}
		json.Unmarshal([]byte(resources), &g.Scope.Resources)
		json.Unmarshal([]byte(actions), &g.Scope.Actions)
		g.Level = models.GrantLevel(level)
		g.GrantedAt, _ = parseTime(grantedAt)
		g.ExpiresAt, _ = parseTime(expiresAt)
		g.RevokedAt = parseNullableTime(revokedAt)
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// AppendAudit appends one audit entry.
func (db *DB) AppendAudit(e *models.AuditEntry) error {
	_, err := db.Exec(`
		INSERT INTO awi_audit (id, grant_id, identity, action, resource, result, reason, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.GrantID, e.Identity, e.Action, e.Resource, string(e.Result), e.Reason, formatTime(e.Timestamp))
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// ListAuditByGrant returns all audit entries for a grant, oldest first.
func (db *DB) ListAuditByGrant(grantID string) ([]models.AuditEntry, error) {
	return db.listAudit("grant_id = ?", grantID)
}

// ListAuditByIdentity returns all audit entries for an identity, oldest first.
func (db *DB) ListAuditByIdentity(identity string) ([]models.AuditEntry, error) {
	return db.listAudit("identity = ?", identity)
}

func (db *DB) listAudit(where string, arg any) ([]models.AuditEntry, error) {
	rows, err := db.Query(`
		SELECT id, grant_id, identity, action, resource, result, reason, timestamp
		FROM awi_audit WHERE `+where+` ORDER BY timestamp ASC, id ASC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var grantID, resource, reason sql.NullString
		var timestamp string
		if err := rows.Scan(&e.ID, &grantID, &e.Identity, &e.Action, &resource, &e.Result, &reason, &timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if grantID.Valid {
			e.GrantID = grantID.String
		}
		if resource.Valid {
			e.Resource = resource.String
		}
		if reason.Valid {
			e.Reason = reason.String
		}
		e.Timestamp, _ = parseTime(timestamp)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountAuditByGrant returns the number of audit rows for a grant.
func (db *DB) CountAuditByGrant(grantID string) (int, error) {
	var count int
	row := db.QueryRow("SELECT COUNT(*) FROM awi_audit WHERE grant_id = ?", grantID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count audit: %w", err)
	}
	return count, nil
}
