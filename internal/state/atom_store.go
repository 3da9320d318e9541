package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

// Atom store operations. The requires column holds the authoritative
// edge set; the inverse "blocks" relation is recomputed by the caller
// and never persisted.

// CreateAtom inserts a new atom.
func (db *DB) CreateAtom(a *models.Atom) error {
	requires, _ := json.Marshal(a.Requires)
	criteria, err := json.Marshal(a.Criteria)
	if err != nil {
		return fmt.Errorf("create atom: encode criteria: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO atoms (id, name, requires, criteria, status, assignee, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, string(requires), string(criteria), string(a.Status),
		a.Assignee, a.Priority, formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("create atom: %w", err)
	}
	return nil
}

// GetAtom retrieves an atom by ID. Returns nil when absent.
func (db *DB) GetAtom(id string) (*models.Atom, error) {
	row := db.QueryRow(`
		SELECT id, name, requires, criteria, status, assignee, priority, created_at, completed_at, verified_at, failure_reason
		FROM atoms WHERE id = ?
	`, id)

	a, err := scanAtomRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get atom: %w", err)
	}
	return a, nil
}

// UpdateAtomStatus atomically transitions an atom from one status to
// another. The conditional update is the arbitration point for racing
// transitions: only one caller observes the old status and wins.
func (db *DB) UpdateAtomStatus(id string, from, to models.AtomStatus, completedAt, verifiedAt *time.Time, failureReason string) (bool, error) {
	result, err := db.Exec(`
		UPDATE atoms SET status = ?,
			completed_at = COALESCE(?, completed_at),
			verified_at = COALESCE(?, verified_at),
			failure_reason = CASE WHEN ? != '' THEN ? ELSE failure_reason END
		WHERE id = ? AND status = ?
	`, string(to), nullableTimeArg(completedAt), nullableTimeArg(verifiedAt),
		failureReason, failureReason, id, string(from))
	if err != nil {
		return false, fmt.Errorf("update atom status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update atom status rows affected: %w", err)
	}
	return n == 1, nil
}

// ListAtoms returns all atoms, oldest first.
func (db *DB) ListAtoms() ([]models.Atom, error) {
	return db.listAtoms("")
}

// ListAtomsByStatus returns atoms with the given status, oldest first.
func (db *DB) ListAtomsByStatus(status models.AtomStatus) ([]models.Atom, error) {
	return db.listAtoms(string(status))
}

func (db *DB) listAtoms(status string) ([]models.Atom, error) {
	query := `
		SELECT id, name, requires, criteria, status, assignee, priority, created_at, completed_at, verified_at, failure_reason
		FROM atoms`
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at ASC, id ASC"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list atoms: %w", err)
	}
	defer rows.Close()

	var atoms []models.Atom
	for rows.Next() {
		a, err := scanAtomRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan atom: %w", err)
		}
		atoms = append(atoms, *a)
	}
	return atoms, rows.Err()
}

// scanAtomRow scans one atom row through the given scan function.
func scanAtomRow(scan func(...any) error) (*models.Atom, error) {
	var a models.Atom
	var requires, assignee, failureReason sql.NullString
	var criteria string
	var createdAt string
	var completedAt, verifiedAt sql.NullString

	err := scan(&a.ID, &a.Name, &requires, &criteria, &a.Status, &assignee,
		&a.Priority, &createdAt, &completedAt, &verifiedAt, &failureReason)
	if err != nil {
		return nil, err
	}

	if requires.Valid && requires.String != "" {
		json.Unmarshal([]byte(requires.String), &a.Requires)
	}
	json.Unmarshal([]byte(criteria), &a.Criteria)
	if assignee.Valid {
		a.Assignee = assignee.String
	}
	if failureReason.Valid {
		a.FailureReason = failureReason.String
	}
	a.CreatedAt, _ = parseTime(createdAt)
	a.CompletedAt = parseNullableTime(completedAt)
	a.VerifiedAt = parseNullableTime(verifiedAt)
	return &a, nil
}
