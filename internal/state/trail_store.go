package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

// Trail store operations. The trail is append-only: this file defines
// no UPDATE and no DELETE against trail_entries.

// TrailFilter selects trail entries for Query. Zero values mean "any".
type TrailFilter struct {
	// VortexID filters by originating component.
	VortexID string
	// Outcome filters by outcome.
	Outcome models.Outcome
	// Since and Until bound the timestamp range (inclusive lower,
	// exclusive upper).
	Since *time.Time
	Until *time.Time
	// MinCoherence and MaxCoherence bound the attached coherence score;
	// entries without a score never match a coherence bound.
	MinCoherence *float64
	MaxCoherence *float64
	// Limit caps the result size; 0 means the store default of 100.
	Limit int
	// Offset skips that many matching entries for pagination.
	Offset int
}

// AppendTrail appends one entry. There is no corresponding update or
// delete; a storage failure is reported, never swallowed.
func (db *DB) AppendTrail(e *models.TrailEntry) error {
	contextJSON, err := marshalContext(e.Context)
	if err != nil {
		return fmt.Errorf("append trail: encode context: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO trail_entries (id, vortex_id, decision, rationale, outcome, coherence_score, weight, context, parent_id, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.VortexID, e.Decision, e.Rationale, string(e.Outcome),
		e.CoherenceScore, e.Weight, contextJSON, e.ParentID, formatTime(e.Timestamp))
	if err != nil {
		return fmt.Errorf("append trail: %w", err)
	}
	return nil
}

// GetTrailEntry retrieves one entry by ID. Returns nil when absent.
func (db *DB) GetTrailEntry(id string) (*models.TrailEntry, error) {
	row := db.QueryRow(`
		SELECT id, vortex_id, decision, rationale, outcome, coherence_score, weight, context, parent_id, timestamp
		FROM trail_entries WHERE id = ?
	`, id)

	e, err := scanTrailRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trail entry: %w", err)
	}
	return e, nil
}

// QueryTrail returns entries matching the filter, newest first, with
// stable pagination (timestamp then id ordering).
func (db *DB) QueryTrail(f TrailFilter) ([]models.TrailEntry, error) {
	query := `
		SELECT id, vortex_id, decision, rationale, outcome, coherence_score, weight, context, parent_id, timestamp
		FROM trail_entries WHERE 1=1`
	var args []any

	if f.VortexID != "" {
		query += " AND vortex_id = ?"
		args = append(args, f.VortexID)
	}
	if f.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, string(f.Outcome))
	}
	if f.Since != nil {
		query += " AND timestamp >= ?"
		args = append(args, formatTime(*f.Since))
	}
	if f.Until != nil {
		query += " AND timestamp < ?"
		args = append(args, formatTime(*f.Until))
	}
	if f.MinCoherence != nil {
		query += " AND coherence_score >= ?"
		args = append(args, *f.MinCoherence)
	}
	if f.MaxCoherence != nil {
		query += " AND coherence_score <= ?"
		args = append(args, *f.MaxCoherence)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " ORDER BY timestamp DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trail: %w", err)
	}
	defer rows.Close()

	var entries []models.TrailEntry
	for rows.Next() {
		e, err := scanTrailRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan trail entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// TrailStats aggregates the whole trail for the stats surface.
type TrailStats struct {
	// Total is the number of entries.
	Total int `json:"total"`
	// ByOutcome counts entries per outcome.
	ByOutcome map[models.Outcome]int `json:"by_outcome"`
	// ByVortex counts entries per originating component.
	ByVortex map[string]int `json:"by_vortex"`
	// AvgCoherence averages the coherence scores that are present.
	AvgCoherence float64 `json:"avg_coherence"`
	// Earliest and Latest bound the trail's time range.
	Earliest time.Time `json:"earliest"`
	Latest   time.Time `json:"latest"`
}

// TrailStatistics computes aggregate counts over the whole trail.
func (db *DB) TrailStatistics() (*TrailStats, error) {
	stats := &TrailStats{
		ByOutcome: make(map[models.Outcome]int),
		ByVortex:  make(map[string]int),
	}

	rows, err := db.Query("SELECT outcome, COUNT(*) FROM trail_entries GROUP BY outcome")
	if err != nil {
		return nil, fmt.Errorf("trail stats by outcome: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var outcome string
		var count int
		if err := rows.Scan(&outcome, &count); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		stats.ByOutcome[models.Outcome(outcome)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	vortexRows, err := db.Query("SELECT vortex_id, COUNT(*) FROM trail_entries GROUP BY vortex_id")
	if err != nil {
		return nil, fmt.Errorf("trail stats by vortex: %w", err)
	}
	defer vortexRows.Close()
	for vortexRows.Next() {
		var vortex string
		var count int
		if err := vortexRows.Scan(&vortex, &count); err != nil {
			return nil, fmt.Errorf("scan vortex count: %w", err)
		}
		stats.ByVortex[vortex] = count
	}
	if err := vortexRows.Err(); err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	var earliest, latest sql.NullString
	row := db.QueryRow("SELECT AVG(coherence_score), MIN(timestamp), MAX(timestamp) FROM trail_entries")
	if err := row.Scan(&avg, &earliest, &latest); err != nil {
		return nil, fmt.Errorf("trail stats aggregates: %w", err)
	}
	if avg.Valid {
		stats.AvgCoherence = avg.Float64
	}
	if earliest.Valid {
		stats.Earliest, _ = parseTime(earliest.String)
	}
	if latest.Valid {
		stats.Latest, _ = parseTime(latest.String)
	}

	return stats, nil
}

// scanTrailRow scans one trail row through the given scan function so
// sql.Row and sql.Rows share the decode path.
func scanTrailRow(scan func(...any) error) (*models.TrailEntry, error) {
	var e models.TrailEntry
	var rationale, contextJSON, parentID sql.NullString
	var coherence sql.NullFloat64
	var weight sql.NullInt64
	var timestamp string

	err := scan(&e.ID, &e.VortexID, &e.Decision, &rationale, &e.Outcome,
		&coherence, &weight, &contextJSON, &parentID, &timestamp)
	if err != nil {
		return nil, err
	}

	if rationale.Valid {
		e.Rationale = rationale.String
	}
	if coherence.Valid {
		v := coherence.Float64
		e.CoherenceScore = &v
	}
	if weight.Valid {
		v := int(weight.Int64)
		e.Weight = &v
	}
	if contextJSON.Valid && contextJSON.String != "" {
		json.Unmarshal([]byte(contextJSON.String), &e.Context)
	}
	if parentID.Valid {
		e.ParentID = parentID.String
	}
	e.Timestamp, _ = parseTime(timestamp)
	return &e, nil
}

// marshalContext encodes a context payload for storage; empty contexts
// store as NULL-equivalent empty strings.
func marshalContext(c models.Context) (string, error) {
	if c.IsZero() {
		return "", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
