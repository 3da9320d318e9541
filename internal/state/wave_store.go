package state

import (
	"database/sql"
	"fmt"

	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

// Wave store operations. Analyses are content-addressed and immutable:
// there is insert and lookup, nothing else.

// PutWave stores a computed analysis. Re-inserting the same hash is a
// no-op so concurrent analyzers of identical content cannot conflict.
func (db *DB) PutWave(w *models.WaveAnalysis) error {
	_, err := db.Exec(`
		INSERT OR IGNORE INTO waves (hash, curl, divergence, potential, coherence_score, coherent, trivial, source, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.Hash, w.Curl, w.Divergence, w.Potential, w.CoherenceScore,
		boolToInt(w.Coherent), boolToInt(w.Trivial), w.Source, formatTime(w.Timestamp))
	if err != nil {
		return fmt.Errorf("put wave: %w", err)
	}
	return nil
}

// GetWave retrieves a cached analysis by content hash. Returns nil when
// the hash has never been analyzed.
func (db *DB) GetWave(hash string) (*models.WaveAnalysis, error) {
	row := db.QueryRow(`
		SELECT hash, curl, divergence, potential, coherence_score, coherent, trivial, source, timestamp
		FROM waves WHERE hash = ?
	`, hash)

	var w models.WaveAnalysis
	var coherent, trivial int
	var source sql.NullString
	var timestamp string
	err := row.Scan(&w.Hash, &w.Curl, &w.Divergence, &w.Potential, &w.CoherenceScore,
		&coherent, &trivial, &source, &timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get wave: %w", err)
	}

	w.Coherent = coherent != 0
	w.Trivial = trivial != 0
	if source.Valid {
		w.Source = source.String
	}
	w.Timestamp, _ = parseTime(timestamp)
	return &w, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
