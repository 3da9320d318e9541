package models

import "time"

// Outcome classifies how a recorded decision turned out.
type Outcome string

const (
	// OutcomeSuccess indicates the decision's action succeeded.
	OutcomeSuccess Outcome = "success"
	// OutcomeFailure indicates the decision's action failed.
	OutcomeFailure Outcome = "failure"
	// OutcomePending indicates the result is not yet known.
	OutcomePending Outcome = "pending"
)

// Valid returns true if the outcome is a known value.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailure, OutcomePending:
		return true
	default:
		return false
	}
}

// TrailEntry is one append-only provenance record. Entries are never
// updated or deleted after they are written.
type TrailEntry struct {
	// ID is the unique identifier for this entry.
	ID string `json:"id"`
	// VortexID names the originating component (wave, bump, awi, atom, ...).
	VortexID string `json:"vortex_id"`
	// Decision states what was decided or done.
	Decision string `json:"decision"`
	// Rationale states why, when the caller recorded one.
	Rationale string `json:"rationale,omitempty"`
	// Outcome classifies the result.
	Outcome Outcome `json:"outcome"`
	// CoherenceScore carries the score attached to the decision, if any.
	CoherenceScore *float64 `json:"coherence_score,omitempty"`
	// Weight carries the priority weight used for the decision, if any.
	Weight *int `json:"weight,omitempty"`
	// Context carries the structured payload attached to the entry.
	Context Context `json:"context,omitempty"`
	// ParentID links this entry to the decision it descends from.
	// An unresolvable parent makes the entry a lineage root.
	ParentID string `json:"parent_id,omitempty"`
	// Timestamp is when the entry was appended.
	Timestamp time.Time `json:"timestamp"`
}
