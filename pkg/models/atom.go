package models

import "time"

// AtomStatus represents the current state of an atomic task unit.
type AtomStatus string

const (
	// AtomPending indicates the atom has not started.
	AtomPending AtomStatus = "pending"
	// AtomInProgress indicates the atom is being worked on.
	AtomInProgress AtomStatus = "in_progress"
	// AtomBlocked indicates the atom cannot proceed right now.
	AtomBlocked AtomStatus = "blocked"
	// AtomComplete indicates the work is done but not yet verified.
	AtomComplete AtomStatus = "complete"
	// AtomVerified indicates the verification criteria were satisfied.
	AtomVerified AtomStatus = "verified"
	// AtomFailed is terminal; a failed atom is never reused, only re-created.
	AtomFailed AtomStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s AtomStatus) Valid() bool {
	switch s {
	case AtomPending, AtomInProgress, AtomBlocked, AtomComplete, AtomVerified, AtomFailed:
		return true
	default:
		return false
	}
}

// Terminal returns true for statuses that permit no further transition.
func (s AtomStatus) Terminal() bool {
	return s == AtomFailed || s == AtomVerified
}

// Criteria defines how an atom's completion is verified.
type Criteria struct {
	// Description states what must be true for the atom to be verified.
	Description string `json:"description"`
	// Automated marks criteria the system evaluates itself. Manual
	// criteria require an admin-level sign-off instead.
	Automated bool `json:"automated"`
}

// Atom is the smallest independently verifiable unit of work.
type Atom struct {
	// ID is the unique identifier for this atom.
	ID string `json:"id"`
	// Name is the short description of the work.
	Name string `json:"name"`
	// Requires lists atom IDs that must be verified before this atom
	// can complete. This is the authoritative edge set; the inverse
	// "blocks" relation is always recomputed, never stored.
	Requires []string `json:"requires,omitempty"`
	// Criteria defines how completion is verified.
	Criteria Criteria `json:"criteria"`
	// Status is the current lifecycle state.
	Status AtomStatus `json:"status"`
	// Assignee is the identity working on this atom.
	Assignee string `json:"assignee,omitempty"`
	// Priority is the Fibonacci rank used for ready-atom scheduling;
	// higher weight wins, ties break by earliest creation.
	Priority int `json:"priority"`
	// CreatedAt is when the atom was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the atom reached complete, if it has.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// VerifiedAt is when the atom reached verified, if it has.
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	// FailureReason records why a failed atom failed.
	FailureReason string `json:"failure_reason,omitempty"`
}

// fibWeights holds the precomputed Fibonacci sequence used for priority
// weighting. Ranks beyond the table clamp to the last entry.
var fibWeights = []int{1, 1, 2, 3, 5, 8, 13, 21, 34, 55, 89, 144}

// Weight returns the Fibonacci weight for the atom's priority rank.
func (a *Atom) Weight() int {
	if a.Priority < 0 {
		return fibWeights[0]
	}
	if a.Priority >= len(fibWeights) {
		return fibWeights[len(fibWeights)-1]
	}
	return fibWeights[a.Priority]
}
