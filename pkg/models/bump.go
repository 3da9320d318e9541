package models

import "time"

// BumpType classifies a handoff marker between two collaborators.
type BumpType string

const (
	// BumpWave is a soft handoff: the sender keeps ownership, the receiver may act or ignore.
	BumpWave BumpType = "WAVE"
	// BumpPass is a hard handoff: ownership transfers to the receiver at creation.
	BumpPass BumpType = "PASS"
	// BumpPing requests attention with no ownership change and goes stale after a TTL.
	BumpPing BumpType = "PING"
	// BumpSync reconciles bidirectional state between both parties' snapshots.
	BumpSync BumpType = "SYNC"
	// BumpBlock signals a hard stop that only a different agent can resolve.
	BumpBlock BumpType = "BLOCK"
)

// Valid returns true if the type is a known value.
func (t BumpType) Valid() bool {
	switch t {
	case BumpWave, BumpPass, BumpPing, BumpSync, BumpBlock:
		return true
	default:
		return false
	}
}

// BumpState represents the lifecycle state of a marker.
type BumpState string

const (
	// BumpPending indicates the marker has not been resolved.
	BumpPending BumpState = "pending"
	// BumpResolved is the terminal state.
	BumpResolved BumpState = "resolved"
	// BumpStale is a derived state for PING markers whose TTL elapsed
	// unresolved. It is never persisted; it is computed at read time.
	BumpStale BumpState = "stale"
)

// SyncField is one field of a SYNC snapshot with its last-write timestamp.
type SyncField struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncSnapshot captures one party's view of the shared state at marker creation.
type SyncSnapshot map[string]SyncField

// BumpMarker is a typed handoff record between two collaborators.
type BumpMarker struct {
	// ID is the unique identifier for this marker.
	ID string `json:"id"`
	// Type is the handoff semantics for this marker.
	Type BumpType `json:"type"`
	// FromAgent is the identity that created the marker.
	FromAgent string `json:"from_agent"`
	// ToAgent is the identity the marker is addressed to.
	ToAgent string `json:"to_agent"`
	// StateLabel is the caller-supplied label describing what is being handed off.
	StateLabel string `json:"state_label,omitempty"`
	// Context carries the structured payload attached at creation.
	Context Context `json:"context,omitempty"`
	// FromSnapshot and ToSnapshot are recorded for SYNC markers only.
	FromSnapshot SyncSnapshot `json:"from_snapshot,omitempty"`
	ToSnapshot   SyncSnapshot `json:"to_snapshot,omitempty"`
	// State is the persisted lifecycle state (pending or resolved).
	State BumpState `json:"state"`
	// CreatedAt is when the marker was created.
	CreatedAt time.Time `json:"created_at"`
	// ResolvedAt is when the marker was resolved, if it has been.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	// ResolvedBy is the identity that resolved the marker.
	ResolvedBy string `json:"resolved_by,omitempty"`
	// ResolutionNotes records how the handoff concluded.
	ResolutionNotes string `json:"resolution_notes,omitempty"`
}

// EffectiveState returns the marker state as of now, deriving PING
// staleness from the TTL rather than any stored flag.
func (m *BumpMarker) EffectiveState(now time.Time, pingTTL time.Duration) BumpState {
	if m.State == BumpResolved {
		return BumpResolved
	}
	if m.Type == BumpPing && now.Sub(m.CreatedAt) > pingTTL {
		return BumpStale
	}
	return m.State
}

// Escalation is the auditable record produced by a BLOCK marker. It is
// exposed for an external notifier to poll; the core delivers nothing.
type Escalation struct {
	// ID is the unique identifier for this escalation.
	ID string `json:"id"`
	// MarkerID is the BLOCK marker that produced this escalation.
	MarkerID string `json:"marker_id"`
	// RaisedBy is the agent that created the BLOCK marker.
	RaisedBy string `json:"raised_by"`
	// Reason summarizes why work is blocked.
	Reason string `json:"reason,omitempty"`
	// CreatedAt is when the escalation was raised.
	CreatedAt time.Time `json:"created_at"`
	// ResolvedAt is when the underlying marker was resolved.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}
