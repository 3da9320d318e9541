package models

import "time"

// Scope bounds what an authority grant permits: which resources it may
// touch and which actions it may perform on them.
type Scope struct {
	// Resources lists glob patterns the target resource must match.
	Resources []string `json:"resources"`
	// Actions is the set of permitted action names.
	Actions []string `json:"actions"`
}

// AllowsAction returns true if the action is in the scope's action set.
func (s Scope) AllowsAction(action string) bool {
	for _, a := range s.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Grant is a time-boxed, scoped permission record.
type Grant struct {
	// ID is the unique identifier for this grant.
	ID string `json:"id"`
	// Authority is the identity that issued the grant.
	Authority string `json:"authority"`
	// Intent is the stated purpose the grant was requested for.
	Intent string `json:"intent"`
	// Scope bounds the resources and actions this grant covers.
	Scope Scope `json:"scope"`
	// Level is the ordinal capability level of the grant.
	Level GrantLevel `json:"level"`
	// GrantedTo is the identity the grant was issued to.
	GrantedTo string `json:"granted_to"`
	// GrantedAt is when the grant was issued.
	GrantedAt time.Time `json:"granted_at"`
	// ExpiresAt is when the grant stops being valid.
	ExpiresAt time.Time `json:"expires_at"`
	// RevokedAt is when the grant was revoked, if it has been.
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// ValidAt reports whether the grant is live at the given instant.
// Validity is always computed from timestamps, never cached, so an
// unswept-but-expired grant is still correctly invalid.
func (g *Grant) ValidAt(now time.Time) bool {
	return g.RevokedAt == nil && now.Before(g.ExpiresAt)
}

// AuditResult classifies the outcome recorded by an audit entry.
type AuditResult string

const (
	// AuditGranted records a grant being issued.
	AuditGranted AuditResult = "granted"
	// AuditAllowed records a successful verification.
	AuditAllowed AuditResult = "allowed"
	// AuditDenied records a failed verification.
	AuditDenied AuditResult = "denied"
	// AuditRevoked records a grant being revoked.
	AuditRevoked AuditResult = "revoked"
	// AuditLockedOut records a verification rejected by the lockout window.
	AuditLockedOut AuditResult = "locked_out"
)

// AuditEntry is an append-only record of one grant lifecycle event or
// verification attempt. Entries are never updated or deleted.
type AuditEntry struct {
	// ID is the unique identifier for this entry.
	ID string `json:"id"`
	// GrantID references the grant involved, when one exists.
	GrantID string `json:"grant_id,omitempty"`
	// Identity is the caller the event concerns.
	Identity string `json:"identity"`
	// Action is the action that was attempted or performed.
	Action string `json:"action"`
	// Resource is the target resource of a verification, if any.
	Resource string `json:"resource,omitempty"`
	// Result classifies the outcome.
	Result AuditResult `json:"result"`
	// Reason explains denials in terms of the violated check.
	Reason string `json:"reason,omitempty"`
	// Timestamp is when the event happened.
	Timestamp time.Time `json:"timestamp"`
}
