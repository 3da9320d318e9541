// Package errs defines the error taxonomy shared by every subsystem.
// Errors carry a kind, the entity involved, and the violated check so a
// caller can decide whether to retry, escalate, or abandon.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error for caller-side handling.
type Kind string

const (
	// KindValidation marks malformed input rejected before any write.
	KindValidation Kind = "validation"
	// KindNotFound marks a referenced id that does not exist.
	KindNotFound Kind = "not_found"
	// KindConflict marks a violated guard on otherwise well-formed input.
	KindConflict Kind = "conflict"
	// KindRateLimit marks a call rejected by an active lockout.
	KindRateLimit Kind = "rate_limit"
	// KindStorageUnavailable marks a storage collaborator failure. It is
	// never swallowed or blindly retried: a retry could duplicate a write.
	KindStorageUnavailable Kind = "storage_unavailable"
)

// Reason codes name the specific invariant a conflict violated.
const (
	ReasonAlreadyResolved  = "already_resolved"
	ReasonDependencyUnmet  = "dependency_unmet"
	ReasonCyclicDependency = "cyclic_dependency"
	ReasonExpired          = "expired"
	ReasonRevoked          = "revoked"
	ReasonOwnership        = "ownership_transferred"
	ReasonBadTransition    = "invalid_transition"
	ReasonSelfResolve      = "self_resolve_forbidden"
	ReasonSignoffRequired  = "signoff_required"
	ReasonActionScope      = "action_out_of_scope"
	ReasonResourceScope    = "resource_out_of_scope"
	ReasonLevel            = "level_insufficient"
)

// Error is the structured error used across the coordination core.
type Error struct {
	// Kind classifies the error.
	Kind Kind
	// Entity names the entity type involved (bump, atom, grant, ...).
	Entity string
	// ID is the id of the entity involved, when known.
	ID string
	// Reason is the violated-invariant code for conflicts.
	Reason string
	// Msg is the human-readable description.
	Msg string
	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	s := fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	if e.ID != "" {
		s = fmt.Sprintf("%s: %s %s: %s", e.Kind, e.Entity, e.ID, e.Msg)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// Is matches errors by kind and, when set on the target, reason. This
// lets callers write errors.Is(err, &Error{Kind: KindConflict}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != "" && t.Kind != e.Kind {
		return false
	}
	if t.Reason != "" && t.Reason != e.Reason {
		return false
	}
	return true
}

// Validation builds a validation error.
func Validation(entity, msg string) *Error {
	return &Error{Kind: KindValidation, Entity: entity, Msg: msg}
}

// NotFound builds a not-found error for an entity id.
func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id, Msg: "not found"}
}

// Conflict builds a conflict error with a violated-invariant reason.
func Conflict(entity, id, reason, msg string) *Error {
	return &Error{Kind: KindConflict, Entity: entity, ID: id, Reason: reason, Msg: msg}
}

// RateLimited builds a lockout rejection for an identity.
func RateLimited(identity, msg string) *Error {
	return &Error{Kind: KindRateLimit, Entity: "identity", ID: identity, Msg: msg}
}

// Storage wraps a storage collaborator failure.
func Storage(op string, err error) *Error {
	return &Error{Kind: KindStorageUnavailable, Msg: op, Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ReasonOf returns the conflict reason of err, or "" if err is not a
// structured error.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
