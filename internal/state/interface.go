package state

import (
	"io"
	"time"

	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

// WaveStore persists content-addressed coherence analyses.
type WaveStore interface {
	PutWave(w *models.WaveAnalysis) error
	GetWave(hash string) (*models.WaveAnalysis, error)
}

// BumpStore persists handoff markers, ownership locks, and escalations.
type BumpStore interface {
	CreateBump(m *models.BumpMarker) error
	GetBump(id string) (*models.BumpMarker, error)
	ResolveBump(id, resolvedBy, notes string, at time.Time) (bool, error)
	ListBumps(f BumpFilter) ([]models.BumpMarker, error)
	CreateEscalation(e *models.Escalation) error
	ResolveEscalation(markerID string, at time.Time) error
	ListOpenEscalations() ([]models.Escalation, error)
	CreateOwnershipLock(entityKind, entityID, lockedAgainst, markerID string, at time.Time) error
	HasOwnershipLock(entityKind, entityID, identity string) (bool, error)
}

// GrantStore persists authority grants and their append-only audit log.
type GrantStore interface {
	CreateGrant(g *models.Grant) error
	GetGrant(id string) (*models.Grant, error)
	RevokeGrant(id string, at time.Time) (bool, error)
	ListGrantsFor(identity string) ([]models.Grant, error)
	AppendAudit(e *models.AuditEntry) error
	ListAuditByGrant(grantID string) ([]models.AuditEntry, error)
	ListAuditByIdentity(identity string) ([]models.AuditEntry, error)
	CountAuditByGrant(grantID string) (int, error)
}

// AtomStore persists atomic task units.
type AtomStore interface {
	CreateAtom(a *models.Atom) error
	GetAtom(id string) (*models.Atom, error)
	UpdateAtomStatus(id string, from, to models.AtomStatus, completedAt, verifiedAt *time.Time, failureReason string) (bool, error)
	ListAtoms() ([]models.Atom, error)
	ListAtomsByStatus(status models.AtomStatus) ([]models.Atom, error)
}

// TrailStore persists the append-only decision trail.
type TrailStore interface {
	AppendTrail(e *models.TrailEntry) error
	GetTrailEntry(id string) (*models.TrailEntry, error)
	QueryTrail(f TrailFilter) ([]models.TrailEntry, error)
	TrailStatistics() (*TrailStats, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// Store is the full relational collaborator contract. Services depend
// on the focused sub-interfaces, not on *DB.
type Store interface {
	io.Closer
	Migrator
	WaveStore
	BumpStore
	GrantStore
	AtomStore
	TrailStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store = (*DB)(nil)
)
