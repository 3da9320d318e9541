package atom

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/toolate28/SpiralSafe-sub005/internal/awi"
	"github.com/toolate28/SpiralSafe-sub005/internal/bump"
	"github.com/toolate28/SpiralSafe-sub005/internal/errs"
	"github.com/toolate28/SpiralSafe-sub005/internal/state"
	"github.com/toolate28/SpiralSafe-sub005/internal/trail"
	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

// allowedTransitions maps each atom status to the statuses it may move
// to. Verified and failed are terminal. Pending atoms may jump straight
// to complete or verified; the dependency and sign-off guards still
// apply on those paths.
var allowedTransitions = map[models.AtomStatus][]models.AtomStatus{
	models.AtomPending:    {models.AtomInProgress, models.AtomComplete, models.AtomVerified, models.AtomFailed},
	models.AtomInProgress: {models.AtomBlocked, models.AtomComplete, models.AtomFailed},
	models.AtomBlocked:    {models.AtomInProgress, models.AtomComplete},
	models.AtomComplete:   {models.AtomVerified},
}

// CreateParams describes a new atom.
type CreateParams struct {
	Name     string
	Requires []string
	Criteria models.Criteria
	Assignee string
	Priority int
}

// SetStatusParams describes a requested status transition.
type SetStatusParams struct {
	ID     string
	Status models.AtomStatus
	Actor  string
	// SignOffGrantID names the grant authorizing manual verification.
	// Required when the atom's criteria are not automated and the
	// target status is verified.
	SignOffGrantID string
	FailureReason  string
}

// Tracker manages the atom dependency graph: creation, status
// transitions with dependency and verification guards, and ready-work
// scheduling.
type Tracker struct {
	store    state.AtomStore
	registry *bump.Registry
	grantor  *awi.Grantor
	trail    *trail.Trail

	now func() time.Time
}

// NewTracker builds a Tracker. registry and grantor may be nil, which
// disables ownership checks and manual sign-off respectively.
func NewTracker(store state.AtomStore, registry *bump.Registry, grantor *awi.Grantor, tr *trail.Trail) *Tracker {
	return &Tracker{
		store:    store,
		registry: registry,
		grantor:  grantor,
		trail:    tr,
		now:      time.Now,
	}
}

// Create validates a new atom, rejects dependencies that are unknown or
// would close a cycle, persists it, and records the creation.
func (t *Tracker) Create(ctx context.Context, p CreateParams) (*models.Atom, error) {
	if p.Name == "" {
		return nil, errs.Validation("atom", "name is required")
	}
	if p.Criteria.Description == "" {
		return nil, errs.Validation("atom", "verification criteria description is required")
	}
	if p.Priority < 0 {
		return nil, errs.Validation("atom", "priority must be non-negative")
	}

	requires := dedupe(p.Requires)

	existing, err := t.store.ListAtoms()
	if err != nil {
		return nil, errs.Storage("list atoms", err)
	}
	g, err := buildGraph(existing)
	if err != nil {
		return nil, errs.Storage("load atom graph", err)
	}

	a := &models.Atom{
		ID:        "atom-" + uuid.New().String(),
		Name:      p.Name,
		Requires:  requires,
		Criteria:  p.Criteria,
		Status:    models.AtomPending,
		Assignee:  p.Assignee,
		Priority:  p.Priority,
		CreatedAt: t.now(),
	}

	for _, depID := range requires {
		if _, ok := g.nodes[depID]; !ok {
			return nil, errs.NotFound("atom", depID)
		}
		// A dependency that can already reach the new atom would
		// close a cycle once the edge is added.
		if g.reaches(depID, a.ID) {
			return nil, errs.Conflict("atom", a.ID, errs.ReasonCyclicDependency,
				fmt.Sprintf("requiring %s would create a dependency cycle", depID))
		}
	}

	if err := t.store.CreateAtom(a); err != nil {
		return nil, errs.Storage("create atom", err)
	}

	if err := t.record(ctx, a, "created atom",
		fmt.Sprintf("atom %q created with %d requirement(s)", a.Name, len(requires))); err != nil {
		return nil, err
	}
	return a, nil
}

// Get returns an atom by ID.
func (t *Tracker) Get(ctx context.Context, id string) (*models.Atom, error) {
	a, err := t.store.GetAtom(id)
	if err != nil {
		return nil, errs.Storage("get atom", err)
	}
	if a == nil {
		return nil, errs.NotFound("atom", id)
	}
	return a, nil
}

// SetStatus applies a status transition, enforcing the transition
// table, dependency completion, and verification sign-off.
func (t *Tracker) SetStatus(ctx context.Context, p SetStatusParams) (*models.Atom, error) {
	if !p.Status.Valid() {
		return nil, errs.Validation("atom", fmt.Sprintf("invalid status %q", p.Status))
	}
	if p.Status == models.AtomFailed && p.FailureReason == "" {
		return nil, errs.Validation("atom", "failure reason is required when failing an atom")
	}

	a, err := t.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}

	if err := t.checkOwnership(ctx, a.ID, p.Actor); err != nil {
		return nil, err
	}

	if !transitionAllowed(a.Status, p.Status) {
		return nil, errs.Conflict("atom", a.ID, errs.ReasonBadTransition,
			fmt.Sprintf("cannot move from %s to %s", a.Status, p.Status))
	}

	switch p.Status {
	case models.AtomComplete:
		if err := t.requirementsVerified(a); err != nil {
			return nil, err
		}
	case models.AtomVerified:
		if err := t.requirementsVerified(a); err != nil {
			return nil, err
		}
		if err := t.verifyCriteria(ctx, a, p); err != nil {
			return nil, err
		}
	}

	now := t.now()
	var completedAt, verifiedAt *time.Time
	switch p.Status {
	case models.AtomComplete:
		completedAt = &now
	case models.AtomVerified:
		verifiedAt = &now
	}

	won, err := t.store.UpdateAtomStatus(a.ID, a.Status, p.Status, completedAt, verifiedAt, p.FailureReason)
	if err != nil {
		return nil, errs.Storage("update atom status", err)
	}
	if !won {
		return nil, errs.Conflict("atom", a.ID, errs.ReasonBadTransition,
			fmt.Sprintf("atom is no longer %s", a.Status))
	}

	updated, err := t.Get(ctx, a.ID)
	if err != nil {
		return nil, err
	}

	if err := t.record(ctx, updated, fmt.Sprintf("atom %s -> %s", a.Status, p.Status),
		fmt.Sprintf("atom %q moved from %s to %s", a.Name, a.Status, p.Status)); err != nil {
		return nil, err
	}
	return updated, nil
}

// ListReady returns pending atoms whose every requirement is verified,
// highest priority weight first, ties broken by earliest creation.
func (t *Tracker) ListReady(ctx context.Context) ([]models.Atom, error) {
	atoms, err := t.store.ListAtoms()
	if err != nil {
		return nil, errs.Storage("list atoms", err)
	}
	g, err := buildGraph(atoms)
	if err != nil {
		return nil, errs.Storage("load atom graph", err)
	}

	ready := g.ready()
	sort.Slice(ready, func(i, j int) bool {
		wi, wj := ready[i].Weight(), ready[j].Weight()
		if wi != wj {
			return wi > wj
		}
		if !ready[i].CreatedAt.Equal(ready[j].CreatedAt) {
			return ready[i].CreatedAt.Before(ready[j].CreatedAt)
		}
		return ready[i].ID < ready[j].ID
	})
	return ready, nil
}

// List returns all atoms, optionally filtered by status.
func (t *Tracker) List(ctx context.Context, status models.AtomStatus) ([]models.Atom, error) {
	if status == "" {
		atoms, err := t.store.ListAtoms()
		if err != nil {
			return nil, errs.Storage("list atoms", err)
		}
		return atoms, nil
	}
	if !status.Valid() {
		return nil, errs.Validation("atom", fmt.Sprintf("invalid status %q", status))
	}
	atoms, err := t.store.ListAtomsByStatus(status)
	if err != nil {
		return nil, errs.Storage("list atoms", err)
	}
	return atoms, nil
}

// Blocks returns the IDs of atoms that require the given atom, derived
// from the requires edges on every call.
func (t *Tracker) Blocks(ctx context.Context, id string) ([]string, error) {
	if _, err := t.Get(ctx, id); err != nil {
		return nil, err
	}
	atoms, err := t.store.ListAtoms()
	if err != nil {
		return nil, errs.Storage("list atoms", err)
	}
	g, err := buildGraph(atoms)
	if err != nil {
		return nil, errs.Storage("load atom graph", err)
	}
	dependents := g.blocks(id)
	sort.Strings(dependents)
	return dependents, nil
}

// Plan returns all atom IDs in dependency order.
func (t *Tracker) Plan(ctx context.Context) ([]string, error) {
	atoms, err := t.store.ListAtoms()
	if err != nil {
		return nil, errs.Storage("list atoms", err)
	}
	g, err := buildGraph(atoms)
	if err != nil {
		return nil, errs.Storage("load atom graph", err)
	}
	return g.topologicalSort()
}

func (t *Tracker) requirementsVerified(a *models.Atom) error {
	for _, depID := range a.Requires {
		dep, err := t.store.GetAtom(depID)
		if err != nil {
			return errs.Storage("get atom", err)
		}
		if dep == nil || dep.Status != models.AtomVerified {
			return errs.Conflict("atom", a.ID, errs.ReasonDependencyUnmet,
				fmt.Sprintf("requirement %s is not verified", depID))
		}
	}
	return nil
}

func (t *Tracker) verifyCriteria(ctx context.Context, a *models.Atom, p SetStatusParams) error {
	if a.Criteria.Automated {
		return nil
	}
	if t.grantor == nil || p.SignOffGrantID == "" {
		return errs.Conflict("atom", a.ID, errs.ReasonSignoffRequired,
			"manual criteria require a sign-off grant")
	}
	_, err := t.grantor.Verify(ctx, awi.VerifyParams{
		Identity: p.Actor,
		GrantID:  p.SignOffGrantID,
		Action:   "sign_off",
		Resource: "atom/" + a.ID,
	})
	if err != nil {
		return errs.Conflict("atom", a.ID, errs.ReasonSignoffRequired,
			fmt.Sprintf("sign-off rejected: %v", err))
	}
	return nil
}

func (t *Tracker) checkOwnership(ctx context.Context, atomID, actor string) error {
	if t.registry == nil || actor == "" {
		return nil
	}
	return t.registry.CheckOwnership(ctx, "atom", atomID, actor)
}

func (t *Tracker) record(ctx context.Context, a *models.Atom, decision, rationale string) error {
	if t.trail == nil {
		return nil
	}
	w := a.Weight()
	_, err := t.trail.Append(ctx, models.TrailEntry{
		VortexID:  trail.VortexAtom,
		Decision:  decision,
		Rationale: rationale,
		Outcome:   models.OutcomeSuccess,
		Weight:    &w,
		Context:   models.EntityContext("atom", a.ID),
	})
	return err
}

func transitionAllowed(from, to models.AtomStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
