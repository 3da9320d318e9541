package atom

import (
	"errors"
	"fmt"

	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

// ErrCycleDetected indicates a circular dependency in the atom graph.
var ErrCycleDetected = errors.New("circular dependency detected")

// dependencyGraph is a directed acyclic graph over atoms. Edges point
// from an atom to the atoms it requires; the inverse "blocks" relation
// is always derived from these edges, never stored.
type dependencyGraph struct {
	nodes map[string]*models.Atom
	edges map[string][]string
}

// buildGraph constructs the graph from a slice of atoms. It fails on
// references to unknown atoms and on cycles.
func buildGraph(atoms []models.Atom) (*dependencyGraph, error) {
	g := &dependencyGraph{
		nodes: make(map[string]*models.Atom, len(atoms)),
		edges: make(map[string][]string, len(atoms)),
	}

	for i := range atoms {
		a := &atoms[i]
		g.nodes[a.ID] = a
		g.edges[a.ID] = nil
	}
	for i := range atoms {
		a := &atoms[i]
		for _, depID := range a.Requires {
			if _, exists := g.nodes[depID]; !exists {
				return nil, fmt.Errorf("atom %s requires unknown atom %s", a.ID, depID)
			}
			g.edges[a.ID] = append(g.edges[a.ID], depID)
		}
	}

	if g.hasCycle() {
		return nil, ErrCycleDetected
	}
	return g, nil
}

// hasCycle detects back edges with depth-first coloring:
// 0 = white (unvisited), 1 = gray (in progress), 2 = black (done).
func (g *dependencyGraph) hasCycle() bool {
	colors := make(map[string]int, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, depID := range g.edges[id] {
			switch colors[depID] {
			case 1:
				return true
			case 0:
				if visit(depID) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for id := range g.nodes {
		if colors[id] == 0 && visit(id) {
			return true
		}
	}
	return false
}

// reaches reports whether to is reachable from from along requires
// edges. Create uses this to reject a dependency that would close a
// cycle back to the new atom.
func (g *dependencyGraph) reaches(from, to string) bool {
	visited := make(map[string]bool)
	var visit func(id string) bool
	visit = func(id string) bool {
		if id == to {
			return true
		}
		if visited[id] {
			return false
		}
		visited[id] = true
		for _, depID := range g.edges[id] {
			if visit(depID) {
				return true
			}
		}
		return false
	}
	return visit(from)
}

// blocks returns the IDs of atoms that require the given atom: the
// transpose of the requires edges, recomputed on every call.
func (g *dependencyGraph) blocks(id string) []string {
	var dependents []string
	for nodeID, deps := range g.edges {
		for _, depID := range deps {
			if depID == id {
				dependents = append(dependents, nodeID)
				break
			}
		}
	}
	return dependents
}

// ready returns atoms that are pending and whose every requirement is
// verified.
func (g *dependencyGraph) ready() []models.Atom {
	var out []models.Atom
	for id, a := range g.nodes {
		if a.Status != models.AtomPending {
			continue
		}
		satisfied := true
		for _, depID := range g.edges[id] {
			dep := g.nodes[depID]
			if dep == nil || dep.Status != models.AtomVerified {
				satisfied = false
				break
			}
		}
		if satisfied {
			out = append(out, *a)
		}
	}
	return out
}

// topologicalSort returns atom IDs with every requirement before the
// atoms that require it. Fails on cycles.
func (g *dependencyGraph) topologicalSort() ([]string, error) {
	if g.hasCycle() {
		return nil, ErrCycleDetected
	}

	visited := make(map[string]bool, len(g.nodes))
	var result []string

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, depID := range g.edges[id] {
			visit(depID)
		}
		result = append(result, id)
	}

	for id := range g.nodes {
		visit(id)
	}
	return result, nil
}
