package trail

import (
	"context"
	"sort"

	"github.com/toolate28/SpiralSafe-sub005/internal/state"
	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

// LineageNode is one entry with its resolved children, for
// decision-flow visualization.
type LineageNode struct {
	Entry    models.TrailEntry `json:"entry"`
	Children []*LineageNode    `json:"children,omitempty"`
}

// Lineage builds the parent/child forest over the entries matching the
// filter. Entries whose parent is absent from the result set are roots;
// an unresolvable parentId is not an error.
func (t *Trail) Lineage(ctx context.Context, f state.TrailFilter) ([]*LineageNode, error) {
	entries, err := t.Query(ctx, f)
	if err != nil {
		return nil, err
	}

	nodes := make(map[string]*LineageNode, len(entries))
	for _, e := range entries {
		nodes[e.ID] = &LineageNode{Entry: e}
	}

	var roots []*LineageNode
	for _, e := range entries {
		node := nodes[e.ID]
		if e.ParentID != "" {
			if parent, ok := nodes[e.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	sortLineage(roots)
	return roots, nil
}

// sortLineage orders siblings oldest first at every level.
func sortLineage(nodes []*LineageNode) {
	sort.Slice(nodes, func(i, j int) bool {
		return nodes[i].Entry.Timestamp.Before(nodes[j].Entry.Timestamp)
	})
	for _, n := range nodes {
		sortLineage(n.Children)
	}
}
