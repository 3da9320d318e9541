package bump

import (
	"sort"
	"time"

	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

// SyncConflict flags a field both parties wrote inside the epsilon
// window, where last-write-wins would be arbitrary.
type SyncConflict struct {
	Field     string    `json:"field"`
	FromValue string    `json:"from_value"`
	ToValue   string    `json:"to_value"`
	FromAt    time.Time `json:"from_at"`
	ToAt      time.Time `json:"to_at"`
}

// SyncResolution is the outcome of reconciling a SYNC marker's two
// snapshots. It is recorded in the marker's resolution notes.
type SyncResolution struct {
	Merged    models.SyncSnapshot `json:"merged"`
	Conflicts []SyncConflict      `json:"conflicts,omitempty"`
}

// reconcile merges two snapshots field by field using last-write-wins
// by timestamp. Fields written by both sides with divergent values
// inside the epsilon window are merged anyway (the later write wins,
// ties go to the receiver's side) but flagged as explicit conflicts.
func reconcile(from, to models.SyncSnapshot, epsilon time.Duration) SyncResolution {
	res := SyncResolution{Merged: make(models.SyncSnapshot)}

	fields := make(map[string]bool, len(from)+len(to))
	for f := range from {
		fields[f] = true
	}
	for f := range to {
		fields[f] = true
	}

	names := make([]string, 0, len(fields))
	for f := range fields {
		names = append(names, f)
	}
	sort.Strings(names)

	for _, field := range names {
		fromField, inFrom := from[field]
		toField, inTo := to[field]

		switch {
		case inFrom && !inTo:
			res.Merged[field] = fromField
		case inTo && !inFrom:
			res.Merged[field] = toField
		default:
			if fromField.UpdatedAt.After(toField.UpdatedAt) {
				res.Merged[field] = fromField
			} else {
				res.Merged[field] = toField
			}

			if fromField.Value == toField.Value {
				continue
			}
			gap := fromField.UpdatedAt.Sub(toField.UpdatedAt)
			if gap < 0 {
				gap = -gap
			}
			if gap <= epsilon {
				res.Conflicts = append(res.Conflicts, SyncConflict{
					Field:     field,
					FromValue: fromField.Value,
					ToValue:   toField.Value,
					FromAt:    fromField.UpdatedAt,
					ToAt:      toField.UpdatedAt,
				})
			}
		}
	}

	return res
}
