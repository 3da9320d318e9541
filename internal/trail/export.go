package trail

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/toolate28/SpiralSafe-sub005/internal/errs"
	"github.com/toolate28/SpiralSafe-sub005/internal/state"
	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

// Format names a supported export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// Export writes the entries matching the filter to w in the requested
// format, in the same stable order Query uses.
func (t *Trail) Export(ctx context.Context, f state.TrailFilter, format Format, w io.Writer) error {
	entries, err := t.Query(ctx, f)
	if err != nil {
		return err
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case FormatYAML:
		return yaml.NewEncoder(w).Encode(entries)
	case FormatCSV:
		return exportCSV(entries, w)
	default:
		return errs.Validation("trail", "unknown export format "+string(format))
	}
}

// exportCSV flattens entries into rows; optional fields render empty.
func exportCSV(entries []models.TrailEntry, w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "vortex_id", "decision", "rationale", "outcome", "coherence_score", "weight", "parent_id", "timestamp"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, e := range entries {
		coherence := ""
		if e.CoherenceScore != nil {
			coherence = strconv.FormatFloat(*e.CoherenceScore, 'f', -1, 64)
		}
		weight := ""
		if e.Weight != nil {
			weight = strconv.Itoa(*e.Weight)
		}
		row := []string{
			e.ID, e.VortexID, e.Decision, e.Rationale, string(e.Outcome),
			coherence, weight, e.ParentID, e.Timestamp.UTC().Format(time.RFC3339Nano),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
