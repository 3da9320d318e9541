package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/toolate28/SpiralSafe-sub005/internal/state"
	"github.com/toolate28/SpiralSafe-sub005/internal/trail"
	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

var trailCmd = &cobra.Command{
	Use:   "trail",
	Short: "Inspect the decision trail",
	Long: `Query, export, and summarize the append-only decision trail.

Every analysis, handoff, grant event, and atom transition records one
entry. Entries are never updated or deleted.`,
}

var (
	trailVortex       string
	trailOutcome      string
	trailSince        string
	trailUntil        string
	trailMinCoherence float64
	trailMaxCoherence float64
	trailLimit        int
	trailOffset       int
)

var trailQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query trail entries",
	Long: `Query trail entries, newest first.

Examples:
  spiralsafe trail query --vortex atom --limit 20
  spiralsafe trail query --outcome failure --since 2026-08-01T00:00:00Z
  spiralsafe trail query --min-coherence 0.7 --json`,
	RunE: runTrailQuery,
}

var trailExportFormat string
var trailExportOut string

var trailExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export trail entries",
	Long: `Export trail entries as JSON, YAML, or CSV.

Examples:
  spiralsafe trail export --format csv --out trail.csv
  spiralsafe trail export --format yaml --vortex awi`,
	RunE: runTrailExport,
}

var trailStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the trail",
	RunE:  runTrailStats,
}

var trailLineageCmd = &cobra.Command{
	Use:   "lineage",
	Short: "Show decision lineage",
	Long: `Show trail entries as decision trees, children indented under the
parent decision they followed from. Entries whose parent is not in the
result set are shown as roots.`,
	RunE: runTrailLineage,
}

func init() {
	for _, c := range []*cobra.Command{trailQueryCmd, trailExportCmd, trailLineageCmd} {
		c.Flags().StringVar(&trailVortex, "vortex", "", "Filter by originating component (wave, bump, awi, atom)")
		c.Flags().StringVar(&trailOutcome, "outcome", "", "Filter by outcome (success, failure, pending)")
		c.Flags().StringVar(&trailSince, "since", "", "Lower timestamp bound (RFC3339, inclusive)")
		c.Flags().StringVar(&trailUntil, "until", "", "Upper timestamp bound (RFC3339, exclusive)")
		c.Flags().Float64Var(&trailMinCoherence, "min-coherence", -1, "Minimum attached coherence score")
		c.Flags().Float64Var(&trailMaxCoherence, "max-coherence", -1, "Maximum attached coherence score")
		c.Flags().IntVar(&trailLimit, "limit", 0, "Maximum entries (default 100)")
		c.Flags().IntVar(&trailOffset, "offset", 0, "Entries to skip")
	}

	trailExportCmd.Flags().StringVar(&trailExportFormat, "format", "json", "Export format: json, yaml, or csv")
	trailExportCmd.Flags().StringVar(&trailExportOut, "out", "", "Output file (default stdout)")

	trailCmd.AddCommand(trailQueryCmd)
	trailCmd.AddCommand(trailExportCmd)
	trailCmd.AddCommand(trailStatsCmd)
	trailCmd.AddCommand(trailLineageCmd)
}

func trailFilter() (state.TrailFilter, error) {
	f := state.TrailFilter{
		VortexID: trailVortex,
		Outcome:  models.Outcome(strings.ToLower(trailOutcome)),
		Limit:    trailLimit,
		Offset:   trailOffset,
	}
	if trailSince != "" {
		t, err := time.Parse(time.RFC3339, trailSince)
		if err != nil {
			return f, fmt.Errorf("parse since: %w", err)
		}
		f.Since = &t
	}
	if trailUntil != "" {
		t, err := time.Parse(time.RFC3339, trailUntil)
		if err != nil {
			return f, fmt.Errorf("parse until: %w", err)
		}
		f.Until = &t
	}
	if trailMinCoherence >= 0 {
		v := trailMinCoherence
		f.MinCoherence = &v
	}
	if trailMaxCoherence >= 0 {
		v := trailMaxCoherence
		f.MaxCoherence = &v
	}
	return f, nil
}

func runTrailQuery(cmd *cobra.Command, args []string) error {
	f, err := trailFilter()
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.trail.Query(cmd.Context(), f)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("No trail entries found.")
		return nil
	}
	for _, e := range entries {
		printTrailEntry(&e, 0)
	}
	return nil
}

func runTrailExport(cmd *cobra.Command, args []string) error {
	f, err := trailFilter()
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := os.Stdout
	if trailExportOut != "" {
		file, err := os.Create(trailExportOut)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer file.Close()
		out = file
	}

	return a.trail.Export(cmd.Context(), f, trail.Format(strings.ToLower(trailExportFormat)), out)
}

func runTrailStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.trail.Stats(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(stats)
	}
	fmt.Printf("Entries: %d\n", stats.Total)
	if stats.Total == 0 {
		return nil
	}
	fmt.Printf("Span:    %s to %s\n",
		stats.Earliest.Format(time.RFC3339), stats.Latest.Format(time.RFC3339))
	if stats.AvgCoherence > 0 {
		fmt.Printf("Avg coherence: %.3f\n", stats.AvgCoherence)
	}
	fmt.Println("By outcome:")
	for outcome, n := range stats.ByOutcome {
		fmt.Printf("  %-8s %d\n", outcome, n)
	}
	fmt.Println("By vortex:")
	for vortex, n := range stats.ByVortex {
		fmt.Printf("  %-8s %d\n", vortex, n)
	}
	return nil
}

func runTrailLineage(cmd *cobra.Command, args []string) error {
	f, err := trailFilter()
	if err != nil {
		return err
	}
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	roots, err := a.trail.Lineage(cmd.Context(), f)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(roots)
	}
	if len(roots) == 0 {
		fmt.Println("No trail entries found.")
		return nil
	}
	for _, root := range roots {
		printLineage(root, 0)
	}
	return nil
}

func printLineage(n *trail.LineageNode, depth int) {
	printTrailEntry(&n.Entry, depth)
	for _, child := range n.Children {
		printLineage(child, depth+1)
	}
}

func printTrailEntry(e *models.TrailEntry, depth int) {
	indent := strings.Repeat("  ", depth+1)
	fmt.Printf("%s%s  [%s/%s]  %s\n", indent,
		e.Timestamp.Format(time.RFC3339), e.VortexID, e.Outcome, e.Decision)
	if e.Rationale != "" {
		fmt.Printf("%s  %s\n", indent, e.Rationale)
	}
}
