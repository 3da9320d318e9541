package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/toolate28/SpiralSafe-sub005/internal/bump"
	"github.com/toolate28/SpiralSafe-sub005/internal/state"
	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

var bumpCmd = &cobra.Command{
	Use:   "bump",
	Short: "Manage handoff markers between collaborators",
	Long: `Create, resolve, and list handoff markers.

Marker types:
  WAVE   soft handoff, sender keeps ownership
  PASS   hard handoff, ownership transfers on resolution
  PING   attention request, goes stale after the configured TTL
  SYNC   bidirectional state reconciliation between two snapshots
  BLOCK  hard stop, raises an escalation, cannot be self-resolved`,
}

var (
	bumpCreateType       string
	bumpCreateFrom       string
	bumpCreateTo         string
	bumpCreateLabel      string
	bumpCreateNote       string
	bumpCreateEntityKind string
	bumpCreateEntityID   string
	bumpCreateFromSnap   string
	bumpCreateToSnap     string
	bumpCreateReason     string
)

var bumpCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a handoff marker",
	Long: `Create a handoff marker between two agents.

Examples:
  spiralsafe bump create --type WAVE --from alice --to bob --label "draft ready"
  spiralsafe bump create --type PASS --from alice --to bob --entity-kind atom --entity-id atom-123
  spiralsafe bump create --type SYNC --from alice --to bob \
    --from-snapshot '{"status":{"value":"done","updated_at":"2026-08-26T10:00:00Z"}}' \
    --to-snapshot   '{"status":{"value":"wip","updated_at":"2026-08-26T09:00:00Z"}}'
  spiralsafe bump create --type BLOCK --from alice --to team --reason "schema migration failed"`,
	RunE: runBumpCreate,
}

var bumpResolveBy string
var bumpResolveNotes string

var bumpResolveCmd = &cobra.Command{
	Use:   "resolve <marker-id>",
	Short: "Resolve a pending marker",
	Long: `Resolve a pending handoff marker.

Resolving a PASS marker locks the referenced entity against further
writes by the original sender. A BLOCK marker cannot be resolved by
the agent that raised it.`,
	Args: cobra.ExactArgs(1),
	RunE: runBumpResolve,
}

var (
	bumpListType  string
	bumpListState string
	bumpListFrom  string
	bumpListTo    string
	bumpListLimit int
)

var bumpListCmd = &cobra.Command{
	Use:   "list",
	Short: "List handoff markers",
	Long: `List handoff markers, optionally filtered.

The stale state is derived at read time: a pending PING older than the
configured TTL lists as stale.

Examples:
  spiralsafe bump list --state pending
  spiralsafe bump list --type PING --state stale
  spiralsafe bump list --from alice --json`,
	RunE: runBumpList,
}

func init() {
	bumpCreateCmd.Flags().StringVar(&bumpCreateType, "type", "", "Marker type: WAVE, PASS, PING, SYNC, or BLOCK")
	bumpCreateCmd.Flags().StringVar(&bumpCreateFrom, "from", "", "Identity creating the marker")
	bumpCreateCmd.Flags().StringVar(&bumpCreateTo, "to", "", "Identity the marker is addressed to")
	bumpCreateCmd.Flags().StringVar(&bumpCreateLabel, "label", "", "Label describing what is being handed off")
	bumpCreateCmd.Flags().StringVar(&bumpCreateNote, "note", "", "Free-form context note")
	bumpCreateCmd.Flags().StringVar(&bumpCreateEntityKind, "entity-kind", "", "Kind of the referenced entity (e.g. atom)")
	bumpCreateCmd.Flags().StringVar(&bumpCreateEntityID, "entity-id", "", "ID of the referenced entity")
	bumpCreateCmd.Flags().StringVar(&bumpCreateFromSnap, "from-snapshot", "", "Sender state snapshot as JSON (SYNC only)")
	bumpCreateCmd.Flags().StringVar(&bumpCreateToSnap, "to-snapshot", "", "Receiver state snapshot as JSON (SYNC only)")
	bumpCreateCmd.Flags().StringVar(&bumpCreateReason, "reason", "", "Why work is blocked (BLOCK only)")
	bumpCreateCmd.MarkFlagRequired("type")
	bumpCreateCmd.MarkFlagRequired("from")
	bumpCreateCmd.MarkFlagRequired("to")

	bumpResolveCmd.Flags().StringVar(&bumpResolveBy, "by", "", "Identity resolving the marker")
	bumpResolveCmd.Flags().StringVar(&bumpResolveNotes, "notes", "", "Resolution notes")
	bumpResolveCmd.MarkFlagRequired("by")

	bumpListCmd.Flags().StringVar(&bumpListType, "type", "", "Filter by marker type")
	bumpListCmd.Flags().StringVar(&bumpListState, "state", "", "Filter by state: pending, resolved, or stale")
	bumpListCmd.Flags().StringVar(&bumpListFrom, "from", "", "Filter by sender identity")
	bumpListCmd.Flags().StringVar(&bumpListTo, "to", "", "Filter by receiver identity")
	bumpListCmd.Flags().IntVar(&bumpListLimit, "limit", 0, "Maximum number of markers to list")

	bumpCmd.AddCommand(bumpCreateCmd)
	bumpCmd.AddCommand(bumpResolveCmd)
	bumpCmd.AddCommand(bumpListCmd)
}

func runBumpCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p := bump.CreateParams{
		Type:       models.BumpType(strings.ToUpper(bumpCreateType)),
		FromAgent:  bumpCreateFrom,
		ToAgent:    bumpCreateTo,
		StateLabel: bumpCreateLabel,
		Reason:     bumpCreateReason,
	}

	switch {
	case bumpCreateEntityKind != "" || bumpCreateEntityID != "":
		p.Context = models.EntityContext(bumpCreateEntityKind, bumpCreateEntityID)
	case bumpCreateNote != "":
		p.Context = models.NoteContext(bumpCreateNote)
	}

	if bumpCreateFromSnap != "" {
		if err := json.Unmarshal([]byte(bumpCreateFromSnap), &p.FromSnapshot); err != nil {
			return fmt.Errorf("parse from-snapshot: %w", err)
		}
	}
	if bumpCreateToSnap != "" {
		if err := json.Unmarshal([]byte(bumpCreateToSnap), &p.ToSnapshot); err != nil {
			return fmt.Errorf("parse to-snapshot: %w", err)
		}
	}

	m, err := a.bumps.Create(cmd.Context(), p)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(m)
	}
	fmt.Printf("%s Created %s marker %s (%s -> %s)\n",
		color.GreenString("✓"), m.Type, m.ID, m.FromAgent, m.ToAgent)
	return nil
}

func runBumpResolve(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	m, err := a.bumps.Resolve(cmd.Context(), args[0], bumpResolveBy, bumpResolveNotes)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(m)
	}
	fmt.Printf("%s Resolved %s marker %s\n", color.GreenString("✓"), m.Type, m.ID)
	if m.Type == models.BumpSync && m.ResolutionNotes != "" {
		fmt.Printf("  Reconciliation: %s\n", m.ResolutionNotes)
	}
	return nil
}

func runBumpList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	f := state.BumpFilter{
		Type:      models.BumpType(strings.ToUpper(bumpListType)),
		State:     models.BumpState(bumpListState),
		FromAgent: bumpListFrom,
		ToAgent:   bumpListTo,
		Limit:     bumpListLimit,
	}
	markers, err := a.bumps.Query(cmd.Context(), f)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(markers)
	}
	if len(markers) == 0 {
		fmt.Println("No markers found.")
		return nil
	}
	for _, m := range markers {
		age := time.Since(m.CreatedAt).Round(time.Second)
		fmt.Printf("  %s  %-5s  %-8s  %s -> %s  (%s ago)", m.ID, m.Type, m.State, m.FromAgent, m.ToAgent, age)
		if m.StateLabel != "" {
			fmt.Printf("  %q", m.StateLabel)
		}
		fmt.Println()
	}
	return nil
}
