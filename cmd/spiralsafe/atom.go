package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/toolate28/SpiralSafe-sub005/internal/atom"
	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

var atomCmd = &cobra.Command{
	Use:   "atom",
	Short: "Track atomic work units",
	Long: `Create atoms, move them through their lifecycle, and list ready work.

Lifecycle: pending -> in_progress <-> blocked -> complete -> verified.
An atom can fail from pending or in_progress; verified and failed are
terminal. Completing requires every required atom to be verified, and
verifying manual criteria requires a level-4 sign-off grant.`,
}

var (
	atomCreateName      string
	atomCreateRequires  []string
	atomCreateCriteria  string
	atomCreateAutomated bool
	atomCreateAssignee  string
	atomCreatePriority  int
)

var atomCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an atom",
	Long: `Create an atomic work unit.

Dependencies are validated at creation: unknown requirements and
requirements that would close a cycle are rejected.

Examples:
  spiralsafe atom create --name "write schema" --criteria "migration applies cleanly" --automated
  spiralsafe atom create --name "review schema" --criteria "lead approves" \
    --requires atom-123 --priority 3`,
	RunE: runAtomCreate,
}

var (
	atomStatusActor   string
	atomStatusGrant   string
	atomStatusFailure string
)

var atomStatusCmd = &cobra.Command{
	Use:   "status <atom-id> <status>",
	Short: "Move an atom to a new status",
	Long: `Apply a status transition to an atom.

Examples:
  spiralsafe atom status atom-123 in_progress --actor alice
  spiralsafe atom status atom-123 complete --actor alice
  spiralsafe atom status atom-123 verified --actor lead --sign-off-grant awi-456
  spiralsafe atom status atom-123 failed --actor alice --reason "requirements changed"`,
	Args: cobra.ExactArgs(2),
	RunE: runAtomStatus,
}

var atomReadyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List atoms ready to start",
	Long: `List pending atoms whose every requirement is verified, ordered by
priority weight (highest first) with ties broken by earliest creation.`,
	RunE: runAtomReady,
}

var atomListStatus string

var atomListCmd = &cobra.Command{
	Use:   "list",
	Short: "List atoms",
	RunE:  runAtomList,
}

var atomBlocksCmd = &cobra.Command{
	Use:   "blocks <atom-id>",
	Short: "Show atoms blocked by this one",
	Args:  cobra.ExactArgs(1),
	RunE:  runAtomBlocks,
}

var atomPlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show all atoms in dependency order",
	RunE:  runAtomPlan,
}

func init() {
	atomCreateCmd.Flags().StringVar(&atomCreateName, "name", "", "Atom name")
	atomCreateCmd.Flags().StringSliceVar(&atomCreateRequires, "requires", nil, "Required atom ID (repeatable)")
	atomCreateCmd.Flags().StringVar(&atomCreateCriteria, "criteria", "", "Verification criteria description")
	atomCreateCmd.Flags().BoolVar(&atomCreateAutomated, "automated", false, "Criteria verify automatically, no sign-off needed")
	atomCreateCmd.Flags().StringVar(&atomCreateAssignee, "assignee", "", "Identity assigned to the atom")
	atomCreateCmd.Flags().IntVar(&atomCreatePriority, "priority", 0, "Priority rank; weight grows along the Fibonacci sequence")
	atomCreateCmd.MarkFlagRequired("name")
	atomCreateCmd.MarkFlagRequired("criteria")

	atomStatusCmd.Flags().StringVar(&atomStatusActor, "actor", "", "Identity applying the transition")
	atomStatusCmd.Flags().StringVar(&atomStatusGrant, "sign-off-grant", "", "Grant authorizing manual verification")
	atomStatusCmd.Flags().StringVar(&atomStatusFailure, "reason", "", "Failure reason (required when failing)")

	atomListCmd.Flags().StringVar(&atomListStatus, "status", "", "Filter by status")

	atomCmd.AddCommand(atomCreateCmd)
	atomCmd.AddCommand(atomStatusCmd)
	atomCmd.AddCommand(atomReadyCmd)
	atomCmd.AddCommand(atomListCmd)
	atomCmd.AddCommand(atomBlocksCmd)
	atomCmd.AddCommand(atomPlanCmd)
}

func runAtomCreate(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	created, err := a.atoms.Create(cmd.Context(), atom.CreateParams{
		Name:     atomCreateName,
		Requires: atomCreateRequires,
		Criteria: models.Criteria{
			Description: atomCreateCriteria,
			Automated:   atomCreateAutomated,
		},
		Assignee: atomCreateAssignee,
		Priority: atomCreatePriority,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(created)
	}
	fmt.Printf("%s Created atom %s %q (weight %d)\n",
		color.GreenString("✓"), created.ID, created.Name, created.Weight())
	return nil
}

func runAtomStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	updated, err := a.atoms.SetStatus(cmd.Context(), atom.SetStatusParams{
		ID:             args[0],
		Status:         models.AtomStatus(strings.ToLower(args[1])),
		Actor:          atomStatusActor,
		SignOffGrantID: atomStatusGrant,
		FailureReason:  atomStatusFailure,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(updated)
	}
	fmt.Printf("%s Atom %s is now %s\n", color.GreenString("✓"), updated.ID, updated.Status)
	return nil
}

func runAtomReady(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ready, err := a.atoms.ListReady(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(ready)
	}
	if len(ready) == 0 {
		fmt.Println("No atoms are ready.")
		return nil
	}
	fmt.Println("Ready atoms:")
	for _, at := range ready {
		fmt.Printf("  %s  weight %-3d  %q", at.ID, at.Weight(), at.Name)
		if at.Assignee != "" {
			fmt.Printf("  (%s)", at.Assignee)
		}
		fmt.Println()
	}
	return nil
}

func runAtomList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	atoms, err := a.atoms.List(cmd.Context(), models.AtomStatus(strings.ToLower(atomListStatus)))
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(atoms)
	}
	if len(atoms) == 0 {
		fmt.Println("No atoms found.")
		return nil
	}
	for _, at := range atoms {
		fmt.Printf("  %s  %-11s  %q\n", at.ID, at.Status, at.Name)
	}
	return nil
}

func runAtomBlocks(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	blocked, err := a.atoms.Blocks(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(blocked)
	}
	if len(blocked) == 0 {
		fmt.Println("Nothing depends on this atom.")
		return nil
	}
	fmt.Printf("Atoms blocked by %s:\n", args[0])
	for _, id := range blocked {
		fmt.Printf("  %s\n", id)
	}
	return nil
}

func runAtomPlan(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	order, err := a.atoms.Plan(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(order)
	}
	if len(order) == 0 {
		fmt.Println("No atoms tracked.")
		return nil
	}
	for i, id := range order {
		fmt.Printf("%3d. %s\n", i+1, id)
	}
	return nil
}
