package main

import (
	"os"

	"github.com/spf13/cobra"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:   "spiralsafe",
	Short: "Multi-party collaboration coordination core",
	Long: `SpiralSafe coordinates multi-party collaboration sessions.

It analyzes content coherence, registers handoff markers between
agents, grants and verifies scoped authority, tracks atomic work units
through a dependency graph, and keeps an append-only decision trail
of everything the system decides.

Core capabilities:
- Scores content coherence (curl, divergence, potential) deterministically
- Registers WAVE/PASS/PING/SYNC/BLOCK handoff markers
- Issues time-bounded authority grants with a full audit log
- Schedules ready work by dependency state and priority weight
- Records and exports the decision trail`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable JSON output")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(bumpCmd)
	rootCmd.AddCommand(awiCmd)
	rootCmd.AddCommand(atomCmd)
	rootCmd.AddCommand(trailCmd)
	rootCmd.AddCommand(escalationsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
