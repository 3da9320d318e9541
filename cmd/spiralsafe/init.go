package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/toolate28/SpiralSafe-sub005/internal/config"
	"github.com/toolate28/SpiralSafe-sub005/internal/state"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [directory]",
	Short: "Initialize a SpiralSafe workspace",
	Long: `Initialize a directory for use with SpiralSafe.

This command sets up everything needed to run SpiralSafe:
  - Creates the data directory and SQLite database
  - Runs schema migrations
  - Writes a .spiralsafe.yaml configuration template

The directory argument is optional and defaults to the current directory.

Examples:
  spiralsafe init              # Initialize current directory
  spiralsafe init ./myproject  # Initialize specific directory
  spiralsafe init --force      # Rewrite the config template if present`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Rewrite the config template even if it exists")
}

const configTemplate = `# SpiralSafe project configuration.
# Values here override ~/.config/spiralsafe/config.yaml.
# Environment variables (SPIRALSAFE_*) override both.

coherence:
  curl_warn: 0.4
  curl_critical: 0.6
  divergence_warn: 0.5
  divergence_critical: 0.7
  weights:
    curl: 0.4
    potential: 0.3
    divergence: 0.3

bumps:
  ping_ttl: 24h
  sync_epsilon: 1s

awi:
  default_grant_ttl: 1h
  max_grant_ttl: 24h
  lockout_window: 5m
  lockout_threshold: 5

storage:
  # db_path: /custom/path/spiralsafe.db
  # blob_dir: /custom/path/blobs
`

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		printStatus("✗", fmt.Sprintf("Config load failed: %v", err), color.FgRed)
		return err
	}
	printStatus("✓", "Configuration loaded", color.FgGreen)

	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	db, err := state.Open(dbPath)
	if err != nil {
		printStatus("✗", fmt.Sprintf("Database open failed: %v", err), color.FgRed)
		return err
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		printStatus("✗", fmt.Sprintf("Migration failed: %v", err), color.FgRed)
		return err
	}
	printStatus("✓", fmt.Sprintf("Database ready at %s", dbPath), color.FgGreen)

	configPath := filepath.Join(dir, ".spiralsafe.yaml")
	if _, err := os.Stat(configPath); err == nil && !initForce {
		printStatus("⚠", ".spiralsafe.yaml exists (use --force to rewrite)", color.FgYellow)
	} else {
		if err := os.WriteFile(configPath, []byte(configTemplate), 0644); err != nil {
			return fmt.Errorf("write config template: %w", err)
		}
		printStatus("✓", "Created .spiralsafe.yaml template", color.FgGreen)
	}

	fmt.Printf("\n%s SpiralSafe initialization complete!\n\n", color.GreenString("✓"))
	fmt.Println("Next steps:")
	fmt.Println("  spiralsafe analyze <file>    # Score content coherence")
	fmt.Println("  spiralsafe atom create ...   # Track a unit of work")
	fmt.Println("  spiralsafe trail query       # Inspect the decision trail")
	return nil
}
