package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/toolate28/SpiralSafe-sub005/internal/config"
	"github.com/toolate28/SpiralSafe-sub005/internal/state"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective configuration",
	Long: `Display the effective configuration after merging defaults, the user
config file, the project .spiralsafe.yaml, and SPIRALSAFE_* environment
variables.

Configuration is stored at ~/.config/spiralsafe/config.yaml
Project-specific overrides can be placed in .spiralsafe.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		if jsonOutput {
			if err := printJSON(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
		displayConfig(cfg)
	},
}

func displayConfig(cfg *config.Config) {
	fmt.Printf("coherence.curl_warn: %.2f\n", cfg.Coherence.CurlWarn)
	fmt.Printf("coherence.curl_critical: %.2f\n", cfg.Coherence.CurlCritical)
	fmt.Printf("coherence.divergence_warn: %.2f\n", cfg.Coherence.DivergenceWarn)
	fmt.Printf("coherence.divergence_critical: %.2f\n", cfg.Coherence.DivergenceCritical)
	fmt.Printf("coherence.min_content_length: %d\n", cfg.Coherence.MinContentLength)
	fmt.Printf("coherence.weights.curl: %.2f\n", cfg.Coherence.Weights.Curl)
	fmt.Printf("coherence.weights.potential: %.2f\n", cfg.Coherence.Weights.Potential)
	fmt.Printf("coherence.weights.divergence: %.2f\n", cfg.Coherence.Weights.Divergence)
	fmt.Printf("bumps.ping_ttl: %s\n", cfg.Bumps.PingTTL)
	fmt.Printf("bumps.sync_epsilon: %s\n", cfg.Bumps.SyncEpsilon)
	fmt.Printf("awi.default_grant_ttl: %s\n", cfg.AWI.DefaultGrantTTL)
	fmt.Printf("awi.max_grant_ttl: %s\n", cfg.AWI.MaxGrantTTL)
	fmt.Printf("awi.lockout_window: %s\n", cfg.AWI.LockoutWindow)
	fmt.Printf("awi.lockout_threshold: %d\n", cfg.AWI.LockoutThreshold)

	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		dbPath = state.DefaultDBPath()
	}
	fmt.Printf("storage.db_path: %s\n", dbPath)
	blobDir := cfg.Storage.BlobDir
	if blobDir == "" {
		blobDir = "(alongside db_path)"
	}
	fmt.Printf("storage.blob_dir: %s\n", blobDir)
}
