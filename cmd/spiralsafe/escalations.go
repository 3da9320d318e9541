package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/toolate28/SpiralSafe-sub005/internal/config"
)

var (
	escalationsWatch    bool
	escalationsInterval time.Duration
)

var escalationsCmd = &cobra.Command{
	Use:   "escalations",
	Short: "Show open escalations and active lockouts",
	Long: `Poll the escalation and lockout surfaces.

BLOCK markers raise escalations; resolving the marker resolves the
escalation. The core delivers no notifications, so an external
notifier polls this surface. Lockouts list identities currently denied
by the verification failure window.

With --watch the surface is re-polled on an interval and configuration
edits are applied live.`,
	RunE: runEscalations,
}

func init() {
	escalationsCmd.Flags().BoolVar(&escalationsWatch, "watch", false, "Keep polling until interrupted")
	escalationsCmd.Flags().DurationVar(&escalationsInterval, "interval", 10*time.Second, "Polling interval with --watch")
}

func runEscalations(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if !escalationsWatch {
		return printEscalations(cmd.Context(), a)
	}

	// Live-reload timing settings (ping TTL, lockout window) while the
	// watch loop runs, so threshold edits apply without a restart.
	if path := watchableConfigPath(); path != "" {
		err := config.Watch(path, func(cfg *config.Config) {
			a.bumps.UpdateConfig(cfg.Bumps)
			a.grantor.UpdateConfig(cfg.AWI)
			a.analyzer.UpdateConfig(cfg.Coherence)
		})
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(escalationsInterval)
	defer ticker.Stop()

	for {
		if err := printEscalations(ctx, a); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// watchableConfigPath returns the nearest config file to watch, or ""
// when neither a project nor a user config exists.
func watchableConfigPath() string {
	if _, err := os.Stat(".spiralsafe.yaml"); err == nil {
		return ".spiralsafe.yaml"
	}
	if path := config.GetUserConfigPath(); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func printEscalations(ctx context.Context, a *app) error {
	escalations, err := a.bumps.OpenEscalations(ctx)
	if err != nil {
		return err
	}
	lockouts := a.grantor.ActiveLockouts(ctx)

	if jsonOutput {
		return printJSON(map[string]any{
			"escalations": escalations,
			"lockouts":    lockouts,
		})
	}

	if len(escalations) == 0 {
		fmt.Println("No open escalations.")
	} else {
		fmt.Println("Open escalations:")
		for _, e := range escalations {
			age := time.Since(e.CreatedAt).Round(time.Second)
			fmt.Printf("  %s %s  marker %s  raised by %s  (%s ago)",
				color.RedString("!"), e.ID, e.MarkerID, e.RaisedBy, age)
			if e.Reason != "" {
				fmt.Printf("  %q", e.Reason)
			}
			fmt.Println()
		}
	}

	if len(lockouts) == 0 {
		fmt.Println("No active lockouts.")
	} else {
		fmt.Println("Active lockouts:")
		for _, l := range lockouts {
			fmt.Printf("  %s %s  until %s\n",
				color.YellowString("⚠"), l.Identity, l.Until.Format(time.RFC3339))
		}
	}
	return nil
}
