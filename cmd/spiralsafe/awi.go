package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/toolate28/SpiralSafe-sub005/internal/awi"
	"github.com/toolate28/SpiralSafe-sub005/pkg/models"
)

var awiCmd = &cobra.Command{
	Use:   "awi",
	Short: "Manage authority grants",
	Long: `Request, verify, and revoke scoped authority grants.

Grants carry an ordinal level (0 observer through 4 admin), a scope of
resource patterns and action names, and a time-to-live. Every
verification appends an audit entry; repeated failures lock the
identity out for the configured window.`,
}

var (
	awiRequestAuthority string
	awiRequestIntent    string
	awiRequestTo        string
	awiRequestLevel     int
	awiRequestResources []string
	awiRequestActions   []string
	awiRequestTTL       time.Duration
)

var awiRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Request an authority grant",
	Long: `Request a new authority grant.

Examples:
  spiralsafe awi request --authority lead --to alice --intent "review sprint docs" \
    --level 1 --resource 'docs/*' --action read
  spiralsafe awi request --authority lead --to bob --intent "sign off atoms" \
    --level 4 --resource 'atom/*' --action sign_off --ttl 2h`,
	RunE: runAwiRequest,
}

var awiVerifyCmd = &cobra.Command{
	Use:   "verify <grant-id>",
	Short: "Verify an action against a grant",
	Long: `Check whether a grant permits an identity to perform an action on a
resource. The lockout window is checked before the grant itself, and
the attempt is audited either way.`,
	Args: cobra.ExactArgs(1),
	RunE: runAwiVerify,
}

var (
	awiVerifyIdentity string
	awiVerifyAction   string
	awiVerifyResource string
)

var awiRevokeBy string

var awiRevokeCmd = &cobra.Command{
	Use:   "revoke <grant-id>",
	Short: "Revoke a grant",
	Args:  cobra.ExactArgs(1),
	RunE:  runAwiRevoke,
}

var awiAuditCmd = &cobra.Command{
	Use:   "audit <grant-id>",
	Short: "Show the audit log for a grant",
	Args:  cobra.ExactArgs(1),
	RunE:  runAwiAudit,
}

func init() {
	awiRequestCmd.Flags().StringVar(&awiRequestAuthority, "authority", "", "Identity issuing the grant")
	awiRequestCmd.Flags().StringVar(&awiRequestIntent, "intent", "", "Stated purpose of the grant")
	awiRequestCmd.Flags().StringVar(&awiRequestTo, "to", "", "Identity the grant is issued to")
	awiRequestCmd.Flags().IntVar(&awiRequestLevel, "level", 0, "Capability level, 0 (observer) through 4 (admin)")
	awiRequestCmd.Flags().StringSliceVar(&awiRequestResources, "resource", nil, "Resource glob pattern (repeatable)")
	awiRequestCmd.Flags().StringSliceVar(&awiRequestActions, "action", nil, "Permitted action name (repeatable)")
	awiRequestCmd.Flags().DurationVar(&awiRequestTTL, "ttl", 0, "Grant lifetime (default from config)")
	awiRequestCmd.MarkFlagRequired("authority")
	awiRequestCmd.MarkFlagRequired("to")
	awiRequestCmd.MarkFlagRequired("intent")

	awiVerifyCmd.Flags().StringVar(&awiVerifyIdentity, "identity", "", "Identity attempting the action")
	awiVerifyCmd.Flags().StringVar(&awiVerifyAction, "action", "", "Action being attempted")
	awiVerifyCmd.Flags().StringVar(&awiVerifyResource, "resource", "", "Target resource")
	awiVerifyCmd.MarkFlagRequired("identity")
	awiVerifyCmd.MarkFlagRequired("action")
	awiVerifyCmd.MarkFlagRequired("resource")

	awiRevokeCmd.Flags().StringVar(&awiRevokeBy, "by", "", "Identity revoking the grant")
	awiRevokeCmd.MarkFlagRequired("by")

	awiCmd.AddCommand(awiRequestCmd)
	awiCmd.AddCommand(awiVerifyCmd)
	awiCmd.AddCommand(awiRevokeCmd)
	awiCmd.AddCommand(awiAuditCmd)
}

func runAwiRequest(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	g, err := a.grantor.Request(cmd.Context(), awi.RequestParams{
		Authority: awiRequestAuthority,
		Intent:    awiRequestIntent,
		GrantedTo: awiRequestTo,
		Level:     models.GrantLevel(awiRequestLevel),
		Scope: models.Scope{
			Resources: awiRequestResources,
			Actions:   awiRequestActions,
		},
		TTL: awiRequestTTL,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(g)
	}
	fmt.Printf("%s Granted %s to %s at level %d (%s), expires %s\n",
		color.GreenString("✓"), g.ID, g.GrantedTo, int(g.Level), g.Level,
		g.ExpiresAt.Format(time.RFC3339))
	return nil
}

func runAwiVerify(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	g, err := a.grantor.Verify(cmd.Context(), awi.VerifyParams{
		Identity: awiVerifyIdentity,
		GrantID:  args[0],
		Action:   awiVerifyAction,
		Resource: awiVerifyResource,
	})
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(g)
	}
	fmt.Printf("%s %s may %s %s under grant %s\n",
		color.GreenString("✓"), awiVerifyIdentity, awiVerifyAction, awiVerifyResource, g.ID)
	return nil
}

func runAwiRevoke(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.grantor.Revoke(cmd.Context(), args[0], awiRevokeBy); err != nil {
		return err
	}
	fmt.Printf("%s Revoked grant %s\n", color.GreenString("✓"), args[0])
	return nil
}

func runAwiAudit(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.grantor.AuditFor(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("No audit entries.")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("  %s  %-10s  %s %s", e.Timestamp.Format(time.RFC3339), e.Result, e.Identity, e.Action)
		if e.Resource != "" {
			line += " " + e.Resource
		}
		if e.Reason != "" {
			line += "  (" + e.Reason + ")"
		}
		fmt.Println(line)
	}
	return nil
}
