package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"leadgate/internal/gating"
	"leadgate/internal/identity"
	"leadgate/internal/models"
	"leadgate/internal/storage"
	"leadgate/internal/vacancy"

	"github.com/spf13/cobra"
)

var errNoIdentity = errors.New("at least one of --email, --ip or --fingerprint is required")

type identityFlags struct {
	email       string
	ip          string
	fingerprint string
}

func (f *identityFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "Visitor email address")
	cmd.Flags().StringVar(&f.ip, "ip", "", "Visitor IP address")
	cmd.Flags().StringVar(&f.fingerprint, "fingerprint", "", "Browser fingerprint token")
}

func (f *identityFlags) identity() (models.Identity, error) {
	id := models.Identity{
		Email:       models.NormalizeEmail(f.email),
		Fingerprint: models.NormalizeFingerprint(f.fingerprint),
	}
	if ip := strings.TrimSpace(f.ip); ip != "" {
		id.IPAddress = identity.CanonicalIP(ip)
		if id.IPAddress == "" {
			return id, fmt.Errorf("invalid --ip address %q", ip)
		}
	}
	if id.IsEmpty() {
		return id, errNoIdentity
	}
	return id, nil
}

func newUsageCmd() *cobra.Command {
	usageCmd := &cobra.Command{
		Use:   "usage",
		Short: "Inspect or reset the optimization usage ledger",
	}
	usageCmd.AddCommand(newUsageShowCmd())
	usageCmd.AddCommand(newUsageResetCmd())
	return usageCmd
}

func newUsageShowCmd() *cobra.Command {
	var flags identityFlags
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the usage count and gating phase for a visitor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := flags.identity()
			if err != nil {
				return err
			}
			cfg := getConfigFromContext(cmd.Context())
			return withStorage(cfg, func(store storage.Storage) error {
				policy := gating.NewPolicy(store, cfg.Usage.FreeUses, cfg.Usage.BypassLimit)
				return showUsage(cmd.Context(), cmd.OutOrStdout(), policy, id)
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func newUsageResetCmd() *cobra.Command {
	var flags identityFlags
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every ledger row matching any of the given identifiers",
		Long: `Delete every ledger row matching any of the given identifiers.

This is the operator equivalent of /api/admin/reset-limit and does not need
the admin secret. Stored reports are not touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := flags.identity()
			if err != nil {
				return err
			}
			cfg := getConfigFromContext(cmd.Context())
			return withStorage(cfg, func(store storage.Storage) error {
				return resetUsage(cmd.Context(), cmd.OutOrStdout(), store, id)
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func withStorage(cfg *models.Config, fn func(storage.Storage) error) error {
	store, err := storage.NewFactory().Create(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func showUsage(ctx context.Context, out io.Writer, policy *gating.Policy, id models.Identity) error {
	decision, err := policy.Evaluate(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Identifiers: %s\n", id.Describe())
	fmt.Fprintf(out, "Email count: %d\n", decision.EmailCount)
	fmt.Fprintf(out, "Device count: %d\n", decision.IdentityCount)
	fmt.Fprintf(out, "Usage: %d\n", decision.UsageCount)
	fmt.Fprintf(out, "Next phase: %s\n", decision.Phase)
	return nil
}

func resetUsage(ctx context.Context, out io.Writer, store storage.Storage, id models.Identity) error {
	svc := vacancy.NewService(vacancy.Dependencies{Store: store}, vacancy.Options{})
	resp, err := svc.ResetIdentity(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted %d lead(s) for %s\n", resp.DeletedLeads, resp.Identifiers)
	return nil
}
