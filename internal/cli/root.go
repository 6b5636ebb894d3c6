package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"leadgate/internal/config"
	"leadgate/internal/logger"
	"leadgate/internal/models"
	"leadgate/internal/version"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}

var configKey = configKeyType{}

// skipConfig marks commands that run without loading configuration.
const skipConfig = "leadgate/skip-config"

// NewRootCommand builds the leadgate command tree.
func NewRootCommand() *cobra.Command {
	var (
		configPath string
		logCloser  io.Closer
	)

	rootCmd := &cobra.Command{
		Use:   "leadgate",
		Short: "Vacancy analysis funnel with usage-gated optimization",
		Long: `Leadgate serves the vacancy analyzer API: free AI analysis behind a
per-IP rate limit, and email-gated optimization that locks after the free
uses are spent. It also carries operator commands for resetting usage.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			log, closer, err := logger.Setup(cfg.Logging, version.GetInfo())
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			logCloser = closer
			slog.SetDefault(log)

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if logCloser != nil {
				return logCloser.Close()
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newUsageCmd())
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree with ctx, which is canceled on shutdown signals.
func Execute(ctx context.Context, args []string) error {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) *models.Config {
	if cfg, ok := ctx.Value(configKey).(*models.Config); ok {
		return cfg
	}
	panic("config not found in context") // Should not happen if properly initialized
}
