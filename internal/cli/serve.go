package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"leadgate/internal/models"
	"leadgate/internal/observability"
	"leadgate/internal/version"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var (
		host string
		port int
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP server for the vacancy analyzer.

Available endpoints:
- POST /api/analyze: Analyze a vacancy text (rate limited per IP)
- POST /api/optimize: Optimize an analyzed vacancy (gated by email and browser)
- GET  /api/reports/{id}: Fetch a stored analysis
- GET|POST /api/admin/reset-limit: Reset usage for an identity (admin secret)
- GET  /health: Health check endpoint`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := getConfigFromContext(cmd.Context())
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	serveCmd.Flags().StringVar(&host, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (default from config)")
	return serveCmd
}

// runServe serves until ctx is canceled, then shuts down gracefully.
func runServe(ctx context.Context, cfg *models.Config) error {
	slog.Info("Starting leadgate", "version", version.GetInfo().Version,
		"environment", cfg.Server.Environment,
		"storage", cfg.Storage.Type,
		"ai_provider", cfg.AI.Provider)

	app, err := buildApplication(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.close(closeCtx); err != nil {
			slog.Error("Failed to release resources", "error", err)
		}
	}()

	errCh := make(chan error, 2)

	var metricsServer *observability.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = observability.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, app.provider)
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server failed: %w", err)
			}
		}()
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	go func() {
		slog.Info("Starting server", "addr", server.Addr, "tls", cfg.Server.TLSEnabled)

		var err error
		if cfg.Server.TLSEnabled {
			err = server.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("Shutting down server")
	case runErr = <-errCh:
		slog.Error("Server stopped unexpectedly", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server shutdown complete")
	return runErr
}
