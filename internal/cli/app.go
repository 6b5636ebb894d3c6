package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"leadgate/internal/ai"
	"leadgate/internal/api"
	"leadgate/internal/crm"
	"leadgate/internal/gating"
	"leadgate/internal/identity"
	"leadgate/internal/models"
	"leadgate/internal/notify"
	"leadgate/internal/observability"
	"leadgate/internal/pdf"
	"leadgate/internal/ratelimit"
	"leadgate/internal/storage"
	"leadgate/internal/vacancy"
	"leadgate/internal/version"

	redis "github.com/redis/go-redis/v9"
)

// application holds everything the serve command wires together.
type application struct {
	cfg      *models.Config
	provider *observability.Provider
	store    storage.Storage
	aiClient ai.Client
	service  *vacancy.Service
	router   http.Handler

	closers []func() error
}

// buildApplication wires storage, the AI client, side-effect integrations,
// the gating service and the HTTP router from cfg. The caller owns the
// result and must call close.
func buildApplication(ctx context.Context, cfg *models.Config, obsOpts ...observability.Option) (app *application, err error) {
	app = &application{cfg: cfg}
	defer func() {
		if err != nil {
			_ = app.close(context.Background())
			app = nil
		}
	}()

	app.provider, err = observability.Setup(cfg.Metrics, cfg.Observability, version.GetInfo(), obsOpts...)
	if err != nil {
		return app, fmt.Errorf("failed to initialize observability: %w", err)
	}

	if app.store, err = openStorage(cfg, app.provider); err != nil {
		return app, err
	}
	app.closers = append(app.closers, app.store.Close)

	app.aiClient, err = ai.NewClient(ctx, cfg.AI)
	if err != nil {
		return app, fmt.Errorf("failed to initialize AI client: %w", err)
	}
	app.closers = append(app.closers, app.aiClient.Close)

	funnel, err := observability.NewFunnelMetrics(app.provider.Meter())
	if err != nil {
		return app, fmt.Errorf("failed to create funnel metrics: %w", err)
	}

	renderer := pdf.NewMarotoRenderer(cfg.Email.SiteURL)
	app.service = vacancy.NewService(vacancy.Dependencies{
		Store:   app.store,
		AI:      app.aiClient,
		Policy:  gating.NewPolicy(app.store, cfg.Usage.FreeUses, cfg.Usage.BypassLimit),
		Email:   notify.NewSender(cfg.Email, renderer),
		CRM:     crm.NewSyncer(cfg.CRM),
		Metrics: funnel,
	}, vacancy.Options{
		AITimeout:     cfg.AI.Timeout,
		MaxInputChars: cfg.AI.MaxInputChars,
		AdminSecret:   cfg.Security.AdminSecret,
	})
	if cfg.Usage.BypassLimit {
		slog.Warn("Usage limit bypass is enabled, optimizations are never locked")
	}
	if cfg.Security.AdminSecret == "" {
		slog.Warn("Admin secret not set, usage reset endpoint is disabled")
	}

	resolver := identity.NewResolver(cfg.Server.TrustRemoteAddr)
	handlers := api.NewHandlers(app.service, resolver,
		api.WithStorage(app.store),
		api.WithAIHealth(app.aiClient),
		api.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	)

	routeOpts := []api.RouteOption{}
	if cfg.Observability.Tracing.Enabled {
		routeOpts = append(routeOpts, api.WithOTelMiddleware(cfg.Observability.ServiceName))
	}

	if cfg.AnalysisLimit.Enabled {
		limiter, err := newAnalysisLimiter(ctx, cfg.AnalysisLimit)
		if err != nil {
			return app, err
		}
		app.closers = append(app.closers, limiter.Close)
		routeOpts = append(routeOpts, api.WithAnalysisLimiter(ratelimit.Middleware(limiter, resolver.LimiterKey,
			ratelimit.WithScope("analysis"),
			ratelimit.WithDenyHook(funnel.AnalysisRateLimited),
		)))
	}

	if cfg.Security.RateLimit.Enabled {
		burst := ratelimit.NewBucketLimiter(cfg.Security.RateLimit)
		app.closers = append(app.closers, burst.Close)
		routeOpts = append(routeOpts, api.WithRateLimiter(ratelimit.Middleware(burst, resolver.LimiterKey)))
	}

	app.router = api.SetupRoutes(handlers, cfg, routeOpts...)
	return app, nil
}

// openStorage creates the configured ledger, wrapped with instrumentation
// when metrics are enabled.
func openStorage(cfg *models.Config, provider *observability.Provider) (storage.Storage, error) {
	store, err := storage.NewFactory().Create(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if !cfg.Metrics.Enabled {
		return store, nil
	}

	instrumented, err := observability.NewInstrumentedStorage(store, provider.Meter())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create instrumented storage: %w", err)
	}
	return instrumented, nil
}

func newAnalysisLimiter(ctx context.Context, cfg models.AnalysisLimitConfig) (ratelimit.Limiter, error) {
	switch cfg.Backend {
	case models.LimiterBackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter := ratelimit.NewRedisWindowLimiter(client, cfg.MaxRequests, cfg.Window, cfg.Redis.KeyPrefix)
		// Unreachable Redis is logged, not fatal: the middleware fails open.
		if err := limiter.Ping(ctx); err != nil {
			slog.Warn("Redis unreachable, analysis limit will fail open until it recovers",
				"addr", cfg.Redis.Addr, "error", err)
		}
		return limiter, nil
	case models.LimiterBackendMemory, "":
		return ratelimit.NewWindowLimiter(cfg.MaxRequests, cfg.Window,
			ratelimit.WithCleanupInterval(cfg.CleanupInterval)), nil
	default:
		return nil, fmt.Errorf("unsupported analysis limit backend: %s", cfg.Backend)
	}
}

// close drains background deliveries, then releases resources in reverse
// order of acquisition.
func (a *application) close(ctx context.Context) error {
	if a.service != nil {
		a.service.Wait()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil

	if a.provider != nil {
		if err := a.provider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown observability: %w", err))
		}
	}
	return errors.Join(errs...)
}
