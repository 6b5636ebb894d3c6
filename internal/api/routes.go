package api

import (
	"net/http"

	"leadgate/internal/models"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

type routeConfig struct {
	router   *mux.Router
	burst    []mux.MiddlewareFunc
	analysis []mux.MiddlewareFunc
}

// RouteOption configures optional route behavior.
type RouteOption func(*routeConfig)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
func WithOTelMiddleware(serviceName string) RouteOption {
	return func(c *routeConfig) {
		c.router.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return r.URL.Path != "/health" &&
					r.URL.Path != "/api/openapi.yaml" &&
					r.URL.Path != "/api/docs"
			}),
		))
	}
}

// WithRateLimiter adds a throttle to every /api route.
func WithRateLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(c *routeConfig) {
		c.burst = append(c.burst, middleware)
	}
}

// WithAnalysisLimiter guards only the analysis route, which is the one that
// spends model tokens on anonymous input.
func WithAnalysisLimiter(middleware func(http.Handler) http.Handler) RouteOption {
	return func(c *routeConfig) {
		c.analysis = append(c.analysis, middleware)
	}
}

// SetupRoutes configures the HTTP routes for the API
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()
	rc := &routeConfig{router: router}

	for _, opt := range opts {
		opt(rc)
	}

	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	for _, mw := range rc.burst {
		api.Use(mw)
	}

	var analyze http.Handler = http.HandlerFunc(handlers.Analyze)
	for i := len(rc.analysis) - 1; i >= 0; i-- {
		analyze = rc.analysis[i](analyze)
	}
	api.Handle("/analyze", analyze).Methods(http.MethodPost)
	api.HandleFunc("/optimize", handlers.Optimize).Methods(http.MethodPost)
	api.HandleFunc("/reports/{id}", handlers.GetReport).Methods(http.MethodGet)
	api.HandleFunc("/admin/reset-limit", handlers.ResetLimit).Methods(http.MethodGet, http.MethodPost)

	api.HandleFunc("/openapi.yaml", handlers.ServeOpenAPISpec).Methods(http.MethodGet)
	api.HandleFunc("/docs", handlers.ServeSwaggerUI).Methods(http.MethodGet)

	// Preflight requests match no method-restricted route above.
	api.PathPrefix("").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodOptions)

	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}

	router.Use(loggingMiddleware(handlers.resolver))
	router.Use(recoveryMiddleware)

	router.MethodNotAllowedHandler = http.HandlerFunc(methodNotAllowedHandler)
	router.NotFoundHandler = http.HandlerFunc(notFoundHandler)

	return router
}
