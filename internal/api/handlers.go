package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"leadgate/internal/identity"
	"leadgate/internal/models"
	"leadgate/internal/vacancy"
	"leadgate/internal/version"

	"github.com/gorilla/mux"
)

const defaultMaxBodyBytes = 1 << 20

// Pinger is any dependency the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter reports the health of a dependency without a round trip.
type HealthReporter interface {
	IsHealthy() bool
}

// Handlers contains HTTP handlers for the leadgate API
type Handlers struct {
	service      vacancy.ServiceInterface
	resolver     *identity.Resolver
	storage      Pinger
	ai           HealthReporter
	maxBodyBytes int64
}

// HandlerOption configures optional Handlers dependencies.
type HandlerOption func(*Handlers)

// WithStorage sets the ledger probed by the health check.
func WithStorage(s Pinger) HandlerOption {
	return func(h *Handlers) {
		h.storage = s
	}
}

// WithAIHealth sets the AI client reported by the health check.
func WithAIHealth(r HealthReporter) HandlerOption {
	return func(h *Handlers) {
		h.ai = r
	}
}

// WithMaxBodyBytes caps request bodies.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handlers) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// NewHandlers creates a new handlers instance
func NewHandlers(service vacancy.ServiceInterface, resolver *identity.Resolver, opts ...HandlerOption) *Handlers {
	h := &Handlers{
		service:      service,
		resolver:     resolver,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Analyze handles vacancy analysis requests
// POST /api/analyze
func (h *Handlers) Analyze(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	response, err := h.service.Analyze(r.Context(), &req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// Optimize handles gated optimization requests. A locked visitor gets a 200
// with isLocked set, not an error.
// POST /api/optimize
func (h *Handlers) Optimize(w http.ResponseWriter, r *http.Request) {
	var req models.OptimizeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	id := h.resolver.Resolve(r, req.Email, req.Fingerprint)
	req.Fingerprint = id.Fingerprint

	response, err := h.service.Optimize(r.Context(), &req, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// GetReport returns a stored analysis report
// GET /api/reports/{id}
func (h *Handlers) GetReport(w http.ResponseWriter, r *http.Request) {
	response, err := h.service.GetReport(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// ResetLimit deletes the ledger rows of the caller's IP and fingerprint, plus
// an optional email override. The secret comes from the query string on GET
// and from the JSON body on POST.
// GET|POST /api/admin/reset-limit
func (h *Handlers) ResetLimit(w http.ResponseWriter, r *http.Request) {
	var req models.ResetUsageRequest
	if r.Method == http.MethodPost {
		if !h.decodeJSON(w, r, &req) {
			return
		}
	} else {
		query := r.URL.Query()
		req.Secret = query.Get("secret")
		req.Email = query.Get("email")
	}

	// The fingerprint is only ever taken from the header here.
	id := h.resolver.Resolve(r, req.Email, "")

	response, err := h.service.ResetUsage(r.Context(), req.Secret, id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// HealthCheck handles health check requests
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = version.GetInfo().Version

	if h.storage != nil {
		if err := h.storage.Ping(r.Context()); err != nil {
			slog.Warn("Health check: storage ping failed", "error", err)
			response.AddComponent("storage", models.StatusUnhealthy, "Storage is unreachable")
		} else {
			response.AddComponent("storage", models.StatusHealthy, "Storage is operational")
		}
	}

	if h.ai != nil {
		if h.ai.IsHealthy() {
			response.AddComponent("ai", models.StatusHealthy, "AI provider is operational")
		} else {
			response.AddComponent("ai", models.StatusUnhealthy, "AI provider is unavailable or not configured")
		}
	}

	response.AddComponent("api", models.StatusHealthy, "API is operational")

	h.writeJSONResponse(w, http.StatusOK, response)
}

// decodeJSON reads a bounded JSON body into dst. It writes the 400 itself and
// reports false when the body is unusable.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			h.writeErrorResponse(w, http.StatusRequestEntityTooLarge, models.ErrorCodeBadRequest, "Request body too large")
		case errors.Is(err, io.EOF):
			h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Request body is required")
		default:
			h.writeErrorResponse(w, http.StatusBadRequest, models.ErrorCodeBadRequest, "Invalid JSON body")
		}
		return false
	}
	return true
}

// writeJSONResponse writes a JSON response
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already written; nothing more can be sent.
		slog.Error("Error encoding JSON response", "error", err)
	}
}

// writeErrorResponse writes an error response
func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	h.writeJSONResponse(w, statusCode, models.NewErrorResponse(message, errorCode))
}

// writeServiceError maps a service error to its status and code. Anything
// that is not a *vacancy.ServiceError is reported as a generic 500.
func (h *Handlers) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var svcErr *vacancy.ServiceError
	if !errors.As(err, &svcErr) {
		slog.Error("Unhandled service error", "path", r.URL.Path, "error", err)
		h.writeErrorResponse(w, http.StatusInternalServerError, models.ErrorCodeInternalError, "Internal server error")
		return
	}

	if svcErr.StatusCode >= http.StatusInternalServerError {
		slog.Error("Request failed",
			"path", r.URL.Path,
			"status", svcErr.StatusCode,
			"code", svcErr.Code,
			"error", svcErr)
	}

	h.writeErrorResponse(w, svcErr.StatusCode, svcErr.Code, svcErr.Message)
}
