// Package models - API response types and error handling.
//
// Response Design Principles:
// - Field names follow the browser client's camelCase contract
// - A usage lock is a successful response with isLocked, never an error body
// - Errors share one structure with a machine-readable code
package models

import (
	"time"
)

// AnalyzeResponse is returned by POST /api/analyze.
type AnalyzeResponse struct {
	ReportID string          `json:"reportId"`
	Analysis *AnalysisResult `json:"analysis"`
}

// OptimizeResponse is returned by POST /api/optimize. When IsLocked is set the
// optimization was not performed and Message explains why.
type OptimizeResponse struct {
	Success      bool                `json:"success"`
	Optimization *OptimizationResult `json:"optimization,omitempty"`
	Phase        string              `json:"phase,omitempty"`
	UsageCount   int                 `json:"usageCount,omitempty"`
	IsLocked     bool                `json:"isLocked,omitempty"`
	Message      string              `json:"message,omitempty"`
}

// ReportResponse is returned by GET /api/reports/{id}.
type ReportResponse struct {
	ReportID    string          `json:"reportId"`
	VacancyText string          `json:"vacancyText"`
	Analysis    *AnalysisResult `json:"analysis"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// ResetUsageResponse reports what an admin reset deleted and which identifiers it matched.
type ResetUsageResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	DeletedLeads int64  `json:"deletedLeads"`
	Identifiers  string `json:"identifiers"`
}

// ErrorResponse provides structured error information.
//
// Error Categories:
// - Validation errors: missing or malformed input (400)
// - Authorization errors: bad admin secret (401)
// - Not found errors: unknown report (404)
// - Rate limit errors: analysis quota exhausted (429)
// - Internal and upstream errors (500, 504)
type ErrorResponse struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Code      string            `json:"code,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type HealthCheckResponse struct {
	Status     string                     `json:"status"`
	Timestamp  time.Time                  `json:"timestamp"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]ComponentHealth `json:"components,omitempty"`
}

type ComponentHealth struct {
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Health Status Constants
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// Standard Error Codes
const (
	ErrorCodeNotFound           = "NOT_FOUND"           // 404: Resource doesn't exist
	ErrorCodeReportNotFound     = "REPORT_NOT_FOUND"    // 404: Report doesn't exist
	ErrorCodeBadRequest         = "BAD_REQUEST"         // 400: Malformed body
	ErrorCodeValidation         = "VALIDATION_ERROR"    // 400: Missing or invalid field
	ErrorCodeUnauthorized       = "UNAUTHORIZED"        // 401: Bad admin secret
	ErrorCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED" // 429: Throttled
	ErrorCodeInternalError      = "INTERNAL_ERROR"      // 500: Server-side error
	ErrorCodeNotConfigured      = "NOT_CONFIGURED"      // 500: Feature disabled by configuration
	ErrorCodeUpstreamFailed     = "UPSTREAM_FAILED"     // 500: Analysis or optimization failed
	ErrorCodeUpstreamTimeout    = "UPSTREAM_TIMEOUT"    // 504: Analysis or optimization timed out
	ErrorCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"  // 405
	ErrorCodeServiceUnavailable = "SERVICE_UNAVAILABLE" // 503: Dependency down
)

func NewErrorResponse(message string, code string) *ErrorResponse {
	return &ErrorResponse{
		Error:     "error",
		Message:   message,
		Code:      code,
		Timestamp: time.Now(),
	}
}

// NewLockedResponse builds the usage-limit response shown instead of an optimization.
func NewLockedResponse(message string) *OptimizeResponse {
	return &OptimizeResponse{
		Success:  false,
		IsLocked: true,
		Message:  message,
	}
}

func NewHealthCheckResponse(status string) *HealthCheckResponse {
	return &HealthCheckResponse{
		Status:     status,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentHealth),
	}
}

func (h *HealthCheckResponse) AddComponent(name, status, message string) {
	h.Components[name] = ComponentHealth{
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
	}
	if status != StatusHealthy && h.Status == StatusHealthy {
		h.Status = StatusDegraded
	}
}
