package vacancy

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"leadgate/internal/ai"
	"leadgate/internal/models"
)

// ServiceError represents errors from the vacancy service with HTTP context
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Error constructors for common service errors

func NewValidationError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeValidation,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        err,
	}
}

func NewReportNotFoundError(reportID string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeReportNotFound,
		Message:    "Report not found",
		StatusCode: http.StatusNotFound,
		Err:        fmt.Errorf("report %q", reportID),
	}
}

func NewUnauthorizedError(message string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeUnauthorized,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewNotConfiguredError(message string) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeNotConfigured,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func NewInternalError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeInternalError,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewUpstreamError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeUpstreamFailed,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewUpstreamTimeoutError(err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeUpstreamTimeout,
		Message:    "The request took too long, please try again",
		StatusCode: http.StatusGatewayTimeout,
		Err:        err,
	}
}

func NewServiceUnavailableError(message string, err error) *ServiceError {
	return &ServiceError{
		Code:       models.ErrorCodeServiceUnavailable,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Err:        err,
	}
}

// upstreamError classifies a failed analysis or optimization call.
func upstreamError(message string, err error) *ServiceError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewUpstreamTimeoutError(err)
	case ai.IsUnavailable(err):
		return NewServiceUnavailableError("The service is temporarily unavailable, please try again later", err)
	default:
		return NewUpstreamError(message, err)
	}
}
