// Package ai wraps the language model that scores and rewrites vacancy texts.
package ai

import (
	"context"
	"errors"
	"log/slog"

	"leadgate/internal/models"

	"github.com/sony/gobreaker/v2"
)

// ErrNotConfigured is returned by every operation when no API key is set.
var ErrNotConfigured = errors.New("ai provider not configured")

// Analyzer scores a vacancy text across the eight quality pillars.
type Analyzer interface {
	Analyze(ctx context.Context, vacancyText, category string) (*models.AnalysisResult, error)
}

// Optimizer rewrites a vacancy text. analysis may be nil.
type Optimizer interface {
	Optimize(ctx context.Context, vacancyText string, analysis *models.AnalysisResult) (*models.OptimizationResult, error)
}

// Client is the full provider surface used by the service layer.
type Client interface {
	Analyzer
	Optimizer
	IsHealthy() bool
	Close() error
}

// TokenUsage holds token accounting from a model response.
type TokenUsage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// NewClient returns a Gemini client, or a client that fails every call with
// ErrNotConfigured when cfg carries no API key.
func NewClient(ctx context.Context, cfg models.AIConfig) (Client, error) {
	if cfg.APIKey == "" {
		slog.Warn("AI API key not set, analysis and optimization will fail", "provider", cfg.Provider)
		return unconfigured{}, nil
	}
	client, err := NewGeminiClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// IsUnavailable reports whether err came from an open circuit breaker.
func IsUnavailable(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

type unconfigured struct{}

var _ Client = unconfigured{}

func (unconfigured) Analyze(context.Context, string, string) (*models.AnalysisResult, error) {
	return nil, ErrNotConfigured
}

func (unconfigured) Optimize(context.Context, string, *models.AnalysisResult) (*models.OptimizationResult, error) {
	return nil, ErrNotConfigured
}

func (unconfigured) IsHealthy() bool { return false }

func (unconfigured) Close() error { return nil }
