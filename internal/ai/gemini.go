package ai

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"net"
	"net/http"
	"time"

	"leadgate/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

const maxBackoff = 30 * time.Second

type generateFunc func(ctx context.Context, model, userPrompt string, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GeminiClient calls Google Gemini for analysis and optimization.
type GeminiClient struct {
	cfg                 models.AIConfig
	generate            generateFunc
	backoff             func(attempt int) time.Duration
	analysisBreaker     *CircuitBreaker
	optimizationBreaker *CircuitBreaker
}

var _ Client = (*GeminiClient)(nil)

// NewGeminiClient creates a client using cfg.APIKey.
func NewGeminiClient(ctx context.Context, cfg models.AIConfig) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return newGeminiClient(cfg, func(ctx context.Context, model, userPrompt string, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return client.Models.GenerateContent(ctx, model, genai.Text(userPrompt), config)
	}), nil
}

func newGeminiClient(cfg models.AIConfig, generate generateFunc) *GeminiClient {
	return &GeminiClient{
		cfg:                 cfg,
		generate:            generate,
		backoff:             backoffDelay,
		analysisBreaker:     NewCircuitBreaker("Analyze", cfg.CircuitBreaker),
		optimizationBreaker: NewCircuitBreaker("Optimize", cfg.CircuitBreaker),
	}
}

// Analyze scores vacancyText. Summary totals and verdict are recomputed from
// the pillar scores before returning.
func (g *GeminiClient) Analyze(ctx context.Context, vacancyText, category string) (*models.AnalysisResult, error) {
	result, err := execute[models.AnalysisResult](ctx, g, "analyze_vacancy",
		g.cfg.AnalysisModel, g.analysisBreaker,
		AnalyzerSystemPrompt, BuildAnalyzePrompt(vacancyText, category),
		attribute.Int("input.vacancy_length", len(vacancyText)),
		attribute.String("input.category", category))
	if err != nil {
		return nil, err
	}
	result.Normalize()
	return result, nil
}

// Optimize rewrites vacancyText, using analysis as context when non-nil.
func (g *GeminiClient) Optimize(ctx context.Context, vacancyText string, analysis *models.AnalysisResult) (*models.OptimizationResult, error) {
	userPrompt, err := BuildOptimizePrompt(vacancyText, analysis)
	if err != nil {
		return nil, err
	}
	return execute[models.OptimizationResult](ctx, g, "optimize_vacancy",
		g.cfg.OptimizationModel, g.optimizationBreaker,
		OptimizerSystemPrompt, userPrompt,
		attribute.Int("input.vacancy_length", len(vacancyText)),
		attribute.Bool("input.has_analysis", analysis != nil))
}

// IsHealthy reports whether both breakers are closed.
func (g *GeminiClient) IsHealthy() bool {
	return g.analysisBreaker.IsHealthy() && g.optimizationBreaker.IsHealthy()
}

// GetCircuitBreakerStats returns per-operation breaker state.
func (g *GeminiClient) GetCircuitBreakerStats() map[string]any {
	return map[string]any{
		"analysis":        g.analysisBreaker.GetStats(),
		"optimization":    g.optimizationBreaker.GetStats(),
		"overall_healthy": g.IsHealthy(),
	}
}

// Close is a no-op; the genai client holds no resources in unary mode.
func (g *GeminiClient) Close() error {
	return nil
}

func (g *GeminiClient) contentConfig(systemPrompt string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		ResponseMIMEType:  "application/json",
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	if g.cfg.Temperature > 0 {
		temperature := g.cfg.Temperature
		config.Temperature = &temperature
	}
	return config
}

func execute[Out any](
	ctx context.Context,
	g *GeminiClient,
	operation string,
	model string,
	breaker *CircuitBreaker,
	systemPrompt string,
	userPrompt string,
	spanAttributes ...attribute.KeyValue,
) (*Out, error) {
	tracer := otel.Tracer("leadgate.ai.gemini")
	ctx, span := tracer.Start(ctx, "gemini."+operation)
	defer span.End()

	span.SetAttributes(
		attribute.String("ai.provider", "gemini"),
		attribute.String("ai.model", model),
	)
	span.SetAttributes(spanAttributes...)

	config := g.contentConfig(systemPrompt)
	result, err := breaker.Execute(func() (*genai.GenerateContentResponse, error) {
		return g.executeWithRetry(ctx, operation, func() (*genai.GenerateContentResponse, error) {
			return g.generate(ctx, model, userPrompt, config)
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	var out Out
	if err := json.Unmarshal([]byte(extractJSON(result.Text())), &out); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, fmt.Errorf("%s: parse model response: %w", operation, err)
	}

	if usage := extractTokenUsage(result); usage != nil {
		span.SetAttributes(
			attribute.Int64("ai.tokens.input", usage.InputTokens),
			attribute.Int64("ai.tokens.output", usage.OutputTokens),
			attribute.Int64("ai.tokens.total", usage.TotalTokens),
		)
		slog.Debug("AI operation completed",
			"operation", operation,
			"model", model,
			"tokens_total", usage.TotalTokens)
	}

	span.SetAttributes(attribute.Bool("success", true))
	return &out, nil
}

// executeWithRetry retries fn with exponential backoff on transient errors.
func (g *GeminiClient) executeWithRetry(ctx context.Context, operation string, fn func() (*genai.GenerateContentResponse, error)) (*genai.GenerateContentResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= g.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("Retrying AI operation",
				"operation", operation,
				"attempt", attempt,
				"max_retries", g.cfg.MaxRetries,
				"error", lastErr.Error())

			select {
			case <-time.After(g.backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := fn()
		if err == nil {
			if attempt > 0 {
				slog.Info("AI operation succeeded after retry",
					"operation", operation,
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	slog.Error("AI operation failed",
		"operation", operation,
		"error", lastErr)
	return nil, lastErr
}

// backoffDelay is 2^(attempt-1) seconds plus up to 10% jitter, capped at 30s.
func backoffDelay(attempt int) time.Duration {
	baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
	jitter := time.Duration(0)
	if jitterMax := int64(float64(baseDelay) * 0.1); jitterMax > 0 {
		if n, err := rand.Int(rand.Reader, big.NewInt(jitterMax)); err == nil {
			jitter = time.Duration(n.Int64())
		}
	}
	return min(baseDelay+jitter, maxBackoff)
}

// isRetryableError reports whether err is a transient upstream failure.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// The caller's deadline covers all attempts.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}

	var genaiErr genai.APIError
	if errors.As(err, &genaiErr) {
		return retryableStatus(genaiErr.Code)
	}

	return false
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func extractTokenUsage(result *genai.GenerateContentResponse) *TokenUsage {
	if result == nil || result.UsageMetadata == nil {
		return nil
	}
	usage := result.UsageMetadata
	return &TokenUsage{
		InputTokens:  int64(usage.PromptTokenCount),
		OutputTokens: int64(usage.CandidatesTokenCount),
		TotalTokens:  int64(usage.TotalTokenCount),
	}
}
