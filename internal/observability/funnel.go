package observability

import (
	"context"
	"net/http"

	"leadgate/internal/gating"
	"leadgate/internal/vacancy"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// FunnelMetrics counts the business events of the lead funnel: analyses,
// optimizations per phase, lock hits, admin resets and rate-limit denials.
type FunnelMetrics struct {
	analyses      metric.Int64Counter
	optimizations metric.Int64Counter
	locked        metric.Int64Counter
	resets        metric.Int64Counter
	resetRows     metric.Int64Counter
	rateLimited   metric.Int64Counter
}

var _ vacancy.FunnelRecorder = (*FunnelMetrics)(nil)

// NewFunnelMetrics registers the funnel instruments on meter.
func NewFunnelMetrics(meter metric.Meter) (*FunnelMetrics, error) {
	var (
		m   FunnelMetrics
		err error
	)

	if m.analyses, err = meter.Int64Counter("leadgate.analyses.completed",
		metric.WithDescription("Completed vacancy analyses"),
		metric.WithUnit("{analysis}"),
	); err != nil {
		return nil, err
	}

	if m.optimizations, err = meter.Int64Counter("leadgate.optimizations.completed",
		metric.WithDescription("Completed vacancy optimizations by phase"),
		metric.WithUnit("{optimization}"),
	); err != nil {
		return nil, err
	}

	if m.locked, err = meter.Int64Counter("leadgate.optimizations.locked",
		metric.WithDescription("Optimization requests refused because free uses are exhausted"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	if m.resets, err = meter.Int64Counter("leadgate.usage.resets",
		metric.WithDescription("Successful admin usage resets"),
		metric.WithUnit("{reset}"),
	); err != nil {
		return nil, err
	}

	if m.resetRows, err = meter.Int64Counter("leadgate.usage.reset.leads",
		metric.WithDescription("Ledger rows deleted by admin resets"),
		metric.WithUnit("{lead}"),
	); err != nil {
		return nil, err
	}

	if m.rateLimited, err = meter.Int64Counter("leadgate.analyses.rate_limited",
		metric.WithDescription("Analysis requests denied by the per-IP window"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

func (m *FunnelMetrics) AnalysisCompleted(ctx context.Context, category string) {
	m.analyses.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
}

func (m *FunnelMetrics) OptimizationCompleted(ctx context.Context, phase gating.Phase) {
	m.optimizations.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", string(phase))))
}

func (m *FunnelMetrics) OptimizationLocked(ctx context.Context) {
	m.locked.Add(ctx, 1)
}

func (m *FunnelMetrics) UsageReset(ctx context.Context, deleted int64) {
	m.resets.Add(ctx, 1)
	m.resetRows.Add(ctx, deleted)
}

// AnalysisRateLimited has the shape of a ratelimit deny hook. The key is not
// recorded to keep IP addresses out of metric labels.
func (m *FunnelMetrics) AnalysisRateLimited(r *http.Request, _ string) {
	m.rateLimited.Add(r.Context(), 1)
}
