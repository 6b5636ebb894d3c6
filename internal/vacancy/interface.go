package vacancy

import (
	"context"

	"leadgate/internal/gating"
	"leadgate/internal/models"
)

// ServiceInterface defines the interface for vacancy service operations
type ServiceInterface interface {
	// Analyze scores a vacancy text and stores it as a new report
	Analyze(ctx context.Context, req *models.AnalyzeRequest) (*models.AnalyzeResponse, error)

	// Optimize rewrites a stored report's vacancy for the given visitor, subject to the usage gate
	Optimize(ctx context.Context, req *models.OptimizeRequest, id models.Identity) (*models.OptimizeResponse, error)

	// GetReport returns a stored report
	GetReport(ctx context.Context, reportID string) (*models.ReportResponse, error)

	// ResetUsage deletes ledger rows for id after checking the admin secret
	ResetUsage(ctx context.Context, secret string, id models.Identity) (*models.ResetUsageResponse, error)

	// ResetIdentity deletes ledger rows for id without a secret check (operator CLI)
	ResetIdentity(ctx context.Context, id models.Identity) (*models.ResetUsageResponse, error)
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)

// FunnelRecorder receives business events for metrics.
type FunnelRecorder interface {
	AnalysisCompleted(ctx context.Context, category string)
	OptimizationCompleted(ctx context.Context, phase gating.Phase)
	OptimizationLocked(ctx context.Context)
	UsageReset(ctx context.Context, deleted int64)
}

type nopRecorder struct{}

func (nopRecorder) AnalysisCompleted(context.Context, string)           {}
func (nopRecorder) OptimizationCompleted(context.Context, gating.Phase) {}
func (nopRecorder) OptimizationLocked(context.Context)                  {}
func (nopRecorder) UsageReset(context.Context, int64)                   {}
