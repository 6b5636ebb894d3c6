// Package vacancy implements the analysis and lead-capture flows: scoring a
// vacancy, gating and performing its optimization, and the admin usage reset.
package vacancy

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"leadgate/internal/ai"
	"leadgate/internal/crm"
	"leadgate/internal/gating"
	"leadgate/internal/models"
	"leadgate/internal/notify"
	"leadgate/internal/storage"
)

// LockedMessage is shown to visitors who have used all free optimizations.
const LockedMessage = "You have used all free optimizations. Book a demo to optimize more vacancies."

const (
	defaultAITimeout         = 60 * time.Second
	defaultSideEffectTimeout = 2 * time.Minute
	reportIDAttempts         = 3
)

// Options are the operator settings the service needs.
type Options struct {
	// AITimeout bounds each analysis or optimization call.
	AITimeout time.Duration
	// MaxInputChars caps the submitted vacancy text.
	MaxInputChars int
	// AdminSecret guards ResetUsage. Empty disables it.
	AdminSecret string
	// SideEffectTimeout bounds background email and CRM delivery.
	SideEffectTimeout time.Duration
}

// Service handles the vacancy analysis and optimization business logic
type Service struct {
	store   storage.Storage
	ai      ai.Client
	policy  *gating.Policy
	email   notify.Sender
	crm     crm.Syncer
	metrics FunnelRecorder
	opts    Options

	// admitMu serializes the ledger count and insert of concurrent
	// optimizations within this process.
	admitMu sync.Mutex
	wg      sync.WaitGroup
}

// Dependencies groups the collaborators of Service. Email, CRM and Metrics
// may be nil.
type Dependencies struct {
	Store   storage.Storage
	AI      ai.Client
	Policy  *gating.Policy
	Email   notify.Sender
	CRM     crm.Syncer
	Metrics FunnelRecorder
}

// NewService creates a new vacancy service
func NewService(deps Dependencies, opts Options) *Service {
	if opts.AITimeout <= 0 {
		opts.AITimeout = defaultAITimeout
	}
	if opts.SideEffectTimeout <= 0 {
		opts.SideEffectTimeout = defaultSideEffectTimeout
	}
	s := &Service{
		store:   deps.Store,
		ai:      deps.AI,
		policy:  deps.Policy,
		email:   deps.Email,
		crm:     deps.CRM,
		metrics: deps.Metrics,
		opts:    opts,
	}
	if s.email == nil {
		s.email = notify.NoOpSender{}
	}
	if s.crm == nil {
		s.crm = crm.NoOpSyncer{}
	}
	if s.metrics == nil {
		s.metrics = nopRecorder{}
	}
	return s
}

// Analyze scores the vacancy text and stores it under a new report ID.
func (s *Service) Analyze(ctx context.Context, req *models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	if err := req.Validate(s.opts.MaxInputChars); err != nil {
		return nil, NewValidationError(validationMessage(err), err)
	}
	req.Normalize()

	aiCtx, cancel := context.WithTimeout(ctx, s.opts.AITimeout)
	analysis, err := s.ai.Analyze(aiCtx, req.VacancyText, req.Category)
	cancel()
	if err != nil {
		slog.Error("Vacancy analysis failed", "category", req.Category, "error", err)
		return nil, upstreamError("Failed to analyze vacancy", err)
	}

	analysisJSON, err := json.Marshal(analysis)
	if err != nil {
		return nil, NewInternalError("Failed to analyze vacancy", err)
	}

	report := &models.Report{
		VacancyText:  req.VacancyText,
		AnalysisJSON: string(analysisJSON),
	}
	if err := s.createReport(ctx, report); err != nil {
		return nil, NewInternalError("Failed to analyze vacancy", err)
	}

	s.metrics.AnalysisCompleted(ctx, req.Category)
	slog.Info("Vacancy analyzed",
		"report_id", report.ID,
		"category", req.Category,
		"total_score", analysis.Summary.TotalScore,
		"verdict", analysis.Summary.Verdict)

	return &models.AnalyzeResponse{
		ReportID: report.ID,
		Analysis: analysis,
	}, nil
}

// createReport assigns a fresh ID, retrying on the unlikely collision.
func (s *Service) createReport(ctx context.Context, report *models.Report) error {
	var err error
	for range reportIDAttempts {
		report.ID, err = models.NewReportID()
		if err != nil {
			return err
		}
		err = s.store.CreateReport(ctx, report)
		if !errors.Is(err, storage.ErrAlreadyExists) {
			return err
		}
	}
	return err
}

// Optimize runs the gated optimization for the visitor identified by id.
// The ledger count check and the lead insert happen before the optimizer is
// called. If the optimizer fails the lead is removed again, so a failed
// request does not spend a free use. A locked visitor gets a successful
// response with IsLocked set and nothing is called or recorded.
func (s *Service) Optimize(ctx context.Context, req *models.OptimizeRequest, id models.Identity) (*models.OptimizeResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, NewValidationError(validationMessage(err), err)
	}
	req.Normalize()
	id.Email = req.Email

	report, err := s.store.GetReport(ctx, req.ReportID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewReportNotFoundError(req.ReportID)
		}
		return nil, NewInternalError("Failed to process optimization request", err)
	}

	decision, lead, err := s.admit(ctx, id, report.ID)
	if err != nil {
		return nil, NewInternalError("Failed to process optimization request", err)
	}

	if !decision.Allowed {
		s.metrics.OptimizationLocked(ctx)
		slog.Info("Optimization locked",
			"email", models.MaskEmail(id.Email),
			"ip", id.IPAddress,
			"email_count", decision.EmailCount,
			"identity_count", decision.IdentityCount)
		return models.NewLockedResponse(LockedMessage), nil
	}

	var analysis *models.AnalysisResult
	if report.AnalysisJSON != "" {
		analysis = &models.AnalysisResult{}
		if err := json.Unmarshal([]byte(report.AnalysisJSON), analysis); err != nil {
			slog.Warn("Stored analysis unreadable, optimizing without context",
				"report_id", report.ID, "error", err)
			analysis = nil
		}
	}

	aiCtx, cancel := context.WithTimeout(ctx, s.opts.AITimeout)
	optimization, err := s.ai.Optimize(aiCtx, report.VacancyText, analysis)
	cancel()
	if err != nil {
		slog.Error("Vacancy optimization failed", "report_id", report.ID, "error", err)
		s.releaseLead(ctx, lead)
		return nil, upstreamError("Failed to process optimization request", err)
	}

	usageCount := decision.Ordinal()
	s.metrics.OptimizationCompleted(ctx, decision.Phase)
	slog.Info("Vacancy optimized",
		"report_id", report.ID,
		"email", models.MaskEmail(id.Email),
		"phase", decision.Phase,
		"usage_count", usageCount,
		"bypass", s.policy.Bypass())

	s.dispatchSideEffects(ctx, id.Email, report.ID, usageCount, optimization)

	return &models.OptimizeResponse{
		Success:      true,
		Optimization: optimization,
		Phase:        string(decision.Phase),
		UsageCount:   usageCount,
	}, nil
}

// admit evaluates the gate and, when allowed, records the lead. Holding
// admitMu across both steps means concurrent requests from this process see
// each other's rows.
func (s *Service) admit(ctx context.Context, id models.Identity, reportID string) (gating.Decision, *models.Lead, error) {
	s.admitMu.Lock()
	defer s.admitMu.Unlock()

	decision, err := s.policy.Evaluate(ctx, id)
	if err != nil || !decision.Allowed {
		return decision, nil, err
	}

	lead := &models.Lead{
		Email:       id.Email,
		ReportID:    reportID,
		IPAddress:   id.IPAddress,
		Fingerprint: id.Fingerprint,
	}
	if err := s.store.InsertLead(ctx, lead); err != nil {
		return decision, nil, err
	}
	return decision, lead, nil
}

// releaseLead removes a lead whose optimization did not complete. It runs
// even when the request context is already cancelled.
func (s *Service) releaseLead(ctx context.Context, lead *models.Lead) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.store.DeleteLead(ctx, lead.ID); err != nil {
		slog.Error("Failed to release lead after optimization failure",
			"lead_id", lead.ID, "report_id", lead.ReportID, "error", err)
	}
}

// dispatchSideEffects sends the email and syncs the CRM in the background.
// Failures are logged and never reach the caller.
func (s *Service) dispatchSideEffects(ctx context.Context, email, reportID string, usageCount int, opt *models.OptimizationResult) {
	bg := context.WithoutCancel(ctx)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(bg, s.opts.SideEffectTimeout)
		defer cancel()
		err := s.email.SendOptimizedVacancy(ctx, notify.VacancyEmail{
			To:           email,
			ReportID:     reportID,
			UsageCount:   usageCount,
			Optimization: opt,
		})
		if err != nil {
			slog.Error("Failed to send optimized vacancy email",
				"report_id", reportID, "email", models.MaskEmail(email), "error", err)
		}
	}()

	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(bg, s.opts.SideEffectTimeout)
		defer cancel()
		status, err := s.crm.SyncContact(ctx, crm.Contact{
			Email:      email,
			ReportID:   reportID,
			UsageCount: usageCount,
		})
		if err != nil {
			slog.Warn("CRM contact sync failed",
				"report_id", reportID, "email", models.MaskEmail(email), "error", err)
			return
		}
		slog.Debug("CRM contact synced", "report_id", reportID, "status", status)
	}()
}

// GetReport returns a stored report with its decoded analysis.
func (s *Service) GetReport(ctx context.Context, reportID string) (*models.ReportResponse, error) {
	if reportID == "" {
		return nil, NewValidationError("Report ID is required", nil)
	}

	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, NewReportNotFoundError(reportID)
		}
		return nil, NewInternalError("Failed to load report", err)
	}

	resp := &models.ReportResponse{
		ReportID:    report.ID,
		VacancyText: report.VacancyText,
		CreatedAt:   report.CreatedAt,
	}
	if report.AnalysisJSON != "" {
		resp.Analysis = &models.AnalysisResult{}
		if err := json.Unmarshal([]byte(report.AnalysisJSON), resp.Analysis); err != nil {
			return nil, NewInternalError("Failed to load report", err)
		}
	}
	return resp, nil
}

// ResetUsage checks the admin secret, then deletes every ledger row that
// matches any identifier in id. It fails closed when no secret is configured.
func (s *Service) ResetUsage(ctx context.Context, secret string, id models.Identity) (*models.ResetUsageResponse, error) {
	if s.opts.AdminSecret == "" {
		return nil, NewNotConfiguredError("Admin functionality not configured")
	}
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(s.opts.AdminSecret)) != 1 {
		slog.Warn("Usage reset rejected", "ip", id.IPAddress)
		return nil, NewUnauthorizedError("Unauthorized - Invalid secret key")
	}
	return s.ResetIdentity(ctx, id)
}

// ResetIdentity deletes every ledger row matching any identifier in id.
// An empty identity is rejected.
func (s *Service) ResetIdentity(ctx context.Context, id models.Identity) (*models.ResetUsageResponse, error) {
	id.Email = models.NormalizeEmail(id.Email)
	id.Fingerprint = models.NormalizeFingerprint(id.Fingerprint)

	deleted, err := s.store.DeleteByIdentity(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNoCriteria) {
			return nil, NewValidationError("No identifiers found", err)
		}
		return nil, NewInternalError("Failed to reset limit", err)
	}

	s.metrics.UsageReset(ctx, deleted)
	slog.Info("Usage reset",
		"deleted_leads", deleted,
		"email", models.MaskEmail(id.Email),
		"ip", id.IPAddress,
		"has_fingerprint", id.Fingerprint != "")

	return &models.ResetUsageResponse{
		Success:      true,
		Message:      "Successfully reset usage limit",
		DeletedLeads: deleted,
		Identifiers:  id.Describe(),
	}, nil
}

// Wait blocks until background email and CRM deliveries have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// validationMessage capitalizes a request validation error for the client.
func validationMessage(err error) string {
	msg := err.Error()
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
