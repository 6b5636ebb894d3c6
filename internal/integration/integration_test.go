package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"leadgate/internal/api"
	"leadgate/internal/config"
	"leadgate/internal/gating"
	"leadgate/internal/identity"
	"leadgate/internal/models"
	"leadgate/internal/ratelimit"
	"leadgate/internal/storage"
	"leadgate/internal/vacancy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration tests that drive the whole stack over HTTP against a SQLite ledger.

type cannedAI struct{}

func (cannedAI) Analyze(_ context.Context, vacancyText, category string) (*models.AnalysisResult, error) {
	result := &models.AnalysisResult{OriginalHeaders: []string{"About the role"}}
	result.Metadata.JobTitle = "Backend Engineer"
	return result, nil
}

func (cannedAI) Optimize(_ context.Context, vacancyText string, analysis *models.AnalysisResult) (*models.OptimizationResult, error) {
	result := &models.OptimizationResult{FullTextMarkdown: "# " + analysis.Metadata.JobTitle}
	result.Metadata.JobTitle = analysis.Metadata.JobTitle
	return result, nil
}

func (cannedAI) IsHealthy() bool { return true }
func (cannedAI) Close() error    { return nil }

type testServer struct {
	*httptest.Server
	store   storage.Storage
	service *vacancy.Service
	limiter *ratelimit.WindowLimiter
}

// startServer opens the ledger at dsn and serves the API the way the serve
// command wires it.
func startServer(t *testing.T, dsn, adminSecret string) *testServer {
	t.Helper()

	store, err := storage.NewFactory().Create(models.StorageConfig{
		Type:     models.StorageTypeSQLite,
		Database: models.DatabaseConfig{DSN: dsn},
	})
	require.NoError(t, err)

	svc := vacancy.NewService(vacancy.Dependencies{
		Store:  store,
		AI:     cannedAI{},
		Policy: gating.NewPolicy(store, gating.DefaultFreeUses, false),
	}, vacancy.Options{AdminSecret: adminSecret, MaxInputChars: 20000})

	resolver := identity.NewResolver(false)
	limiter := ratelimit.NewWindowLimiter(5, 24*time.Hour)

	handlers := api.NewHandlers(svc, resolver, api.WithStorage(store), api.WithAIHealth(cannedAI{}))
	router := api.SetupRoutes(handlers, models.NewDefaultConfig(),
		api.WithAnalysisLimiter(ratelimit.Middleware(limiter, resolver.LimiterKey, ratelimit.WithScope("analysis"))))

	ts := &testServer{Server: httptest.NewServer(router), store: store, service: svc, limiter: limiter}
	t.Cleanup(ts.stop)
	return ts
}

func (ts *testServer) stop() {
	if ts.Server == nil {
		return
	}
	ts.Server.Close()
	ts.service.Wait()
	_ = ts.limiter.Close()
	_ = ts.store.Close()
	ts.Server = nil
}

func (ts *testServer) post(t *testing.T, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, ts.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *testServer) optimize(t *testing.T, email, reportID string, headers map[string]string) models.OptimizeResponse {
	t.Helper()
	resp := ts.post(t, "/api/optimize", models.OptimizeRequest{Email: email, ReportID: reportID}, headers)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.OptimizeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestIntegration_FullFunnelFlow(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "leadgate.db")
	ts := startServer(t, dsn, "s3cret")
	browser := map[string]string{"X-Forwarded-For": "203.0.113.9", "X-Fingerprint": "fp-integration"}

	// Step 1: Analyze a vacancy
	resp := ts.post(t, "/api/analyze", models.AnalyzeRequest{VacancyText: "We are hiring a backend engineer", Category: "engineering"}, browser)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var analyzed models.AnalyzeResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&analyzed))
	require.NotEmpty(t, analyzed.ReportID)
	assert.Equal(t, "Backend Engineer", analyzed.Analysis.Metadata.JobTitle)

	// Step 2: The report is retrievable
	getResp, err := http.Get(ts.URL + "/api/reports/" + analyzed.ReportID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var report models.ReportResponse
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&report))
	assert.Equal(t, "We are hiring a backend engineer", report.VacancyText)

	// Step 3: Two free optimizations, then the lock
	first := ts.optimize(t, "lead@example.com", analyzed.ReportID, browser)
	assert.True(t, first.Success)
	assert.Equal(t, string(gating.Phase1), first.Phase)
	require.NotNil(t, first.Optimization)

	second := ts.optimize(t, "lead@example.com", analyzed.ReportID, browser)
	assert.Equal(t, string(gating.Phase2), second.Phase)
	assert.Equal(t, 2, second.UsageCount)

	third := ts.optimize(t, "other@example.com", analyzed.ReportID, browser)
	assert.False(t, third.Success)
	assert.True(t, third.IsLocked)
	assert.Equal(t, vacancy.LockedMessage, third.Message)

	// Step 4: Restart; the ledger survives
	ts.stop()
	ts = startServer(t, dsn, "s3cret")

	locked := ts.optimize(t, "LEAD@example.com", analyzed.ReportID, map[string]string{"X-Forwarded-For": "198.51.100.1"})
	assert.True(t, locked.IsLocked, "email usage must persist across restarts")

	// Step 5: Admin reset by email unlocks the visitor
	resetResp := ts.post(t, "/api/admin/reset-limit", models.ResetUsageRequest{Secret: "s3cret", Email: "lead@example.com"}, nil)
	require.Equal(t, http.StatusOK, resetResp.StatusCode)

	var reset models.ResetUsageResponse
	require.NoError(t, json.NewDecoder(resetResp.Body).Decode(&reset))
	assert.True(t, reset.Success)
	assert.Equal(t, int64(2), reset.DeletedLeads)

	again := ts.optimize(t, "lead@example.com", analyzed.ReportID, map[string]string{"X-Forwarded-For": "198.51.100.1"})
	assert.True(t, again.Success)
	assert.Equal(t, string(gating.Phase1), again.Phase)
}

func TestIntegration_ErrorHandling(t *testing.T) {
	ts := startServer(t, filepath.Join(t.TempDir(), "errors.db"), "s3cret")

	tests := []struct {
		name       string
		path       string
		payload    any
		wantStatus int
		wantCode   string
	}{
		{"empty vacancy", "/api/analyze", models.AnalyzeRequest{}, http.StatusBadRequest, models.ErrorCodeValidation},
		{"missing email", "/api/optimize", models.OptimizeRequest{ReportID: "r1"}, http.StatusBadRequest, models.ErrorCodeValidation},
		{"unknown report", "/api/optimize", models.OptimizeRequest{Email: "a@x.com", ReportID: "missing"}, http.StatusNotFound, models.ErrorCodeReportNotFound},
		{"wrong secret", "/api/admin/reset-limit", models.ResetUsageRequest{Secret: "guess", Email: "a@x.com"}, http.StatusUnauthorized, models.ErrorCodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.post(t, tt.path, tt.payload, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var errResp models.ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
			assert.Equal(t, tt.wantCode, errResp.Code)
			assert.NotEmpty(t, errResp.Message)
		})
	}

	getResp, err := http.Get(ts.URL + "/api/reports/does-not-exist")
	require.NoError(t, err)
	defer getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestIntegration_ConcurrentAnalyses(t *testing.T) {
	ts := startServer(t, filepath.Join(t.TempDir(), "concurrent.db"), "")

	const numRequests = 10
	type result struct {
		reportID string
		err      error
	}
	results := make(chan result, numRequests)

	for i := range numRequests {
		go func(id int) {
			body, _ := json.Marshal(models.AnalyzeRequest{VacancyText: fmt.Sprintf("vacancy %d", id)})
			req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/analyze", bytes.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Forwarded-For", fmt.Sprintf("192.0.2.%d", id+1))

			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				results <- result{err: fmt.Errorf("request %d failed: %v", id, err)}
				return
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				results <- result{err: fmt.Errorf("request %d got status %d", id, resp.StatusCode)}
				return
			}

			var out models.AnalyzeResponse
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				results <- result{err: fmt.Errorf("request %d decode error: %v", id, err)}
				return
			}
			results <- result{reportID: out.ReportID}
		}(i)
	}

	seen := make(map[string]bool, numRequests)
	for range numRequests {
		r := <-results
		if assert.NoError(t, r.err, "Concurrent request failed") {
			assert.False(t, seen[r.reportID], "report IDs must be unique")
			seen[r.reportID] = true
		}
	}
}

func TestIntegration_ConfigLoading(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "integration_config.yaml")

	configContent := `
server:
  port: 8081
  host: "127.0.0.1"
  read_timeout: 45s
  write_timeout: 90s
  idle_timeout: 90s
  trust_remote_addr: true

storage:
  type: "sqlite"
  database:
    dsn: "./integration_test.db"

security:
  admin_secret: "from-file"
  rate_limit:
    enabled: true
    requests_per_minute: 120

usage:
  free_uses: 3

analysis_limit:
  enabled: true
  max_requests: 10
  window: 12h
  backend: memory

logging:
  level: "debug"
  format: "text"

metrics:
  enabled: true
  port: 9091
`

	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	cfg, err := config.Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 45*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
	assert.True(t, cfg.Server.TrustRemoteAddr)

	assert.Equal(t, models.StorageTypeSQLite, cfg.Storage.Type)
	assert.Equal(t, "./integration_test.db", cfg.Storage.Database.DSN)

	assert.Equal(t, "from-file", cfg.Security.AdminSecret)
	assert.Equal(t, 120, cfg.Security.RateLimit.RequestsPerMinute)

	assert.Equal(t, 3, cfg.Usage.FreeUses)
	assert.Equal(t, 10, cfg.AnalysisLimit.MaxRequests)
	assert.Equal(t, 12*time.Hour, cfg.AnalysisLimit.Window)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 9091, cfg.Metrics.Port)

	// Defaults survive for keys the file omits.
	assert.Equal(t, "gemini", cfg.AI.Provider)

	assert.NoError(t, cfg.Validate())
}
