package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"leadgate/internal/identity"
	"leadgate/internal/models"
	"leadgate/internal/vacancy"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockVacancyService implements vacancy.ServiceInterface for testing
type MockVacancyService struct {
	mock.Mock
}

func (m *MockVacancyService) Analyze(ctx context.Context, req *models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*models.AnalyzeResponse)
	return resp, args.Error(1)
}

func (m *MockVacancyService) Optimize(ctx context.Context, req *models.OptimizeRequest, id models.Identity) (*models.OptimizeResponse, error) {
	args := m.Called(ctx, req, id)
	resp, _ := args.Get(0).(*models.OptimizeResponse)
	return resp, args.Error(1)
}

func (m *MockVacancyService) GetReport(ctx context.Context, reportID string) (*models.ReportResponse, error) {
	args := m.Called(ctx, reportID)
	resp, _ := args.Get(0).(*models.ReportResponse)
	return resp, args.Error(1)
}

func (m *MockVacancyService) ResetUsage(ctx context.Context, secret string, id models.Identity) (*models.ResetUsageResponse, error) {
	args := m.Called(ctx, secret, id)
	resp, _ := args.Get(0).(*models.ResetUsageResponse)
	return resp, args.Error(1)
}

func (m *MockVacancyService) ResetIdentity(ctx context.Context, id models.Identity) (*models.ResetUsageResponse, error) {
	args := m.Called(ctx, id)
	resp, _ := args.Get(0).(*models.ResetUsageResponse)
	return resp, args.Error(1)
}

// mockPinger implements Pinger for health tests
type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(context.Context) error { return m.err }

type staticHealth bool

func (s staticHealth) IsHealthy() bool { return bool(s) }

func newTestRouter(t *testing.T, svc vacancy.ServiceInterface, opts ...HandlerOption) *mux.Router {
	t.Helper()
	handlers := NewHandlers(svc, identity.NewResolver(false), opts...)
	return SetupRoutes(handlers, &models.Config{})
}

func doJSON(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) models.ErrorResponse {
	t.Helper()
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestNewHandlers(t *testing.T) {
	svc := &MockVacancyService{}
	resolver := identity.NewResolver(true)
	handlers := NewHandlers(svc, resolver, WithMaxBodyBytes(512), WithMaxBodyBytes(-1))

	assert.Equal(t, svc, handlers.service)
	assert.Equal(t, resolver, handlers.resolver)
	assert.Equal(t, int64(512), handlers.maxBodyBytes)
	assert.Nil(t, handlers.storage)
}

func TestHandlers_Analyze_Success(t *testing.T) {
	svc := &MockVacancyService{}
	svc.On("Analyze", mock.Anything, &models.AnalyzeRequest{VacancyText: "We hire", Category: "Sales"}).
		Return(&models.AnalyzeResponse{ReportID: "abcdefghij", Analysis: &models.AnalysisResult{}}, nil)

	router := newTestRouter(t, svc)
	rec := doJSON(router, http.MethodPost, "/api/analyze", `{"vacancyText":"We hire","category":"Sales"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "abcdefghij", resp["reportId"])
	assert.Contains(t, resp, "analysis")
	svc.AssertExpectations(t)
}

func TestHandlers_Analyze_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		svcErr     error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "empty body",
			body:       "",
			wantStatus: http.StatusBadRequest,
			wantCode:   models.ErrorCodeBadRequest,
			wantMsg:    "Request body is required",
		},
		{
			name:       "invalid json",
			body:       `{"vacancyText":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   models.ErrorCodeBadRequest,
			wantMsg:    "Invalid JSON body",
		},
		{
			name:       "validation",
			body:       `{"vacancyText":""}`,
			svcErr:     vacancy.NewValidationError("Vacancy text is required", nil),
			wantStatus: http.StatusBadRequest,
			wantCode:   models.ErrorCodeValidation,
			wantMsg:    "Vacancy text is required",
		},
		{
			name:       "upstream timeout",
			body:       `{"vacancyText":"x"}`,
			svcErr:     vacancy.NewUpstreamTimeoutError(context.DeadlineExceeded),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   models.ErrorCodeUpstreamTimeout,
		},
		{
			name:       "unclassified error hides details",
			body:       `{"vacancyText":"x"}`,
			svcErr:     errors.New("pq: relation reports does not exist"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   models.ErrorCodeInternalError,
			wantMsg:    "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockVacancyService{}
			if tt.svcErr != nil {
				svc.On("Analyze", mock.Anything, mock.Anything).Return(nil, tt.svcErr)
			}

			rec := doJSON(newTestRouter(t, svc), http.MethodPost, "/api/analyze", tt.body, nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp.Message)
			}
			assert.NotContains(t, rec.Body.String(), "pq:")
			if tt.svcErr == nil {
				svc.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
			}
		})
	}
}

func TestHandlers_Analyze_BodyTooLarge(t *testing.T) {
	svc := &MockVacancyService{}
	handlers := NewHandlers(svc, identity.NewResolver(false), WithMaxBodyBytes(64))
	router := SetupRoutes(handlers, &models.Config{})

	body := `{"vacancyText":"` + strings.Repeat("x", 200) + `"}`
	rec := doJSON(router, http.MethodPost, "/api/analyze", body, nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	svc.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestHandlers_Optimize_ResolvesIdentity(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		headers map[string]string
		want    models.Identity
	}{
		{
			name:    "header fingerprint and forwarded ip",
			body:    `{"email":" A@X.com ","reportId":"r1"}`,
			headers: map[string]string{"X-Fingerprint": "fp-header", "X-Forwarded-For": "203.0.113.5, 10.0.0.1"},
			want:    models.Identity{Email: "a@x.com", IPAddress: "203.0.113.5", Fingerprint: "fp-header"},
		},
		{
			name:    "body fingerprint wins over header",
			body:    `{"email":"a@x.com","reportId":"r1","fingerprint":"fp-body"}`,
			headers: map[string]string{"X-Fingerprint": "fp-header", "X-Real-IP": "198.51.100.2"},
			want:    models.Identity{Email: "a@x.com", IPAddress: "198.51.100.2", Fingerprint: "fp-body"},
		},
		{
			name: "no device signal",
			body: `{"email":"a@x.com","reportId":"r1"}`,
			want: models.Identity{Email: "a@x.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockVacancyService{}
			svc.On("Optimize", mock.Anything, mock.AnythingOfType("*models.OptimizeRequest"), tt.want).
				Return(&models.OptimizeResponse{Success: true, Phase: "phase1", UsageCount: 1}, nil)

			rec := doJSON(newTestRouter(t, svc), http.MethodPost, "/api/optimize", tt.body, tt.headers)

			assert.Equal(t, http.StatusOK, rec.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestHandlers_Optimize_Locked(t *testing.T) {
	svc := &MockVacancyService{}
	svc.On("Optimize", mock.Anything, mock.Anything, mock.Anything).
		Return(models.NewLockedResponse(vacancy.LockedMessage), nil)

	rec := doJSON(newTestRouter(t, svc), http.MethodPost, "/api/optimize", `{"email":"a@x.com","reportId":"r1"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":false,"isLocked":true,"message":"`+vacancy.LockedMessage+`"}`, rec.Body.String())
}

func TestHandlers_Optimize_ReportNotFound(t *testing.T) {
	svc := &MockVacancyService{}
	svc.On("Optimize", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, vacancy.NewReportNotFoundError("missing"))

	rec := doJSON(newTestRouter(t, svc), http.MethodPost, "/api/optimize", `{"email":"a@x.com","reportId":"missing"}`, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, models.ErrorCodeReportNotFound, resp.Code)
	assert.Equal(t, "Report not found", resp.Message)
}

func TestHandlers_GetReport(t *testing.T) {
	svc := &MockVacancyService{}
	svc.On("GetReport", mock.Anything, "abc123defg").
		Return(&models.ReportResponse{ReportID: "abc123defg", VacancyText: "text"}, nil)
	svc.On("GetReport", mock.Anything, "nope").
		Return(nil, vacancy.NewReportNotFoundError("nope"))

	router := newTestRouter(t, svc)

	rec := doJSON(router, http.MethodGet, "/api/reports/abc123defg", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	var resp models.ReportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "text", resp.VacancyText)

	rec = doJSON(router, http.MethodGet, "/api/reports/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_ResetLimit_Get(t *testing.T) {
	svc := &MockVacancyService{}
	want := models.Identity{Email: "a@x.com", IPAddress: "203.0.113.9", Fingerprint: "fp-1"}
	svc.On("ResetUsage", mock.Anything, "s3cret", want).
		Return(&models.ResetUsageResponse{
			Success:      true,
			Message:      "Successfully reset usage limit",
			DeletedLeads: 2,
			Identifiers:  want.Describe(),
		}, nil)

	rec := doJSON(newTestRouter(t, svc), http.MethodGet, "/api/admin/reset-limit?secret=s3cret&email=A@x.com", "",
		map[string]string{"X-Forwarded-For": "203.0.113.9", "X-Fingerprint": "fp-1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp models.ResetUsageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.DeletedLeads)
	assert.Equal(t, "email: a@x.com, IP: 203.0.113.9, fingerprint: fp-1", resp.Identifiers)
	svc.AssertExpectations(t)
}

func TestHandlers_ResetLimit_Post(t *testing.T) {
	svc := &MockVacancyService{}
	svc.On("ResetUsage", mock.Anything, "s3cret", models.Identity{Email: "b@x.com"}).
		Return(&models.ResetUsageResponse{Success: true, DeletedLeads: 1}, nil)

	rec := doJSON(newTestRouter(t, svc), http.MethodPost, "/api/admin/reset-limit", `{"secret":"s3cret","email":"b@x.com"}`, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestHandlers_ResetLimit_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"wrong secret", vacancy.NewUnauthorizedError("Unauthorized - Invalid secret key"), http.StatusUnauthorized, "Unauthorized - Invalid secret key"},
		{"not configured", vacancy.NewNotConfiguredError("Admin functionality not configured"), http.StatusInternalServerError, "Admin functionality not configured"},
		{"no identifiers", vacancy.NewValidationError("No identifiers found", nil), http.StatusBadRequest, "No identifiers found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockVacancyService{}
			svc.On("ResetUsage", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)

			rec := doJSON(newTestRouter(t, svc), http.MethodGet, "/api/admin/reset-limit?secret=x", "", nil)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeError(t, rec).Message)
		})
	}
}

func TestHandlers_HealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		opts       []HandlerOption
		wantStatus string
	}{
		{"no dependencies", nil, models.StatusHealthy},
		{"all healthy", []HandlerOption{WithStorage(&mockPinger{}), WithAIHealth(staticHealth(true))}, models.StatusHealthy},
		{"storage down", []HandlerOption{WithStorage(&mockPinger{err: errors.New("conn refused")})}, models.StatusDegraded},
		{"ai unavailable", []HandlerOption{WithStorage(&mockPinger{}), WithAIHealth(staticHealth(false))}, models.StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(newTestRouter(t, &MockVacancyService{}, tt.opts...), http.MethodGet, "/health", "", nil)

			assert.Equal(t, http.StatusOK, rec.Code)
			var resp models.HealthCheckResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Contains(t, resp.Components, "api")
			assert.NotEmpty(t, resp.Version)
		})
	}
}

func TestWriteJSONResponse(t *testing.T) {
	handlers := NewHandlers(&MockVacancyService{}, identity.NewResolver(false))
	rec := httptest.NewRecorder()

	handlers.writeJSONResponse(rec, http.StatusCreated, map[string]string{"k": "v"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"k":"v"}`, rec.Body.String())
}

func TestDecodeJSON_TrailingGarbageIgnored(t *testing.T) {
	handlers := NewHandlers(&MockVacancyService{}, identity.NewResolver(false))
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"vacancyText":"x"} trailing`))
	rec := httptest.NewRecorder()

	var dst models.AnalyzeRequest
	assert.True(t, handlers.decodeJSON(rec, req, &dst))
	assert.Equal(t, "x", dst.VacancyText)
}
