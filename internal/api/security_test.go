package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"leadgate/internal/models"
	"leadgate/internal/vacancy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestSecurityVulnerabilities checks that hostile input is rejected cleanly.
func TestSecurityVulnerabilities(t *testing.T) {
	svc := &MockVacancyService{}
	svc.On("GetReport", mock.Anything, mock.Anything).
		Return(nil, vacancy.NewReportNotFoundError("x")).Maybe()
	svc.On("ResetUsage", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, vacancy.NewUnauthorizedError("Unauthorized - Invalid secret key")).Maybe()

	router := newTestRouter(t, svc)

	t.Run("SQL Injection Protection", func(t *testing.T) {
		maliciousInputs := []string{
			"'; DROP TABLE leads; --",
			"test' OR '1'='1",
			"test' UNION SELECT * FROM leads --",
		}

		for _, maliciousInput := range maliciousInputs {
			path := "/api/reports/" + url.PathEscape(maliciousInput)
			rec := doJSON(router, http.MethodGet, path, "", nil)

			assert.Equal(t, http.StatusNotFound, rec.Code,
				"SQL injection attempt should be a plain miss: %s", maliciousInput)
		}
	})

	t.Run("Path Traversal Protection", func(t *testing.T) {
		attempts := []string{
			"../../../etc/passwd",
			"..%2f..%2fetc%2fpasswd",
		}

		for _, attempt := range attempts {
			rec := doJSON(router, http.MethodGet, fmt.Sprintf("/api/reports/%s", attempt), "", nil)

			assert.NotEqual(t, http.StatusOK, rec.Code, "path traversal should not succeed: %s", attempt)
			assert.NotEqual(t, http.StatusInternalServerError, rec.Code)
		}
	})

	t.Run("Secret Guessing", func(t *testing.T) {
		for _, secret := range []string{"", "' OR 1=1 --", strings.Repeat("a", 4096)} {
			rec := doJSON(router, http.MethodGet, "/api/admin/reset-limit?secret="+url.QueryEscape(secret), "", nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		}
	})

	t.Run("Large Payload Protection", func(t *testing.T) {
		body := `{"vacancyText":"` + strings.Repeat("x", 2*defaultMaxBodyBytes) + `"}`
		rec := doJSON(router, http.MethodPost, "/api/analyze", body, nil)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("Invalid JSON Protection", func(t *testing.T) {
		invalidJSONPayloads := []string{
			`{invalid json}`,
			`{"unclosed": "quote}`,
			`{"number": 123abc}`,
			`{{"nested": "malformed"}}`,
		}

		for _, path := range []string{"/api/analyze", "/api/optimize", "/api/admin/reset-limit"} {
			for _, invalidJSON := range invalidJSONPayloads {
				rec := doJSON(router, http.MethodPost, path, invalidJSON, nil)

				assert.Equal(t, http.StatusBadRequest, rec.Code,
					"Invalid JSON should return 400 Bad Request on %s: %s", path, invalidJSON)
				resp := decodeError(t, rec)
				assert.Contains(t, resp.Message, "Invalid JSON")
			}
		}
	})

	t.Run("Spoofed Forwarding Headers", func(t *testing.T) {
		svc := &MockVacancyService{}
		svc.On("Optimize", mock.Anything, mock.Anything, models.Identity{Email: "a@x.com"}).
			Return(&models.OptimizeResponse{Success: true}, nil)

		rec := doJSON(newTestRouter(t, svc), http.MethodPost, "/api/optimize", `{"email":"a@x.com","reportId":"r"}`,
			map[string]string{"X-Forwarded-For": "not-an-ip\r\nX-Injected: 1", "X-Real-IP": "<script>"})

		require.Equal(t, http.StatusOK, rec.Code)
		svc.AssertExpectations(t)
	})
}

// TestSecurityHeaders tests that appropriate headers are set
func TestSecurityHeaders(t *testing.T) {
	router := newTestRouter(t, &MockVacancyService{})

	rec := doJSON(router, http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
