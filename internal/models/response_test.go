package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorResponse(t *testing.T) {
	before := time.Now()
	resp := NewErrorResponse("Report not found", ErrorCodeReportNotFound)

	assert.Equal(t, "error", resp.Error)
	assert.Equal(t, "Report not found", resp.Message)
	assert.Equal(t, ErrorCodeReportNotFound, resp.Code)
	assert.False(t, resp.Timestamp.Before(before))
}

func TestNewLockedResponse_JSONShape(t *testing.T) {
	data, err := json.Marshal(NewLockedResponse("limit reached"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, false, decoded["success"])
	assert.Equal(t, true, decoded["isLocked"])
	assert.Equal(t, "limit reached", decoded["message"])
	assert.NotContains(t, decoded, "optimization")
	assert.NotContains(t, decoded, "phase")
}

func TestOptimizeResponse_JSONShape(t *testing.T) {
	resp := OptimizeResponse{
		Success:      true,
		Optimization: &OptimizationResult{},
		Phase:        "phase2",
		UsageCount:   1,
	}
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, "phase2", decoded["phase"])
	assert.EqualValues(t, 1, decoded["usageCount"])
	assert.NotContains(t, decoded, "isLocked")
}

func TestResetUsageResponse_JSONShape(t *testing.T) {
	data, err := json.Marshal(ResetUsageResponse{
		Success:      true,
		Message:      "ok",
		DeletedLeads: 3,
		Identifiers:  "email: a@x.com",
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":true,"message":"ok","deletedLeads":3,"identifiers":"email: a@x.com"}`, string(data))
}

func TestHealthCheckResponse_AddComponent(t *testing.T) {
	resp := NewHealthCheckResponse(StatusHealthy)
	resp.AddComponent("ledger", StatusHealthy, "")
	assert.Equal(t, StatusHealthy, resp.Status)

	resp.AddComponent("analysis_limiter", StatusUnhealthy, "redis down")
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Equal(t, "redis down", resp.Components["analysis_limiter"].Message)
}
