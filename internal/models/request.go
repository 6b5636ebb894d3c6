// Package models - API request types and input validation.
//
// Validation Philosophy:
// - Fail fast with clear error messages for invalid input
// - Normalize after validation so errors quote what the client sent
package models

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultCategory is used when an analysis request names no category.
const DefaultCategory = "General"

// AnalyzeRequest is the body of POST /api/analyze.
type AnalyzeRequest struct {
	VacancyText string `json:"vacancyText"`
	Category    string `json:"category,omitempty"`
}

// Validate checks the request against the maximum accepted text length.
func (r *AnalyzeRequest) Validate(maxChars int) error {
	if strings.TrimSpace(r.VacancyText) == "" {
		return errors.New("vacancy text is required")
	}
	if maxChars > 0 && len([]rune(r.VacancyText)) > maxChars {
		return fmt.Errorf("vacancy text exceeds %d characters", maxChars)
	}
	return nil
}

func (r *AnalyzeRequest) Normalize() {
	r.VacancyText = strings.TrimSpace(r.VacancyText)
	r.Category = strings.TrimSpace(r.Category)
	if r.Category == "" {
		r.Category = DefaultCategory
	}
}

// OptimizeRequest is the body of POST /api/optimize. The fingerprint may also
// arrive in the X-Fingerprint header; the handler merges the two.
type OptimizeRequest struct {
	Email       string `json:"email"`
	ReportID    string `json:"reportId"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

func (r *OptimizeRequest) Validate() error {
	if strings.TrimSpace(r.Email) == "" || strings.TrimSpace(r.ReportID) == "" {
		return errors.New("email and report ID are required")
	}
	if !strings.Contains(r.Email, "@") {
		return errors.New("email address is invalid")
	}
	return nil
}

func (r *OptimizeRequest) Normalize() {
	r.Email = NormalizeEmail(r.Email)
	r.ReportID = strings.TrimSpace(r.ReportID)
	r.Fingerprint = NormalizeFingerprint(r.Fingerprint)
}

// ResetUsageRequest carries the admin secret and an optional email override.
// It is decoded from the query string (GET) or a JSON body (POST).
type ResetUsageRequest struct {
	Secret string `json:"secret"`
	Email  string `json:"email,omitempty"`
}
