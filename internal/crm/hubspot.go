// Package crm registers leads as contacts in HubSpot.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"leadgate/internal/models"
	"leadgate/internal/version"
)

const contactsPath = "/crm/v3/objects/contacts"

// SyncStatus is the outcome of a contact sync.
type SyncStatus string

const (
	StatusCreated  SyncStatus = "created"
	StatusExists   SyncStatus = "exists"
	StatusDisabled SyncStatus = "disabled"
)

// Contact is the lead data pushed to the CRM.
type Contact struct {
	Email      string
	ReportID   string
	UsageCount int
}

// Syncer creates CRM contacts for new leads.
type Syncer interface {
	SyncContact(ctx context.Context, contact Contact) (SyncStatus, error)
}

// NoOpSyncer is used when the CRM integration is disabled.
type NoOpSyncer struct{}

func (NoOpSyncer) SyncContact(context.Context, Contact) (SyncStatus, error) {
	return StatusDisabled, nil
}

// HubSpotClient talks to the HubSpot CRM v3 REST API.
type HubSpotClient struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

var _ Syncer = (*HubSpotClient)(nil)

func NewHubSpotClient(cfg models.CRMConfig) *HubSpotClient {
	return &HubSpotClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

// NewSyncer returns a HubSpotClient when the CRM is enabled, otherwise a NoOpSyncer.
func NewSyncer(cfg models.CRMConfig) Syncer {
	if !cfg.Enabled {
		return NoOpSyncer{}
	}
	return NewHubSpotClient(cfg)
}

type createContactRequest struct {
	Properties map[string]string `json:"properties"`
}

// APIError is a non-success response from HubSpot.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hubspot: status %d: %s", e.StatusCode, e.Message)
}

// SyncContact creates the contact. An existing contact is left untouched
// and reported as StatusExists.
func (c *HubSpotClient) SyncContact(ctx context.Context, contact Contact) (SyncStatus, error) {
	body, err := json.Marshal(createContactRequest{
		Properties: map[string]string{
			"email":               contact.Email,
			"lifecyclestage":      "lead",
			"vacancy_report_id":   contact.ReportID,
			"vacancy_usage_count": strconv.Itoa(contact.UsageCount),
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode contact: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+contactsPath, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.GetInfo().UserAgent())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("hubspot request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return StatusExists, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return StatusCreated, nil
	}

	return "", &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
}

func readErrorMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(data))
}
