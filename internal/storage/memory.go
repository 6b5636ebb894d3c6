package storage

import (
	"context"
	"strings"
	"sync"
	"time"

	"leadgate/internal/models"
)

// MemoryStorage implements Storage with in-process data structures.
// It suits development and tests; data is lost on restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	reports map[string]*models.Report
	leads   []*models.Lead
	nextID  int64
	now     func() time.Time
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage creates a new memory-based storage instance
func NewMemoryStorage(config Config) (*MemoryStorage, error) {
	return &MemoryStorage{
		reports: make(map[string]*models.Report),
		now:     time.Now,
	}, nil
}

func (m *MemoryStorage) CreateReport(ctx context.Context, report *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.reports[report.ID]; exists {
		return ErrAlreadyExists
	}

	if report.CreatedAt.IsZero() {
		report.CreatedAt = m.now().UTC()
	}

	// Store a copy to prevent external modification
	reportCopy := *report
	m.reports[report.ID] = &reportCopy
	return nil
}

func (m *MemoryStorage) GetReport(ctx context.Context, id string) (*models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	report, exists := m.reports[id]
	if !exists {
		return nil, ErrNotFound
	}

	reportCopy := *report
	return &reportCopy, nil
}

func (m *MemoryStorage) InsertLead(ctx context.Context, lead *models.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	lead.ID = m.nextID
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = m.now().UTC()
	}

	leadCopy := *lead
	m.leads = append(m.leads, &leadCopy)
	return nil
}

func (m *MemoryStorage) CountByEmail(ctx context.Context, email string) (int, error) {
	if email == "" {
		return 0, nil
	}
	return m.count(models.Identity{Email: email}), nil
}

func (m *MemoryStorage) CountByIdentity(ctx context.Context, ip, fingerprint string) (int, error) {
	return m.count(models.Identity{IPAddress: ip, Fingerprint: fingerprint}), nil
}

func (m *MemoryStorage) DeleteByIdentity(ctx context.Context, id models.Identity) (int64, error) {
	if id.IsEmpty() {
		return 0, ErrNoCriteria
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.leads[:0]
	var deleted int64
	for _, lead := range m.leads {
		if matches(lead, id) {
			deleted++
			continue
		}
		kept = append(kept, lead)
	}
	// Clear the tail so dropped leads can be collected.
	clear(m.leads[len(kept):])
	m.leads = kept

	return deleted, nil
}

func (m *MemoryStorage) DeleteLead(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, lead := range m.leads {
		if lead.ID == id {
			m.leads = append(m.leads[:i], m.leads[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Leads returns a copy of every ledger row in insertion order.
func (m *MemoryStorage) Leads() []models.Lead {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Lead, len(m.leads))
	for i, lead := range m.leads {
		out[i] = *lead
	}
	return out
}

func (m *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) count(id models.Identity) int {
	if id.IsEmpty() {
		return 0
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, lead := range m.leads {
		if matches(lead, id) {
			n++
		}
	}
	return n
}

// matches applies OR semantics over the non-empty fields of id.
func matches(lead *models.Lead, id models.Identity) bool {
	if id.Email != "" && strings.EqualFold(lead.Email, id.Email) {
		return true
	}
	if id.IPAddress != "" && lead.IPAddress == id.IPAddress {
		return true
	}
	if id.Fingerprint != "" && lead.Fingerprint == id.Fingerprint {
		return true
	}
	return false
}
