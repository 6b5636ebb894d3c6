package storage

import (
	"context"
	"time"

	"leadgate/internal/models"
)

// ReportStore persists submitted vacancies and their analyses. Reports are
// written once and never updated.
type ReportStore interface {
	// CreateReport stores a new report. ErrAlreadyExists if the ID is taken.
	CreateReport(ctx context.Context, report *models.Report) error

	// GetReport returns the report or ErrNotFound.
	GetReport(ctx context.Context, id string) (*models.Report, error)
}

// Ledger is the append-only usage log of optimization requests.
type Ledger interface {
	// InsertLead appends one row and sets lead.ID and lead.CreatedAt.
	InsertLead(ctx context.Context, lead *models.Lead) error

	// CountByEmail counts rows with this email, compared case-insensitively.
	CountByEmail(ctx context.Context, email string) (int, error)

	// CountByIdentity counts rows whose IP matches ip OR whose fingerprint
	// matches fingerprint. Empty arguments are ignored; with both empty the
	// result is 0.
	CountByIdentity(ctx context.Context, ip, fingerprint string) (int, error)

	// DeleteByIdentity deletes every row matching ANY non-empty field of id
	// and returns the number deleted. ErrNoCriteria if id is empty.
	DeleteByIdentity(ctx context.Context, id models.Identity) (int64, error)

	// DeleteLead removes a single row by ID. ErrNotFound if it does not exist.
	DeleteLead(ctx context.Context, id int64) error
}

// Storage is the full persistence contract used by the service.
type Storage interface {
	ReportStore
	Ledger

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases connections and resources.
	Close() error
}

// Config holds configuration for storage backends
type Config struct {
	// Type specifies the storage backend type (memory, sqlite, postgres)
	Type string `json:"type" yaml:"type"`

	// ConnectionString is the DSN for database backends
	ConnectionString string `json:"connection_string,omitempty" yaml:"connection_string,omitempty"`

	MaxOpenConns    int           `json:"max_open_conns,omitempty" yaml:"max_open_conns,omitempty"`
	MaxIdleConns    int           `json:"max_idle_conns,omitempty" yaml:"max_idle_conns,omitempty"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime,omitempty" yaml:"conn_max_lifetime,omitempty"`
}
