package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadgate/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS reports (
		id            TEXT PRIMARY KEY,
		vacancy_text  TEXT NOT NULL,
		analysis_json TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS leads (
		id          BIGSERIAL PRIMARY KEY,
		email       TEXT NOT NULL,
		report_id   TEXT,
		ip_address  TEXT,
		fingerprint TEXT,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_email ON leads (lower(email))`,
	`CREATE INDEX IF NOT EXISTS idx_leads_ip_address ON leads (ip_address)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_fingerprint ON leads (fingerprint)`,
}

// PostgresStorage implements Storage on PostgreSQL through a pgx connection pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

var _ Storage = (*PostgresStorage)(nil)

// NewPostgresStorage connects, verifies the connection and applies the schema.
func NewPostgresStorage(config Config) (*PostgresStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(min(config.MaxIdleConns, int(poolConfig.MaxConns)))
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &PostgresStorage{pool: pool}, nil
}

func (ps *PostgresStorage) CreateReport(ctx context.Context, report *models.Report) error {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	tag, err := ps.pool.Exec(ctx,
		`INSERT INTO reports (id, vacancy_text, analysis_json, created_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT (id) DO NOTHING`,
		report.ID, report.VacancyText, report.AnalysisJSON, report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (ps *PostgresStorage) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	err := ps.pool.QueryRow(ctx,
		`SELECT id, vacancy_text, analysis_json, created_at FROM reports WHERE id = $1`, id,
	).Scan(&report.ID, &report.VacancyText, &report.AnalysisJSON, &report.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}

func (ps *PostgresStorage) InsertLead(ctx context.Context, lead *models.Lead) error {
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}

	err := ps.pool.QueryRow(ctx,
		`INSERT INTO leads (email, report_id, ip_address, fingerprint, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		lead.Email, nullIfEmpty(lead.ReportID), nullIfEmpty(lead.IPAddress), nullIfEmpty(lead.Fingerprint),
		lead.CreatedAt,
	).Scan(&lead.ID)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	return nil
}

func (ps *PostgresStorage) CountByEmail(ctx context.Context, email string) (int, error) {
	return ps.count(ctx, models.Identity{Email: email})
}

func (ps *PostgresStorage) CountByIdentity(ctx context.Context, ip, fingerprint string) (int, error) {
	return ps.count(ctx, models.Identity{IPAddress: ip, Fingerprint: fingerprint})
}

func (ps *PostgresStorage) DeleteByIdentity(ctx context.Context, id models.Identity) (int64, error) {
	where, args := identityFilter(id, postgresPlaceholder)
	if where == "" {
		return 0, ErrNoCriteria
	}

	tag, err := ps.pool.Exec(ctx, "DELETE FROM leads WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete leads: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (ps *PostgresStorage) DeleteLead(ctx context.Context, id int64) error {
	tag, err := ps.pool.Exec(ctx, "DELETE FROM leads WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the connection pool.
func (ps *PostgresStorage) Close() error {
	ps.pool.Close()
	return nil
}

func (ps *PostgresStorage) count(ctx context.Context, id models.Identity) (int, error) {
	where, args := identityFilter(id, postgresPlaceholder)
	if where == "" {
		return 0, nil
	}

	var n int64
	if err := ps.pool.QueryRow(ctx, "SELECT COUNT(*) FROM leads WHERE "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return int(n), nil
}
