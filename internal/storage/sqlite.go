package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"leadgate/internal/models"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS reports (
		id            TEXT PRIMARY KEY,
		vacancy_text  TEXT NOT NULL,
		analysis_json TEXT NOT NULL,
		created_at    TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS leads (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		email       TEXT NOT NULL,
		report_id   TEXT,
		ip_address  TEXT,
		fingerprint TEXT,
		created_at  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_email ON leads (lower(email))`,
	`CREATE INDEX IF NOT EXISTS idx_leads_ip_address ON leads (ip_address)`,
	`CREATE INDEX IF NOT EXISTS idx_leads_fingerprint ON leads (fingerprint)`,
}

// SQLiteStorage implements Storage on an embedded SQLite database (modernc.org/sqlite, no cgo).
type SQLiteStorage struct {
	db *sql.DB
}

var _ Storage = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens the database file and applies the schema.
func NewSQLiteStorage(config Config) (*SQLiteStorage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	return &SQLiteStorage{db: db}, nil
}

func (ss *SQLiteStorage) CreateReport(ctx context.Context, report *models.Report) error {
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}

	res, err := ss.db.ExecContext(ctx,
		`INSERT INTO reports (id, vacancy_text, analysis_json, created_at)
		 VALUES (?, ?, ?, ?) ON CONFLICT (id) DO NOTHING`,
		report.ID, report.VacancyText, report.AnalysisJSON, formatTime(report.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	if n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (ss *SQLiteStorage) GetReport(ctx context.Context, id string) (*models.Report, error) {
	var (
		report    models.Report
		createdAt string
	)
	err := ss.db.QueryRowContext(ctx,
		`SELECT id, vacancy_text, analysis_json, created_at FROM reports WHERE id = ?`, id,
	).Scan(&report.ID, &report.VacancyText, &report.AnalysisJSON, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	report.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report %s created_at: %w", id, err)
	}
	return &report, nil
}

func (ss *SQLiteStorage) InsertLead(ctx context.Context, lead *models.Lead) error {
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}

	res, err := ss.db.ExecContext(ctx,
		`INSERT INTO leads (email, report_id, ip_address, fingerprint, created_at) VALUES (?, ?, ?, ?, ?)`,
		lead.Email, nullIfEmpty(lead.ReportID), nullIfEmpty(lead.IPAddress), nullIfEmpty(lead.Fingerprint),
		formatTime(lead.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}

	lead.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read lead id: %w", err)
	}
	return nil
}

func (ss *SQLiteStorage) CountByEmail(ctx context.Context, email string) (int, error) {
	return ss.count(ctx, models.Identity{Email: email})
}

func (ss *SQLiteStorage) CountByIdentity(ctx context.Context, ip, fingerprint string) (int, error) {
	return ss.count(ctx, models.Identity{IPAddress: ip, Fingerprint: fingerprint})
}

func (ss *SQLiteStorage) DeleteByIdentity(ctx context.Context, id models.Identity) (int64, error) {
	where, args := identityFilter(id, sqlitePlaceholder)
	if where == "" {
		return 0, ErrNoCriteria
	}

	res, err := ss.db.ExecContext(ctx, "DELETE FROM leads WHERE "+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete leads: %w", err)
	}
	return res.RowsAffected()
}

func (ss *SQLiteStorage) DeleteLead(ctx context.Context, id int64) error {
	res, err := ss.db.ExecContext(ctx, "DELETE FROM leads WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete lead: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (ss *SQLiteStorage) Ping(ctx context.Context) error {
	return ss.db.PingContext(ctx)
}

// Close closes the storage connection
func (ss *SQLiteStorage) Close() error {
	return ss.db.Close()
}

func (ss *SQLiteStorage) count(ctx context.Context, id models.Identity) (int, error) {
	where, args := identityFilter(id, sqlitePlaceholder)
	if where == "" {
		return 0, nil
	}

	var n int
	if err := ss.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM leads WHERE "+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count leads: %w", err)
	}
	return n, nil
}

// Timestamps are stored as RFC 3339 text so they sort lexically.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
