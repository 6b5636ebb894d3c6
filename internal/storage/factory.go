package storage

import (
	"fmt"

	"leadgate/internal/models"
)

// Factory creates storage instances from configuration.
type Factory struct{}

// NewFactory creates a new storage factory
func NewFactory() *Factory {
	return &Factory{}
}

// Create instantiates a storage provider based on the provided configuration.
// Supported providers:
//   - memory: in-process storage for development and tests
//   - sqlite: embedded SQLite database file
//   - postgres: PostgreSQL through a pgx pool
func (f *Factory) Create(config models.StorageConfig) (Storage, error) {
	storageConfig := Config{
		Type:             config.Type,
		ConnectionString: config.Database.DSN,
		MaxOpenConns:     config.Database.MaxOpenConns,
		MaxIdleConns:     config.Database.MaxIdleConns,
		ConnMaxLifetime:  config.Database.ConnMaxLifetime,
	}

	var (
		s   Storage
		err error
	)
	// Assign through typed locals so a failed constructor yields a nil interface.
	switch config.Type {
	case models.StorageTypeMemory:
		var ms *MemoryStorage
		if ms, err = NewMemoryStorage(storageConfig); err == nil {
			s = ms
		}
	case models.StorageTypePostgres:
		var ps *PostgresStorage
		if ps, err = NewPostgresStorage(storageConfig); err == nil {
			s = ps
		}
	case models.StorageTypeSQLite:
		var ss *SQLiteStorage
		if ss, err = NewSQLiteStorage(storageConfig); err == nil {
			s = ss
		}
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetSupportedProviders returns a list of all supported storage provider types
func (f *Factory) GetSupportedProviders() []string {
	return []string{models.StorageTypeMemory, models.StorageTypePostgres, models.StorageTypeSQLite}
}

// ValidateConfig validates that a storage configuration is valid for its type
func (f *Factory) ValidateConfig(config models.StorageConfig) error {
	switch config.Type {
	case models.StorageTypeMemory:
		// Memory storage requires no additional configuration
	case models.StorageTypePostgres, models.StorageTypeSQLite:
		if config.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s storage", config.Type)
		}
	default:
		return fmt.Errorf("unsupported storage type: %s", config.Type)
	}
	return nil
}
