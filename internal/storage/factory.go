package storage

import (
	"fmt"

	"click-router/internal/common/errors"
	"click-router/internal/config"
)

// NewStorage creates a storage adapter based on configuration. The adapter
// packages must be imported for side effects so their factories register.
func NewStorage(cfg *config.Config) (Storage, error) {
	var storageConfig StorageConfig

	switch cfg.DatabaseType {
	case "sqlite":
		storageConfig = GenericConfig{
			"type": "sqlite",
			"path": cfg.DatabasePath,
		}

	case "postgres", "postgresql":
		storageConfig = GenericConfig{
			"type":     "postgres",
			"host":     cfg.PostgresHost,
			"port":     cfg.PostgresPort,
			"database": cfg.PostgresDB,
			"username": cfg.PostgresUser,
			"password": cfg.PostgresPassword,
			"sslmode":  cfg.PostgresSSLMode,
		}

	case "memory":
		storageConfig = GenericConfig{
			"type": "memory",
		}

	default:
		return nil, errors.ConfigError(fmt.Sprintf("unsupported database type: %s", cfg.DatabaseType))
	}

	return Create(canonicalType(cfg.DatabaseType), storageConfig)
}

func canonicalType(databaseType string) string {
	if databaseType == "postgresql" {
		return "postgres"
	}
	return databaseType
}
