package postgres

import (
	"fmt"

	"click-router/internal/storage"
)

type Factory struct{}

func (f *Factory) Create(config storage.StorageConfig) (storage.Storage, error) {
	switch cfg := config.(type) {
	case *Config:
		return NewAdapter(cfg)
	case storage.GenericConfig:
		typed := DefaultConfig()
		typed.Host = cfg.GetString("host", typed.Host)
		typed.Database = cfg.GetString("database", typed.Database)
		typed.Username = cfg.GetString("username", typed.Username)
		typed.Password = cfg.GetString("password", typed.Password)
		typed.SSLMode = cfg.GetString("sslmode", typed.SSLMode)
		if port := cfg.GetString("port", ""); port != "" {
			if _, err := fmt.Sscanf(port, "%d", &typed.Port); err != nil {
				return nil, fmt.Errorf("invalid PostgreSQL port: %s", port)
			}
		}
		return NewAdapter(typed)
	default:
		return nil, fmt.Errorf("invalid config type for PostgreSQL storage")
	}
}

func (f *Factory) GetType() string {
	return "postgres"
}

func init() {
	storage.Register("postgres", &Factory{})
}
