package app

import (
	"fmt"

	"click-router/internal/common/logging"
	"click-router/internal/storage"

	// Register the storage adapters.
	_ "click-router/internal/storage/memory"
	_ "click-router/internal/storage/postgres"
	_ "click-router/internal/storage/sqlite"
)

func (app *App) initializeStorage() error {
	switch app.Config.DatabaseType {
	case "postgres", "postgresql":
		app.Logger.Info("Database: PostgreSQL",
			logging.Field{Key: "host", Value: app.Config.PostgresHost},
			logging.Field{Key: "port", Value: app.Config.PostgresPort},
			logging.Field{Key: "database", Value: app.Config.PostgresDB},
		)
	case "memory":
		app.Logger.Info("Database: in-memory (entities and click log are not persisted)")
	default:
		app.Logger.Info("Database: SQLite", logging.Field{Key: "path", Value: app.Config.DatabasePath})
	}

	store, err := storage.NewStorage(app.Config)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.Storage = store
	return nil
}
