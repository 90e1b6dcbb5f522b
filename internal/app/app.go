package app

import (
	"context"

	"click-router/internal/common/logging"
	"click-router/internal/config"
	"click-router/internal/recorder"
	"click-router/internal/redis"
	"click-router/internal/routing"
	"click-router/internal/sinks"
	"click-router/internal/storage"

	"github.com/robfig/cron/v3"
)

// App holds all the application dependencies
type App struct {
	Config       *config.Config
	Storage      storage.Storage
	RedisClient  *redis.Client
	Sinks        []sinks.Sink
	Recorder     *recorder.Recorder
	Evaluator    *routing.RuleEvaluator
	Orchestrator *routing.Orchestrator
	Logger       logging.Logger

	janitor *cron.Cron
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.Field{Key: "component", Value: "app"}),
	}

	// Initialize components in order of dependency
	if err := app.initializeStorage(); err != nil {
		return nil, err
	}

	if err := app.initializeRedis(); err != nil {
		// Redis is optional: counters, fingerprints and rate limiting
		// degrade gracefully without it.
		app.Logger.Warn("Redis initialization failed, continuing without Redis",
			logging.Field{Key: "error", Value: err.Error()})
	}

	if err := app.initializeSinks(); err != nil {
		return nil, err
	}

	app.initializeRecorder()
	app.initializeRouting()

	if err := app.initializeJanitor(); err != nil {
		return nil, err
	}

	return app, nil
}

// Shutdown stops background work while the HTTP server drains
func (app *App) Shutdown(ctx context.Context) error {
	if app.janitor != nil {
		stopped := app.janitor.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
			app.Logger.Warn("Janitor did not stop before shutdown deadline")
		}
	}

	return nil
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.janitor != nil {
		app.janitor.Stop()
	}
	// The recorder drains its queue on close, so it must go down before
	// the stores and sinks it writes to.
	if app.Recorder != nil {
		app.Recorder.Close()
	}
	for _, sink := range app.Sinks {
		if err := sink.Close(); err != nil {
			app.Logger.Warn("Error closing event sink",
				logging.Field{Key: "sink", Value: sink.Name()},
				logging.Field{Key: "error", Value: err.Error()})
		}
	}
	if app.Storage != nil {
		app.Storage.Close()
	}
	if app.RedisClient != nil {
		app.RedisClient.Close()
	}
}
