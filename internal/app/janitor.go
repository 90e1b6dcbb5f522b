package app

import (
	"fmt"
	"time"

	"click-router/internal/common/logging"

	"github.com/robfig/cron/v3"
)

// Clicks older than this are pruned from the decision log.
const clickRetention = 90 * 24 * time.Hour

// initializeJanitor starts the background sweeps: expiring entities whose
// deadline has passed, and pruning old decision log rows. Expiry is also
// detected lazily at click time; the sweep keeps listings accurate for
// entities that stop receiving traffic.
func (app *App) initializeJanitor() error {
	app.janitor = cron.New()

	if _, err := app.janitor.AddFunc(app.Config.JanitorSchedule, app.sweepExpired); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", app.Config.JanitorSchedule, err)
	}
	if _, err := app.janitor.AddFunc("@daily", app.pruneClicks); err != nil {
		return fmt.Errorf("failed to schedule click log pruning: %w", err)
	}

	app.janitor.Start()
	app.Logger.Info("Expiry Janitor: Started", logging.Field{Key: "schedule", Value: app.Config.JanitorSchedule})
	return nil
}

func (app *App) sweepExpired() {
	expired, err := app.Storage.MarkExpiredBefore(time.Now())
	if err != nil {
		app.Logger.Warn("Expiry sweep failed", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	if expired > 0 {
		app.Logger.Info("Expiry sweep completed", logging.Field{Key: "expired", Value: expired})
	}
}

func (app *App) pruneClicks() {
	pruned, err := app.Storage.DeleteClicksBefore(time.Now().Add(-clickRetention))
	if err != nil {
		app.Logger.Warn("Click log pruning failed", logging.Field{Key: "error", Value: err.Error()})
		return
	}
	if pruned > 0 {
		app.Logger.Info("Click log pruned", logging.Field{Key: "deleted", Value: pruned})
	}
}
