package app

import (
	"click-router/internal/ratelimit"
)

// InitializeRateLimiter creates a rate limiter if Redis is available
func (app *App) InitializeRateLimiter() *ratelimit.Limiter {
	if app.RedisClient == nil {
		return nil
	}

	return ratelimit.NewLimiter(app.RedisClient, &ratelimit.Config{
		DefaultLimit:  app.Config.RateLimitDefaultInt(),
		DefaultWindow: app.Config.RateLimitWindowDuration(),
		Enabled:       app.Config.RateLimitEnabled,
	})
}
