package app

import (
	"strconv"

	"click-router/internal/common/logging"
	"click-router/internal/redis"
)

func (app *App) initializeRedis() error {
	if app.Config.RedisAddress == "" {
		app.Logger.Info("Redis: Not configured (decision counters, fingerprints and rate limiting disabled)")
		return nil
	}

	redisDB, _ := strconv.Atoi(app.Config.RedisDB)
	redisPoolSize, _ := strconv.Atoi(app.Config.RedisPoolSize)

	redisClient, err := redis.NewClient(&redis.Config{
		Address:  app.Config.RedisAddress,
		Password: app.Config.RedisPassword,
		DB:       redisDB,
		PoolSize: redisPoolSize,
	})
	if err != nil {
		return err
	}

	app.RedisClient = redisClient
	app.Logger.Info("Redis: Connected", logging.Field{Key: "address", Value: app.Config.RedisAddress})

	if app.Config.RateLimitEnabled {
		app.Logger.Info("Rate Limiting: Enabled",
			logging.Field{Key: "limit", Value: app.Config.RateLimitDefaultInt()},
			logging.Field{Key: "window", Value: app.Config.RateLimitWindowDuration().String()},
		)
	}

	return nil
}
