// Package handlers implements the HTTP surface: the public redirect
// endpoints, the decision API, entity management, and health.
package handlers

import (
	"click-router/internal/config"
	"click-router/internal/redis"
	"click-router/internal/routing"
	"click-router/internal/storage"
)

type Handlers struct {
	storage      storage.Storage
	orchestrator *routing.Orchestrator
	evaluator    *routing.RuleEvaluator
	redis        *redis.Client
	config       *config.Config
}

func New(store storage.Storage, orchestrator *routing.Orchestrator, evaluator *routing.RuleEvaluator, redisClient *redis.Client, cfg *config.Config) *Handlers {
	return &Handlers{
		storage:      store,
		orchestrator: orchestrator,
		evaluator:    evaluator,
		redis:        redisClient,
		config:       cfg,
	}
}
