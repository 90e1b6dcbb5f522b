package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"click-router/internal/handlers"
	"click-router/internal/server"
)

// RunServer builds the HTTP server with all handlers configured
func (app *App) RunServer() (*server.Server, http.Handler) {
	h := handlers.New(
		app.Storage,
		app.Orchestrator,
		app.Evaluator,
		app.RedisClient,
		app.Config,
	)

	router := mux.NewRouter()
	rateLimiter := app.InitializeRateLimiter()
	SetupRoutes(router, h, rateLimiter)

	srv := server.New(router, app.Config.Port, app.Config.TLSCert, app.Config.TLSKey)

	return srv, router
}
