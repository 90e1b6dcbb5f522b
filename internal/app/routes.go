package app

import (
	"net/http"

	"github.com/gorilla/mux"

	"click-router/internal/handlers"
	"click-router/internal/middleware"
	"click-router/internal/ratelimit"
)

// SetupRoutes configures all HTTP routes for the application
func SetupRoutes(router *mux.Router, h *handlers.Handlers, rateLimiter *ratelimit.Limiter) {
	// Add logging middleware to all routes
	router.Use(middleware.LoggingMiddleware)

	// Health check
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	// Redirect endpoints take public traffic, so they are the only routes
	// behind the per-IP rate limiter.
	public := router.NewRoute().Subrouter()
	if rateLimiter != nil {
		public.Use(rateLimiter.HTTPMiddleware(ratelimit.ClientIPKey))
	}
	public.HandleFunc("/r/{alias}", h.HandleRedirect).Methods(http.MethodGet)
	public.HandleFunc("/c/{campaign}/{launch}", h.HandleCampaignRedirect).Methods(http.MethodGet)
	public.HandleFunc("/api/decide/{alias}", h.HandleDecide).Methods(http.MethodGet)

	// API endpoints for entity management
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/entities", h.ListEntities).Methods(http.MethodGet)
	api.HandleFunc("/entities", h.CreateEntity).Methods(http.MethodPost)
	api.HandleFunc("/entities/{id}", h.GetEntity).Methods(http.MethodGet)
	api.HandleFunc("/entities/{id}", h.UpdateEntity).Methods(http.MethodPut)
	api.HandleFunc("/entities/{id}", h.DeleteEntity).Methods(http.MethodDelete)
	api.HandleFunc("/entities/{id}/stats", h.GetEntityStats).Methods(http.MethodGet)
}
