package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthCheck reports the health of the service and its dependencies.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now(),
	}

	healthy := true
	if err := h.storage.Health(); err != nil {
		status["storage_status"] = "unhealthy"
		status["storage_error"] = err.Error()
		healthy = false
	} else {
		status["storage_status"] = "healthy"
	}

	if h.redis != nil {
		if err := h.redis.Health(); err != nil {
			// Counters and rate limiting degrade without redis, but
			// redirects keep working.
			status["redis_status"] = "unhealthy"
			status["redis_error"] = err.Error()
		} else {
			status["redis_status"] = "healthy"
		}
	} else {
		status["redis_status"] = "not_configured"
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		status["status"] = "unhealthy"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}
