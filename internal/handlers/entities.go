package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"click-router/internal/routing"
	"click-router/internal/storage"
)

// Entity management handlers

// ListEntities returns all routable entities with optional filtering.
func (h *Handlers) ListEntities(w http.ResponseWriter, r *http.Request) {
	filters := storage.EntityFilters{
		Status: routing.Status(r.URL.Query().Get("status")),
		Mode:   routing.RoutingMode(r.URL.Query().Get("mode")),
	}

	entities, err := h.storage.ListEntities(filters)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list entities: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entities)
}

// GetEntity returns a single entity by ID.
func (h *Handlers) GetEntity(w http.ResponseWriter, r *http.Request) {
	entity, err := h.storage.GetEntity(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, routing.ErrEntityNotFound) {
			http.Error(w, "Entity not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to get entity: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entity)
}

// CreateEntity creates a new routable entity.
func (h *Handlers) CreateEntity(w http.ResponseWriter, r *http.Request) {
	var entity routing.RoutableEntity
	if err := json.NewDecoder(r.Body).Decode(&entity); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	if entity.ID == "" {
		entity.ID = uuid.New().String()
	}
	if err := validateEntity(&entity); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.storage.CreateEntity(&entity); err != nil {
		if errors.Is(err, routing.ErrDuplicateEntity) {
			http.Error(w, "Entity ID or alias already exists", http.StatusConflict)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to create entity: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(entity)
}

// UpdateEntity replaces an entity's configuration. The rule cache for the
// entity is invalidated so the next click sees the new rules.
func (h *Handlers) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var entity routing.RoutableEntity
	if err := json.NewDecoder(r.Body).Decode(&entity); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}
	entity.ID = id

	if err := validateEntity(&entity); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.storage.UpdateEntity(&entity); err != nil {
		if errors.Is(err, routing.ErrEntityNotFound) {
			http.Error(w, "Entity not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to update entity: %v", err), http.StatusInternalServerError)
		return
	}

	h.evaluator.Invalidate()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entity)
}

// DeleteEntity removes an entity.
func (h *Handlers) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.storage.DeleteEntity(id); err != nil {
		if errors.Is(err, routing.ErrEntityNotFound) {
			http.Error(w, "Entity not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to delete entity: %v", err), http.StatusInternalServerError)
		return
	}

	h.evaluator.Invalidate()
	w.WriteHeader(http.StatusNoContent)
}

// GetEntityStats returns aggregated decision stats for an entity: the
// decision log breakdown plus today's live counters from redis.
func (h *Handlers) GetEntityStats(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if _, err := h.storage.GetEntity(id); err != nil {
		if errors.Is(err, routing.ErrEntityNotFound) {
			http.Error(w, "Entity not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to get entity: %v", err), http.StatusInternalServerError)
		return
	}

	since := time.Now().AddDate(0, 0, -7)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid since timestamp, expected RFC3339", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	stats, err := h.storage.GetClickStats(id, since)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to aggregate clicks: %v", err), http.StatusInternalServerError)
		return
	}

	response := map[string]interface{}{
		"entity_id": id,
		"stats":     stats,
	}

	if h.redis != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if today, err := h.redis.DayCounters(ctx, id, time.Now()); err == nil {
			response["today"] = today
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func validateEntity(entity *routing.RoutableEntity) error {
	if entity.Alias == "" {
		return fmt.Errorf("alias is required")
	}
	if entity.Mode != routing.ModeSplit && entity.Mode != routing.ModeCloak {
		return fmt.Errorf("mode must be %q or %q", routing.ModeSplit, routing.ModeCloak)
	}
	if entity.Status == "" {
		entity.Status = routing.StatusActive
	}
	switch entity.Status {
	case routing.StatusActive, routing.StatusPaused, routing.StatusExpired, routing.StatusDisabled:
	default:
		return fmt.Errorf("unknown status %q", entity.Status)
	}
	if len(entity.Destinations) == 0 && entity.PrimaryURL == "" {
		return fmt.Errorf("at least one destination or a primary URL is required")
	}
	for i := range entity.Destinations {
		if entity.Destinations[i].URL == "" {
			return fmt.Errorf("destination %d has no URL", i)
		}
		if err := validateHTTPSURL(fmt.Sprintf("destination %d URL", i), entity.Destinations[i].URL); err != nil {
			return err
		}
		if entity.Destinations[i].Weight < 0 {
			return fmt.Errorf("destination %d has a negative weight", i)
		}
	}
	if entity.SafeURL != "" {
		if err := validateHTTPSURL("safe URL", entity.SafeURL); err != nil {
			return err
		}
	}
	if entity.PrimaryURL != "" {
		if err := validateHTTPSURL("primary URL", entity.PrimaryURL); err != nil {
			return err
		}
	}

	// The rule cache is shared across entities and keyed by rule ID, so
	// every stored rule needs an ID that is unique within the entity.
	seenRuleIDs := make(map[string]struct{}, len(entity.Rules))
	for i := range entity.Rules {
		if entity.Rules[i].ID == "" {
			entity.Rules[i].ID = uuid.New().String()
		}
		if _, dup := seenRuleIDs[entity.Rules[i].ID]; dup {
			return fmt.Errorf("rule %d reuses id %q", i, entity.Rules[i].ID)
		}
		seenRuleIDs[entity.Rules[i].ID] = struct{}{}
	}
	return nil
}

func validateHTTPSURL(what, raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %v", what, err)
	}
	if parsed.Scheme != "https" || parsed.Host == "" {
		return fmt.Errorf("%s must be an absolute https URL", what)
	}
	return nil
}
