package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"click-router/internal/requestctx"
	"click-router/internal/routing"
)

// Redirect and decision handlers. These are the hot path: every click on a
// managed link lands here and must leave with a 302 or a definite error.

// HandleRedirect resolves an alias and issues the redirect.
func (h *Handlers) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	alias := mux.Vars(r)["alias"]
	h.redirect(w, r, alias)
}

// HandleCampaignRedirect resolves a campaign/launch pair. The pair is stored
// as a single composite alias.
func (h *Handlers) HandleCampaignRedirect(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	h.redirect(w, r, vars["campaign"]+":"+vars["launch"])
}

// HandleDecide runs the decision for an alias and returns it as JSON instead
// of redirecting. Intended for server-side callers that issue their own
// redirect.
func (h *Handlers) HandleDecide(w http.ResponseWriter, r *http.Request) {
	alias := mux.Vars(r)["alias"]

	decision, status, err := h.decide(r, alias)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"url":      decision.URL,
		"decision": decision,
	})
}

func (h *Handlers) redirect(w http.ResponseWriter, r *http.Request, alias string) {
	decision, status, err := h.decide(r, alias)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}

	// Decisions must not be cached: two clicks on the same link may land
	// on different destinations.
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, decision.URL, http.StatusFound)
}

func (h *Handlers) decide(r *http.Request, alias string) (*routing.Decision, int, error) {
	entity, err := h.storage.GetEntityByAlias(alias)
	if err != nil {
		if errors.Is(err, routing.ErrEntityNotFound) {
			return nil, http.StatusNotFound, routing.ErrEntityNotFound
		}
		return nil, http.StatusInternalServerError, err
	}

	ctx := requestctx.FromHTTP(r)
	decision, err := h.orchestrator.Decide(entity, ctx)
	if err != nil {
		if errors.Is(err, routing.ErrUnresolvable) {
			return nil, http.StatusBadGateway, routing.ErrUnresolvable
		}
		return nil, http.StatusInternalServerError, err
	}
	return decision, http.StatusOK, nil
}
