// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"
	"strings"
)

// RaceDependencies defines the interface for race state queries.
type RaceDependencies interface {
	RaceSummary(ctx context.Context, raceID string) (RaceSummary, error)
}

// RaceHandler handles race state requests.
type RaceHandler struct {
	deps RaceDependencies
}

// NewRaceHandler creates a new race handler.
func NewRaceHandler(deps RaceDependencies) *RaceHandler {
	return &RaceHandler{deps: deps}
}

// HandleGetRace handles GET /races/{race_id} requests.
func (h *RaceHandler) HandleGetRace(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_race"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /races/
	path := strings.TrimPrefix(r.URL.Path, "/races/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	summary, err := h.deps.RaceSummary(r.Context(), path)
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
