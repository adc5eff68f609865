// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/regatta/internal/domain/dedupe"
	"github.com/okian/regatta/internal/domain/event"
	"github.com/okian/regatta/internal/domain/eventlog"
	"github.com/okian/regatta/internal/domain/model"
	"github.com/okian/regatta/internal/domain/regatta"
	"github.com/okian/regatta/internal/domain/scoring"
	"github.com/okian/regatta/internal/domain/types"
)

// Read shapes served by the API, aliased from their owning packages.
type (
	Fix         = model.Fix
	Snapshot    = scoring.Snapshot
	RaceSummary = types.RaceSummary
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes a fix for async processing. Returns false on backpressure.
	Enqueue(ctx context.Context, f Fix) bool

	// AppendEvent records an event in the named race log and returns its id.
	AppendEvent(ctx context.Context, raceID string, e event.Event) (string, error)

	// RevokeEvent retracts an event by appending a tombstone.
	RevokeEvent(ctx context.Context, raceID, eventID, author string, at time.Time) error

	// ApplyCorrection records a jury score correction on a leaderboard.
	ApplyCorrection(ctx context.Context, leaderboard string, corr scoring.Correction) error

	// Suppress flags or unflags a competitor on a meta-leaderboard group.
	Suppress(ctx context.Context, group, competitorID string, hidden bool) error

	// Leaderboard computes the named leaderboard or group snapshot.
	Leaderboard(ctx context.Context, name string, state scoring.ResultState, at time.Time, limit int) (Snapshot, error)

	// RaceSummary projects one race's derived state.
	RaceSummary(ctx context.Context, raceID string) (RaceSummary, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	eventsHandler      *EventsHandler
	fixesHandler       *FixesHandler
	correctionsHandler *CorrectionsHandler
	leaderboardHandler *LeaderboardHandler
	raceHandler        *RaceHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		eventsHandler:      NewEventsHandler(deps),
		fixesHandler:       NewFixesHandler(deps),
		correctionsHandler: NewCorrectionsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		raceHandler:        NewRaceHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events/revoke", MetricsMiddleware(s.eventsHandler.HandleRevokeEvent, "events_revoke"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/fixes", MetricsMiddleware(s.fixesHandler.HandlePostFix, "fixes"))
	mux.HandleFunc("/corrections", MetricsMiddleware(s.correctionsHandler.HandlePostCorrection, "corrections"))
	mux.HandleFunc("/suppressions", MetricsMiddleware(s.correctionsHandler.HandlePostSuppression, "suppressions"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/races/", MetricsMiddleware(s.raceHandler.HandleGetRace, "races"))
}

type ackResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id,omitempty"`
	Duplicate bool   `json:"duplicate,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates domain sentinels into HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, regatta.ErrUnknownRace),
		errors.Is(err, regatta.ErrUnknownLeaderboard),
		errors.Is(err, eventlog.ErrUnknownEvent):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, eventlog.ErrOutOfOrderCreation),
		errors.Is(err, eventlog.ErrDuplicateEvent):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
