// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/regatta/internal/domain/event"
)

// EventDependencies defines the interface for event recording.
type EventDependencies interface {
	AppendEvent(ctx context.Context, raceID string, e event.Event) (string, error)
	RevokeEvent(ctx context.Context, raceID, eventID, author string, at time.Time) error
}

// eventRequest mirrors the OpenAPI schema for POST /events.
type eventRequest struct {
	RaceID      string          `json:"race_id"`
	EventID     string          `json:"event_id,omitempty"`
	Type        string          `json:"type"`
	LogicalTime string          `json:"logical_time"`
	Author      string          `json:"author"`
	PassID      int             `json:"pass_id,omitempty"`
	Competitors []string        `json:"competitors,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}

func (e eventRequest) validate() error {
	switch {
	case strings.TrimSpace(e.RaceID) == "":
		return errors.New("missing race_id")
	case strings.TrimSpace(e.Type) == "":
		return errors.New("missing type")
	case strings.TrimSpace(e.Author) == "":
		return errors.New("missing author")
	case strings.TrimSpace(e.LogicalTime) == "":
		return errors.New("missing logical_time")
	}
	if _, err := time.Parse(time.RFC3339, e.LogicalTime); err != nil {
		return errors.New("invalid logical_time; must be RFC3339")
	}
	return nil
}

// revokeRequest mirrors the OpenAPI schema for POST /events/revoke.
type revokeRequest struct {
	RaceID      string `json:"race_id"`
	EventID     string `json:"event_id"`
	Author      string `json:"author"`
	LogicalTime string `json:"logical_time,omitempty"`
}

func (r revokeRequest) validate() error {
	switch {
	case strings.TrimSpace(r.RaceID) == "":
		return errors.New("missing race_id")
	case strings.TrimSpace(r.EventID) == "":
		return errors.New("missing event_id")
	case strings.TrimSpace(r.Author) == "":
		return errors.New("missing author")
	}
	if r.LogicalTime != "" {
		if _, err := time.Parse(time.RFC3339, r.LogicalTime); err != nil {
			return errors.New("invalid logical_time; must be RFC3339")
		}
	}
	return nil
}

// EventsHandler handles event recording and revocation requests.
type EventsHandler struct {
	deps EventDependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps EventDependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	payload, err := event.UnmarshalPayload(event.Type(req.Type), req.Payload)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	logical, _ := time.Parse(time.RFC3339, req.LogicalTime)

	opts := []event.Option{
		event.WithID(req.EventID),
		event.WithPassID(req.PassID),
		event.WithCompetitors(req.Competitors...),
	}
	e := event.New(logical, req.Author, payload, opts...)

	id, err := h.deps.AppendEvent(r.Context(), req.RaceID, e)
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", EventID: id})
}

// HandleRevokeEvent handles POST /events/revoke requests.
func (h *EventsHandler) HandleRevokeEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.revoke_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	var at time.Time
	if req.LogicalTime != "" {
		at, _ = time.Parse(time.RFC3339, req.LogicalTime)
	}

	if err := h.deps.RevokeEvent(r.Context(), req.RaceID, req.EventID, req.Author, at); err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "revoked", EventID: req.EventID})
}
