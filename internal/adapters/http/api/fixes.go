// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/regatta/internal/domain/dedupe"
	"github.com/okian/regatta/pkg/metrics"
)

// FixDependencies defines the interface for fix ingestion.
type FixDependencies interface {
	dedupe.Deduper
	Enqueue(ctx context.Context, f Fix) bool
}

// fixRequest mirrors the OpenAPI schema for POST /fixes.
type fixRequest struct {
	FixID        string   `json:"fix_id"`
	Column       string   `json:"column"`
	CompetitorID string   `json:"competitor_id"`
	Rank         int      `json:"rank"`
	Points       *float64 `json:"points,omitempty"`
	TieKey       string   `json:"tie_key,omitempty"`
	At           string   `json:"at"`
}

func (f fixRequest) validate() error {
	switch {
	case strings.TrimSpace(f.FixID) == "":
		return errors.New("missing fix_id")
	case strings.TrimSpace(f.Column) == "":
		return errors.New("missing column")
	case strings.TrimSpace(f.CompetitorID) == "":
		return errors.New("missing competitor_id")
	case f.Rank < 1:
		return errors.New("rank must be >= 1")
	case strings.TrimSpace(f.At) == "":
		return errors.New("missing at")
	}
	if _, err := time.Parse(time.RFC3339, f.At); err != nil {
		return errors.New("invalid at; must be RFC3339")
	}
	return nil
}

// FixesHandler handles tracking fix ingestion.
type FixesHandler struct {
	deps FixDependencies
}

// NewFixesHandler creates a new fixes handler.
func NewFixesHandler(deps FixDependencies) *FixesHandler {
	return &FixesHandler{deps: deps}
}

// HandlePostFix handles POST /fixes requests.
func (h *FixesHandler) HandlePostFix(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_fix"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req fixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	// Idempotency check - mark as seen first
	if h.deps.SeenAndRecord(r.Context(), req.FixID) {
		metrics.RecordFixDuplicate()
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}

	at, _ := time.Parse(time.RFC3339, req.At)
	f := Fix{
		FixID:        req.FixID,
		Column:       req.Column,
		CompetitorID: req.CompetitorID,
		Rank:         req.Rank,
		Points:       req.Points,
		TieKey:       req.TieKey,
		At:           at,
	}

	if ok := h.deps.Enqueue(r.Context(), f); !ok {
		// Rollback the "seen" status since enqueue failed
		h.deps.Unrecord(r.Context(), req.FixID)
		writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
