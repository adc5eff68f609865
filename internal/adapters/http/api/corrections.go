// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/regatta/internal/domain/scoring"
)

// CorrectionDependencies defines the interface for jury decisions.
type CorrectionDependencies interface {
	ApplyCorrection(ctx context.Context, leaderboard string, corr scoring.Correction) error
	Suppress(ctx context.Context, group, competitorID string, hidden bool) error
}

// correctionRequest mirrors the OpenAPI schema for POST /corrections.
type correctionRequest struct {
	Leaderboard     string   `json:"leaderboard"`
	CompetitorID    string   `json:"competitor_id"`
	Column          string   `json:"column"`
	Points          *float64 `json:"points,omitempty"`
	MaxPointsReason string   `json:"max_points_reason,omitempty"`
	ValidFrom       string   `json:"valid_from"`
}

func (c correctionRequest) validate() error {
	switch {
	case strings.TrimSpace(c.Leaderboard) == "":
		return errors.New("missing leaderboard")
	case strings.TrimSpace(c.CompetitorID) == "":
		return errors.New("missing competitor_id")
	case strings.TrimSpace(c.Column) == "":
		return errors.New("missing column")
	case c.Points == nil && strings.TrimSpace(c.MaxPointsReason) == "":
		return errors.New("either points or max_points_reason is required")
	case strings.TrimSpace(c.ValidFrom) == "":
		return errors.New("missing valid_from")
	}
	if _, err := time.Parse(time.RFC3339, c.ValidFrom); err != nil {
		return errors.New("invalid valid_from; must be RFC3339")
	}
	return nil
}

// suppressionRequest mirrors the OpenAPI schema for POST /suppressions.
type suppressionRequest struct {
	Group        string `json:"group"`
	CompetitorID string `json:"competitor_id"`
	Hidden       bool   `json:"hidden"`
}

func (s suppressionRequest) validate() error {
	switch {
	case strings.TrimSpace(s.Group) == "":
		return errors.New("missing group")
	case strings.TrimSpace(s.CompetitorID) == "":
		return errors.New("missing competitor_id")
	}
	return nil
}

// CorrectionsHandler handles jury score corrections and group suppressions.
type CorrectionsHandler struct {
	deps CorrectionDependencies
}

// NewCorrectionsHandler creates a new corrections handler.
func NewCorrectionsHandler(deps CorrectionDependencies) *CorrectionsHandler {
	return &CorrectionsHandler{deps: deps}
}

// HandlePostCorrection handles POST /corrections requests.
func (h *CorrectionsHandler) HandlePostCorrection(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_correction"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req correctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	validFrom, _ := time.Parse(time.RFC3339, req.ValidFrom)

	corr := scoring.Correction{
		CompetitorID:    req.CompetitorID,
		Column:          req.Column,
		MaxPointsReason: req.MaxPointsReason,
		Points:          req.Points,
		ValidFrom:       validFrom,
	}
	if err := h.deps.ApplyCorrection(r.Context(), req.Leaderboard, corr); err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

// HandlePostSuppression handles POST /suppressions requests.
func (h *CorrectionsHandler) HandlePostSuppression(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_suppression"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req suppressionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.Suppress(r.Context(), req.Group, req.CompetitorID, req.Hidden); err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
