// Package model contains domain models passed between layers.
package model

import "time"

// Fix is one position observation for a competitor in a race column,
// delivered by the tracking subsystem. Fields mirror the OpenAPI schema for
// /fixes.
type Fix struct {
	FixID        string    // unique id for idempotency
	Column       string    // race column the fix belongs to, e.g. "Q2"
	CompetitorID string    // tracked competitor
	Rank         int       // 1-based position at the fix time
	Points       *float64  // points implied by a handicap metric, if any
	TieKey       string    // opaque tie-priority key from the tracker
	At           time.Time // observation timestamp
}
