// Package repository holds the tracked-rank store and the archive.
package repository

import (
	"context"
	"time"

	"github.com/okian/regatta/internal/domain/model"
	"github.com/okian/regatta/internal/domain/scoring"
)

// Store provides read/write access to tracked ranking state.
type Store interface {
	// Record folds one fix into the store. Fixes may arrive out of time
	// order; the store keeps them sorted per competitor.
	Record(ctx context.Context, f model.Fix) error

	// Rank reports the latest ranking for a competitor in a column at or
	// before the given time. False means no tracked result exists yet.
	Rank(ctx context.Context, column, competitorID string, at time.Time) (scoring.Ranking, bool)

	// Latest returns the most recent fix per competitor in a column,
	// ordered by rank then competitor id.
	Latest(ctx context.Context, column string) []model.Fix

	// Count returns the number of (column, competitor) pairs tracked.
	Count(ctx context.Context) int
}
