package scoring

import (
	"context"
	"time"
)

// Ranking is one competitor's tracked in-race result for one race column at
// a point in time. Nil fields mean the tracking subsystem has no data yet;
// they propagate as "not yet scored" cells, never as errors.
type Ranking struct {
	// Rank is the finishing/track position, 1-based.
	Rank *int
	// Points overrides the rank-implied points when the metric computes them
	// directly (handicap schemes).
	Points *float64
	// TieKey is an opaque priority key the tracking subsystem supplies for
	// breaking equal ranks deterministically.
	TieKey string
}

// ImpliedPoints resolves a ranking into points: explicit points win,
// otherwise the rank value under the low-point scheme. False when the
// ranking carries neither.
func (r Ranking) ImpliedPoints() (float64, bool) {
	if r.Points != nil {
		return *r.Points, true
	}
	if r.Rank != nil {
		return float64(*r.Rank), true
	}
	return 0, false
}

// Metric is the read-only boundary to the tracking subsystem. Implementations
// turn in-race performance into a rank or points signal per race column.
type Metric interface {
	// Rank reports the competitor's ranking in the named column as of the
	// given time point. False means no tracked result exists yet.
	Rank(ctx context.Context, column, competitorID string, at time.Time) (Ranking, bool)
}
