package scoring

import (
	"context"
	"sort"
	"time"

	"github.com/okian/regatta/pkg/metrics"
)

// Cell is one competitor's scored result in one race column. A nil Points
// means the competitor is not yet scored there; that is a data-availability
// gap, not an error, and the rest of the row still renders.
type Cell struct {
	Column    string   `json:"column"`
	Points    *float64 `json:"points"`
	Discarded bool     `json:"discarded,omitempty"`
	Corrected bool     `json:"corrected,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// Row is one ranked leaderboard line.
type Row struct {
	Rank         int     `json:"rank"`
	CompetitorID string  `json:"competitor_id"`
	Cells        []Cell  `json:"cells"`
	Total        float64 `json:"total"`
	Net          float64 `json:"net"`
	Discards     int     `json:"discards"`
}

// Snapshot is a computed leaderboard at one resolved time point.
type Snapshot struct {
	Name  string    `json:"name"`
	State string    `json:"state"`
	At    time.Time `json:"at"`
	Rows  []Row     `json:"rows"`
}

// Engine computes leaderboard snapshots. It never appends events; scoring
// is read-only with respect to race state, so concurrent computations for
// different time points may run in parallel.
type Engine struct {
	clock func() time.Time
}

// EngineOption applies a configuration option to the Engine.
type EngineOption func(*Engine)

// WithClock overrides the wall clock used for Live snapshots.
func WithClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// NewEngine creates an engine with default configuration.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{clock: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Compute scores the leaderboard for the given result state. A zero at is
// resolved from the result state: Live uses now; Preliminary and Final use
// the last correction validity, clamped so it never falls inside a
// still-open race span.
func (e *Engine) Compute(ctx context.Context, lb *Leaderboard, state ResultState, at time.Time, maxRows int) (Snapshot, error) {
	start := time.Now()
	defer func() {
		metrics.RecordScoringComputeDuration(float64(time.Since(start).Milliseconds()))
	}()
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	resolved := at
	if resolved.IsZero() {
		resolved = e.resolveTime(lb, state)
	}

	roster := lb.Roster()
	columns := lb.Columns()
	completed := 0
	for _, col := range columns {
		if col.Completed() {
			completed++
		}
	}
	permitted := lb.rule.Permitted(completed)

	rows := make([]Row, 0, len(roster))
	for _, competitorID := range roster {
		row := Row{CompetitorID: competitorID, Cells: make([]Cell, 0, len(columns))}
		for _, col := range columns {
			row.Cells = append(row.Cells, e.scoreCell(ctx, lb, col, competitorID, resolved, len(roster)))
		}
		e.applyDiscards(&row, lb.scheme, permitted)
		for _, cell := range row.Cells {
			if cell.Points == nil {
				continue
			}
			row.Total += *cell.Points
			if !cell.Discarded {
				row.Net += *cell.Points
			} else {
				row.Discards++
			}
		}
		rows = append(rows, row)
	}

	sortRows(rows, lb.scheme)
	for i := range rows {
		rows[i].Rank = i + 1
	}
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	metrics.RecordLeaderboardComputed()
	return Snapshot{Name: lb.name, State: state.String(), At: resolved, Rows: rows}, nil
}

// resolveTime picks the snapshot time point for a result state.
func (e *Engine) resolveTime(lb *Leaderboard, state ResultState) time.Time {
	if state == Live {
		return e.clock()
	}
	resolved, ok := lb.corrections.LastValidity()
	if !ok {
		resolved = e.clock()
	}
	// Never let a "final" snapshot observe a race whose end is still
	// unknown: clamp back to just before the earliest open start mark.
	for _, st := range lb.openSpans() {
		if !resolved.Before(st) {
			clamped := st.Add(-time.Nanosecond)
			if clamped.Before(resolved) {
				resolved = clamped
			}
		}
	}
	return resolved
}

// scoreCell computes one competitor/column cell: ranking-metric points
// overridden by any applicable correction, with a max-points reason taking
// precedence over a numeric override.
func (e *Engine) scoreCell(ctx context.Context, lb *Leaderboard, col Column, competitorID string, at time.Time, fleetSize int) Cell {
	cell := Cell{Column: col.Name}
	if ranking, ok := lb.metric.Rank(ctx, col.Name, competitorID, at); ok {
		if pts, ok := ranking.ImpliedPoints(); ok {
			cell.Points = &pts
		}
	}
	if corr, ok := lb.corrections.Lookup(competitorID, col.Name, at); ok {
		cell.Corrected = true
		switch {
		case corr.MaxPointsReason != "":
			pts := maxPoints(lb.scheme, fleetSize)
			cell.Points = &pts
			cell.Reason = corr.MaxPointsReason
		case corr.Points != nil:
			pts := *corr.Points
			cell.Points = &pts
		}
	}
	return cell
}

// maxPoints is the penalty score for a reason-for-max-points correction:
// one worse than beating the whole fleet.
func maxPoints(scheme Scheme, fleetSize int) float64 {
	if scheme == HighPoint {
		return 0
	}
	return float64(fleetSize + 1)
}

// applyDiscards marks the worst-scoring cells as discarded, up to the
// permitted count. Equal points discard the earlier column, keeping the
// selection reproducible across replicas.
func (e *Engine) applyDiscards(row *Row, scheme Scheme, permitted int) {
	for n := 0; n < permitted; n++ {
		worst := -1
		for i, cell := range row.Cells {
			if cell.Points == nil || cell.Discarded {
				continue
			}
			if worst == -1 || worse(scheme, *cell.Points, *row.Cells[worst].Points) {
				worst = i
			}
		}
		if worst == -1 {
			return
		}
		row.Cells[worst].Discarded = true
	}
}

// worse reports whether a scores strictly worse than b under the scheme.
// Called in ascending column order, so ties keep the earlier column.
func worse(scheme Scheme, a, b float64) bool {
	if scheme == HighPoint {
		return a < b
	}
	return a > b
}

// sortRows ranks rows by net points in scheme direction; ties break by
// fewest discards, then best single-column result, then competitor id.
func sortRows(rows []Row, scheme Scheme) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Net != b.Net {
			if scheme == HighPoint {
				return a.Net > b.Net
			}
			return a.Net < b.Net
		}
		if a.Discards != b.Discards {
			return a.Discards < b.Discards
		}
		ab, aok := bestCell(a, scheme)
		bb, bok := bestCell(b, scheme)
		if aok && bok && ab != bb {
			if scheme == HighPoint {
				return ab > bb
			}
			return ab < bb
		}
		if aok != bok {
			return aok
		}
		return a.CompetitorID < b.CompetitorID
	})
}

// bestCell returns a row's best single-column points, false if nothing is
// scored yet.
func bestCell(r Row, scheme Scheme) (float64, bool) {
	best := 0.0
	found := false
	for _, cell := range r.Cells {
		if cell.Points == nil {
			continue
		}
		if !found || worse(scheme, best, *cell.Points) {
			best = *cell.Points
			found = true
		}
	}
	return best, found
}
