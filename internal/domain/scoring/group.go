package scoring

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Suppression is the tri-state answer to "is this competitor hidden from
// the aggregate". A flagged competitor stays Unresolved until a tracked
// result exists for them in at least one underlying race; until then they
// are reported as neither present nor absent.
type Suppression int

const (
	// SuppressionUnresolved means the flag cannot be answered yet.
	SuppressionUnresolved Suppression = iota
	// SuppressionHidden means the competitor is excluded from the aggregate.
	SuppressionHidden
	// SuppressionVisible means the competitor appears in the aggregate.
	SuppressionVisible
)

// Group is a meta-leaderboard: its rows re-aggregate the already-computed
// rows of its member leaderboards (e.g. a season overall). Suppressing a
// competitor hides them from the aggregate without altering any member.
type Group struct {
	name    string
	scheme  Scheme
	members []*Leaderboard

	mu         sync.RWMutex
	suppressed map[string]bool
}

// GroupOption applies a configuration option to a Group.
type GroupOption func(*Group)

// WithGroupScheme sets the aggregate's points direction.
func WithGroupScheme(s Scheme) GroupOption {
	return func(g *Group) { g.scheme = s }
}

// WithMembers sets the member leaderboards.
func WithMembers(members ...*Leaderboard) GroupOption {
	return func(g *Group) {
		g.members = append(g.members, members...)
	}
}

// NewGroup creates a meta-leaderboard over the given members.
func NewGroup(name string, opts ...GroupOption) *Group {
	g := &Group{
		name:       name,
		suppressed: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// Members returns the member leaderboards.
func (g *Group) Members() []*Leaderboard { return g.members }

// Suppress sets or clears a competitor's suppression flag.
func (g *Group) Suppress(competitorID string, hidden bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.suppressed[competitorID] = hidden
}

// IsSuppressed resolves a competitor's suppression at the given time point.
// Without a flag the competitor is simply visible; with a flag the answer
// stays Unresolved until some member column has a tracked result for them.
func (g *Group) IsSuppressed(ctx context.Context, competitorID string, at time.Time) Suppression {
	g.mu.RLock()
	hidden, flagged := g.suppressed[competitorID]
	g.mu.RUnlock()
	if !flagged {
		return SuppressionVisible
	}
	if !g.hasTrackedResult(ctx, competitorID, at) {
		return SuppressionUnresolved
	}
	if hidden {
		return SuppressionHidden
	}
	return SuppressionVisible
}

// hasTrackedResult reports whether any member column's metric has a result
// for the competitor.
func (g *Group) hasTrackedResult(ctx context.Context, competitorID string, at time.Time) bool {
	for _, lb := range g.members {
		for _, col := range lb.Columns() {
			if _, ok := lb.metric.Rank(ctx, col.Name, competitorID, at); ok {
				return true
			}
		}
	}
	return false
}

// ComputeGroup aggregates the members' computed rows into the group's
// snapshot. Suppression removes a competitor only once it is resolved
// hidden; unresolved competitors aggregate normally.
func (e *Engine) ComputeGroup(ctx context.Context, g *Group, state ResultState, at time.Time, maxRows int) (Snapshot, error) {
	type aggregate struct {
		net      float64
		total    float64
		discards int
		cells    []Cell
	}
	byCompetitor := make(map[string]*aggregate)
	var order []string

	resolved := at
	for _, lb := range g.members {
		snap, err := e.Compute(ctx, lb, state, at, 0)
		if err != nil {
			return Snapshot{}, err
		}
		if snap.At.After(resolved) {
			resolved = snap.At
		}
		for _, row := range snap.Rows {
			agg, ok := byCompetitor[row.CompetitorID]
			if !ok {
				agg = &aggregate{}
				byCompetitor[row.CompetitorID] = agg
				order = append(order, row.CompetitorID)
			}
			agg.net += row.Net
			agg.total += row.Total
			agg.discards += row.Discards
			agg.cells = append(agg.cells, row.Cells...)
		}
	}

	sort.Strings(order)
	rows := make([]Row, 0, len(order))
	for _, competitorID := range order {
		if g.IsSuppressed(ctx, competitorID, resolved) == SuppressionHidden {
			continue
		}
		agg := byCompetitor[competitorID]
		rows = append(rows, Row{
			CompetitorID: competitorID,
			Cells:        agg.cells,
			Total:        agg.total,
			Net:          agg.net,
			Discards:     agg.discards,
		})
	}
	sortRows(rows, g.scheme)
	for i := range rows {
		rows[i].Rank = i + 1
	}
	if maxRows > 0 && len(rows) > maxRows {
		rows = rows[:maxRows]
	}
	return Snapshot{Name: g.name, State: state.String(), At: resolved, Rows: rows}, nil
}
