// Package scoring computes regatta leaderboards from race states, tracked
// rankings, discard rules, and manual score corrections.
//
// All arithmetic is deterministic: identical unrevoked events and
// corrections yield identical rows, on every machine holding a replica of
// the same logs.
package scoring

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/okian/regatta/internal/domain/event"
	"github.com/okian/regatta/internal/domain/race"
)

// Scheme selects the points direction of a leaderboard.
type Scheme int

const (
	// LowPoint ranks by net points ascending (standard sailing scoring).
	LowPoint Scheme = iota
	// HighPoint ranks by net points descending.
	HighPoint
)

// ResultState selects the time-point semantics of a computed snapshot.
type ResultState int

const (
	// Live scores at the current wall clock.
	Live ResultState = iota
	// Preliminary scores at the last correction validity, clamped outside
	// still-open race spans.
	Preliminary
	// Final has the same time resolution as Preliminary but marks the
	// snapshot as official.
	Final
)

// String returns the lowercase wire name of the result state.
func (s ResultState) String() string {
	switch s {
	case Live:
		return "live"
	case Preliminary:
		return "preliminary"
	case Final:
		return "final"
	default:
		return "unknown"
	}
}

// ParseResultState parses a wire name into a ResultState.
func ParseResultState(s string) (ResultState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "live":
		return Live, nil
	case "preliminary":
		return Preliminary, nil
	case "final":
		return Final, nil
	default:
		return Live, fmt.Errorf("%w: %q", ErrUnknownResultState, s)
	}
}

// Column is one named race slot of a series, potentially split into fleets,
// each fleet backed by its own race state. Race states are shared by
// identity with every other leaderboard naming the same column.
type Column struct {
	Name  string
	Races []*race.State
}

// Completed reports whether every fleet race of the column has finished.
func (c Column) Completed() bool {
	if len(c.Races) == 0 {
		return false
	}
	for _, r := range c.Races {
		if r.Status() != event.StatusFinished {
			return false
		}
	}
	return true
}

// Leaderboard is one scored series: race columns, a roster, a discard rule,
// a correction table, and an injected ranking metric.
type Leaderboard struct {
	name        string
	scheme      Scheme
	columns     []Column
	extraRoster []string
	rule        DiscardRule
	corrections *Corrections
	metric      Metric
}

// LeaderboardOption applies a configuration option to a Leaderboard.
type LeaderboardOption func(*Leaderboard)

// WithScheme sets the points direction.
func WithScheme(s Scheme) LeaderboardOption {
	return func(l *Leaderboard) { l.scheme = s }
}

// WithDiscardRule sets the discard rule.
func WithDiscardRule(r DiscardRule) LeaderboardOption {
	return func(l *Leaderboard) { l.rule = r }
}

// WithMetric injects the ranking metric. Construction fails without one;
// there is no ambient default.
func WithMetric(m Metric) LeaderboardOption {
	return func(l *Leaderboard) {
		if m != nil {
			l.metric = m
		}
	}
}

// WithRoster adds competitors beyond those registered on the race logs.
func WithRoster(ids ...string) LeaderboardOption {
	return func(l *Leaderboard) {
		l.extraRoster = append(l.extraRoster, ids...)
	}
}

// NewLeaderboard creates a leaderboard. The metric is required at
// configuration time so a misbound setup fails before scoring is attempted.
func NewLeaderboard(name string, opts ...LeaderboardOption) (*Leaderboard, error) {
	l := &Leaderboard{
		name:        name,
		corrections: NewCorrections(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.metric == nil {
		return nil, fmt.Errorf("leaderboard %s: %w", name, ErrNoMetric)
	}
	return l, nil
}

// Name returns the leaderboard name.
func (l *Leaderboard) Name() string { return l.name }

// Scheme returns the points direction.
func (l *Leaderboard) Scheme() Scheme { return l.scheme }

// Columns returns the race columns in series order.
func (l *Leaderboard) Columns() []Column { return l.columns }

// Corrections exposes the score-correction table.
func (l *Leaderboard) Corrections() *Corrections { return l.corrections }

// AddColumn appends a race column; the name must be unique per leaderboard.
func (l *Leaderboard) AddColumn(col Column) error {
	for _, c := range l.columns {
		if c.Name == col.Name {
			return fmt.Errorf("leaderboard %s: %w: %s", l.name, ErrDuplicateColumn, col.Name)
		}
	}
	l.columns = append(l.columns, col)
	return nil
}

// Roster returns the scored competitor ids: the union of every column
// race's registrations plus explicit additions, sorted for determinism.
func (l *Leaderboard) Roster() []string {
	seen := make(map[string]struct{})
	for _, col := range l.columns {
		for _, r := range col.Races {
			for id := range r.Roster() {
				seen[id] = struct{}{}
			}
		}
	}
	for _, id := range l.extraRoster {
		seen[id] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// openSpans returns the start times of columns whose race span is open: the
// race has started but its end is not yet known. Final/Preliminary time
// points are clamped to just before the earliest of these.
func (l *Leaderboard) openSpans() []time.Time {
	var starts []time.Time
	for _, col := range l.columns {
		for _, r := range col.Races {
			if !started(r) {
				continue
			}
			if st, ok := r.StartTime(); ok {
				starts = append(starts, st)
			}
		}
	}
	return starts
}

func started(r *race.State) bool {
	switch r.Status() {
	case event.StatusStartphase, event.StatusRunning, event.StatusFinishing:
		return true
	default:
		return false
	}
}
