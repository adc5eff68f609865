// Package regatta tracks one regatta's race states, leaderboards, and
// meta-leaderboard groups.
//
// Race states are handed out by identity: every leaderboard naming the same
// race column references the same state instance, so analyzer caches never
// diverge between boards.
package regatta

import (
	"fmt"
	"sort"
	"sync"

	"github.com/okian/regatta/internal/domain/race"
	"github.com/okian/regatta/internal/domain/scoring"
	"github.com/okian/regatta/pkg/logger"
)

// Registry is the configuration root of a regatta.
type Registry struct {
	lg logger.Logger

	mu     sync.RWMutex
	races  map[string]*race.State
	boards map[string]*scoring.Leaderboard
	groups map[string]*scoring.Group
}

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithLogger sets the logger passed down to race states.
func WithLogger(lg logger.Logger) Option {
	return func(r *Registry) {
		if lg != nil {
			r.lg = lg
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		races:  make(map[string]*race.State),
		boards: make(map[string]*scoring.Leaderboard),
		groups: make(map[string]*scoring.Group),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureRace returns the shared race state for id, creating it on first use.
// Two callers asking for the same id always get the same instance.
func (r *Registry) EnsureRace(id string) *race.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.races[id]; ok {
		return s
	}
	s := race.New(id, race.WithLogger(r.lg))
	r.races[id] = s
	return s
}

// Race returns the race state for id, false if it was never created.
func (r *Registry) Race(id string) (*race.State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.races[id]
	return s, ok
}

// RaceIDs returns the known race ids, sorted.
func (r *Registry) RaceIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.races))
	for id := range r.races {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AddLeaderboard registers a leaderboard under its name.
func (r *Registry) AddLeaderboard(lb *scoring.Leaderboard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.boards[lb.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateLeaderboard, lb.Name())
	}
	if _, exists := r.groups[lb.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateLeaderboard, lb.Name())
	}
	r.boards[lb.Name()] = lb
	return nil
}

// Leaderboard returns the named leaderboard, false if unknown.
func (r *Registry) Leaderboard(name string) (*scoring.Leaderboard, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lb, ok := r.boards[name]
	return lb, ok
}

// Leaderboards returns all leaderboards keyed by name order.
func (r *Registry) Leaderboards() []*scoring.Leaderboard {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.boards))
	for name := range r.boards {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*scoring.Leaderboard, 0, len(names))
	for _, name := range names {
		out = append(out, r.boards[name])
	}
	return out
}

// AddGroup registers a meta-leaderboard under its name. Group and
// leaderboard names share one namespace so query lookups stay unambiguous.
func (r *Registry) AddGroup(g *scoring.Group) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.groups[g.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateLeaderboard, g.Name())
	}
	if _, exists := r.boards[g.Name()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateLeaderboard, g.Name())
	}
	r.groups[g.Name()] = g
	return nil
}

// Group returns the named meta-leaderboard, false if unknown.
func (r *Registry) Group(name string) (*scoring.Group, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[name]
	return g, ok
}

// Counts returns the number of races, leaderboards, and groups.
func (r *Registry) Counts() (races, boards, groups int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.races), len(r.boards), len(r.groups)
}
