// Package race composes an event log with analyzers into the live state of
// one race: status machine, flags, course, start time, wind, roster, and
// finish positioning.
//
// Mutators only ever append to the log; no derived state is mutated in
// place. Readers get values derived lazily from the unrevoked events at the
// log version current at call time.
package race

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"time"

	"github.com/okian/regatta/internal/domain/analyzer"
	"github.com/okian/regatta/internal/domain/event"
	"github.com/okian/regatta/internal/domain/eventlog"
	"github.com/okian/regatta/pkg/logger"
)

// Boat is one rostered competitor entry.
type Boat struct {
	CompetitorID string
	Boat         string
	SailNumber   string
}

// State owns one race's event log plus its analyzer cache.
type State struct {
	id    string
	log   *eventlog.Log
	cache *analyzer.Cache
	lg    logger.Logger

	status      *analyzer.Analyzer[event.Status]
	startTime   *analyzer.Analyzer[time.Time]
	proposed    *analyzer.Analyzer[time.Time]
	course      *analyzer.Analyzer[*event.Course]
	wind        *analyzer.Analyzer[*event.WindFix]
	flags       *analyzer.Analyzer[map[string]bool]
	roster      *analyzer.Analyzer[map[string]Boat]
	positioning *analyzer.Analyzer[*event.FinishPositioning]
	history     *analyzer.Analyzer[[]event.FinishPositioning]
}

// Option applies a configuration option to the State.
type Option func(*State)

// WithLog supplies a pre-built log, e.g. one restored from the archive.
func WithLog(l *eventlog.Log) Option {
	return func(s *State) {
		if l != nil {
			s.log = l
		}
	}
}

// WithLogger sets the logger used for advisory transition warnings.
func WithLogger(lg logger.Logger) Option {
	return func(s *State) {
		if lg != nil {
			s.lg = lg
		}
	}
}

// New creates the state for one race, owning a fresh log unless WithLog
// supplies one.
func New(id string, opts ...Option) *State {
	s := &State{
		id:    id,
		cache: analyzer.NewCache(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = eventlog.New(id)
	}

	s.status = analyzer.New("status", foldStatus)
	s.startTime = analyzer.LastWins("start_time", time.Time{}, func(e event.Event) (time.Time, bool) {
		if p, ok := e.Payload.(event.StartTimeSet); ok {
			return p.StartTime, true
		}
		return time.Time{}, false
	})
	s.proposed = analyzer.LastWins("proposed_start_time", time.Time{}, func(e event.Event) (time.Time, bool) {
		if p, ok := e.Payload.(event.StartTimeProposed); ok {
			return p.StartTime, true
		}
		return time.Time{}, false
	})
	s.course = analyzer.LastWins[*event.Course]("course", nil, func(e event.Event) (*event.Course, bool) {
		if p, ok := e.Payload.(event.CourseChanged); ok {
			c := p.Course
			return &c, true
		}
		return nil, false
	})
	s.wind = analyzer.LastWins[*event.WindFix]("wind", nil, func(e event.Event) (*event.WindFix, bool) {
		if p, ok := e.Payload.(event.WindFix); ok {
			return &p, true
		}
		return nil, false
	})
	s.flags = analyzer.New("flags", func(events iter.Seq[event.Event]) map[string]bool {
		out := make(map[string]bool)
		for e := range events {
			if p, ok := e.Payload.(event.FlagChanged); ok {
				out[p.Flag] = p.Raised
			}
		}
		return out
	})
	s.roster = analyzer.New("roster", func(events iter.Seq[event.Event]) map[string]Boat {
		out := make(map[string]Boat)
		for e := range events {
			if p, ok := e.Payload.(event.CompetitorRegistered); ok {
				out[p.CompetitorID] = Boat{CompetitorID: p.CompetitorID, Boat: p.Boat, SailNumber: p.SailNumber}
			}
		}
		return out
	})
	s.positioning = analyzer.LastWins[*event.FinishPositioning]("positioning", nil, func(e event.Event) (*event.FinishPositioning, bool) {
		if p, ok := e.Payload.(event.FinishPositioning); ok {
			return &p, true
		}
		return nil, false
	})
	s.history = analyzer.Collect("positioning_history", func(e event.Event) (event.FinishPositioning, bool) {
		if p, ok := e.Payload.(event.FinishPositioning); ok {
			return p, true
		}
		return event.FinishPositioning{}, false
	})
	return s
}

// ID returns the race id.
func (s *State) ID() string {
	return s.id
}

// Version returns the underlying log version.
func (s *State) Version() uint64 {
	return s.log.Version()
}

// Append records a new event on the race log. A status event that does not
// follow the normal lifecycle is accepted anyway but logged; the fold
// handles the sequence consistently either way.
func (s *State) Append(ctx context.Context, ev event.Event) error {
	if p, ok := ev.Payload.(event.StatusChanged); ok && s.lg != nil {
		if cur := s.Status(); !CanPrecede(cur, p.Status) {
			s.lg.Warn(ctx, "status event out of sequence",
				logger.String("race", s.id),
				logger.String("from", string(cur)),
				logger.String("to", string(p.Status)))
		}
	}
	if err := s.log.Append(ctx, ev); err != nil {
		return fmt.Errorf("race %s: %w", s.id, err)
	}
	return nil
}

// Revoke retracts an event by id.
func (s *State) Revoke(ctx context.Context, eventID, author string, at time.Time) error {
	if err := s.log.Revoke(ctx, eventID, author, at); err != nil {
		return fmt.Errorf("race %s: %w", s.id, err)
	}
	return nil
}

// Status derives the current race status.
func (s *State) Status() event.Status {
	return analyzer.Derive(s.cache, s.log, s.status)
}

// StartTime returns the committed start time, false if none is set.
func (s *State) StartTime() (time.Time, bool) {
	t := analyzer.Derive(s.cache, s.log, s.startTime)
	return t, !t.IsZero()
}

// ProposedStartTime returns the latest proposed start time, false if none.
func (s *State) ProposedStartTime() (time.Time, bool) {
	t := analyzer.Derive(s.cache, s.log, s.proposed)
	return t, !t.IsZero()
}

// Course returns the current course design, false if none was published.
func (s *State) Course() (event.Course, bool) {
	c := analyzer.Derive(s.cache, s.log, s.course)
	if c == nil {
		return event.Course{}, false
	}
	return *c, true
}

// Wind returns the latest wind fix, false if no observation exists. A
// missing fix is a data-availability gap, not an error.
func (s *State) Wind() (event.WindFix, bool) {
	w := analyzer.Derive(s.cache, s.log, s.wind)
	if w == nil {
		return event.WindFix{}, false
	}
	return *w, true
}

// Flags returns the currently raised committee flags, sorted.
func (s *State) Flags() []string {
	m := analyzer.Derive(s.cache, s.log, s.flags)
	out := make([]string, 0, len(m))
	for flag, raised := range m {
		if raised {
			out = append(out, flag)
		}
	}
	sort.Strings(out)
	return out
}

// Roster returns the registered competitors keyed by competitor id.
func (s *State) Roster() map[string]Boat {
	return analyzer.Derive(s.cache, s.log, s.roster)
}

// Competitors returns the rostered competitor ids, sorted.
func (s *State) Competitors() []string {
	m := s.Roster()
	out := make([]string, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Positioning returns the latest finish positioning, false if none exists.
func (s *State) Positioning() (event.FinishPositioning, bool) {
	p := analyzer.Derive(s.cache, s.log, s.positioning)
	if p == nil {
		return event.FinishPositioning{}, false
	}
	return *p, true
}

// PositioningHistory returns every unrevoked positioning event in
// logical-time order.
func (s *State) PositioningHistory() []event.FinishPositioning {
	return analyzer.Derive(s.cache, s.log, s.history)
}

// Snapshot exposes the physical log for the persistence boundary.
func (s *State) Snapshot() []eventlog.StoredEvent {
	return s.log.Snapshot()
}

// Restore replays archived events into the race's (empty) log.
func (s *State) Restore(ctx context.Context, stored []eventlog.StoredEvent) error {
	return s.log.Restore(ctx, stored)
}
