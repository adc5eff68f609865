// Package eventlog implements the append-only, revocable event log backing a
// race's official record.
//
// Physical append order equals creation order and is never rewritten.
// Revoking an event appends a tombstone and tags the target; nothing is ever
// removed, so re-reading the log is deterministic for a given append history.
package eventlog

import (
	"context"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/okian/regatta/internal/domain/event"
	"github.com/okian/regatta/pkg/metrics"
)

// StoredEvent is the physical form of a log entry: the event plus its
// revocation tag. It is the unit of the persistence boundary.
type StoredEvent struct {
	Event   event.Event
	Revoked bool
}

// Log is an ordered, append-only container of events for one stream.
//
// Append and Revoke take the write lock; traversals and Version take the
// read lock. A traversal holds the read lock from first to last element (or
// early break), so the contents observed are one consistent snapshot.
type Log struct {
	id string

	mu          sync.RWMutex
	entries     []entry
	byID        map[string]int // event id -> index into entries
	ordered     []int          // entry indexes sorted by (logical time, append order)
	version     uint64
	lastCreated time.Time
	clock       func() time.Time
}

type entry struct {
	ev      event.Event
	revoked bool
}

// Option applies a configuration option to the Log.
type Option func(*Log)

// WithClock overrides the wall clock used when appended events carry no
// creation timestamp. Tests use this for deterministic creation times.
func WithClock(clock func() time.Time) Option {
	return func(l *Log) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// New creates an empty log for the given stream id.
func New(id string, opts ...Option) *Log {
	l := &Log{
		id:    id,
		byID:  make(map[string]int),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ID returns the stream id, used as the analyzer cache key prefix.
func (l *Log) ID() string {
	return l.id
}

// Version returns an opaque counter bumped on every effective append or
// revoke. Analyzer caches key on it.
func (l *Log) Version() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.version
}

// Len returns the number of physically stored events, revoked included.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Append inserts ev at the end of the physical order.
//
// If ev.CreatedAt is zero it is assigned under the write lock, so creation
// time and creation order can never disagree. A supplied creation time
// earlier than the last appended one fails with ErrOutOfOrderCreation; that
// detects clock or replication anomalies. Logical time earlier than existing
// entries is always accepted.
func (l *Log) Append(ctx context.Context, ev event.Event) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = l.clock()
		if ev.CreatedAt.Before(l.lastCreated) {
			ev.CreatedAt = l.lastCreated
		}
	}
	if err := l.appendLocked(ev); err != nil {
		metrics.RecordLogAppendError()
		return err
	}
	metrics.RecordLogAppend()
	return nil
}

func (l *Log) appendLocked(ev event.Event) error {
	if ev.CreatedAt.Before(l.lastCreated) {
		return fmt.Errorf("%w: event %s created %s before log tail %s",
			ErrOutOfOrderCreation, ev.ID, ev.CreatedAt.Format(time.RFC3339Nano), l.lastCreated.Format(time.RFC3339Nano))
	}
	if _, exists := l.byID[ev.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateEvent, ev.ID)
	}

	idx := len(l.entries)
	l.entries = append(l.entries, entry{ev: ev})
	l.byID[ev.ID] = idx
	if ev.Type() != event.TypeRevoked {
		l.insertOrderedLocked(idx)
	}
	l.lastCreated = ev.CreatedAt
	l.version++
	return nil
}

// insertOrderedLocked places idx into the logical-time index. Among equal
// logical times the new entry goes last, so ties always replay in physical
// append order.
func (l *Log) insertOrderedLocked(idx int) {
	lt := l.entries[idx].ev.LogicalTime
	pos := sort.Search(len(l.ordered), func(i int) bool {
		return l.entries[l.ordered[i]].ev.LogicalTime.After(lt)
	})
	l.ordered = append(l.ordered, 0)
	copy(l.ordered[pos+1:], l.ordered[pos:])
	l.ordered[pos] = idx
}

// Revoke appends a tombstone referencing targetID and tags the target as
// revoked. Revoking an already revoked event is a no-op returning success;
// an unknown id fails with ErrUnknownEvent.
func (l *Log) Revoke(ctx context.Context, targetID, author string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("revoke: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.byID[targetID]
	if !ok {
		metrics.RecordLogRevokeError()
		return fmt.Errorf("%w: %s", ErrUnknownEvent, targetID)
	}
	if l.entries[idx].revoked {
		return nil
	}

	if at.IsZero() {
		at = l.clock()
	}
	if at.Before(l.lastCreated) {
		at = l.lastCreated
	}
	tombstone := event.New(at, author, event.Revoked{TargetID: targetID}, event.WithCreatedAt(at))
	if err := l.appendLocked(tombstone); err != nil {
		metrics.RecordLogRevokeError()
		return err
	}
	l.entries[idx].revoked = true
	metrics.RecordLogRevoke()
	return nil
}

// UnrevokedByLogicalTime returns a restartable traversal of the non-revoked
// events in logical-time order, ties broken by physical append order. The
// read lock is held from the first element until the traversal finishes or
// the caller breaks out early.
//
// Tombstones describe the log, not the race, and are excluded; they remain
// visible through Snapshot.
func (l *Log) UnrevokedByLogicalTime() iter.Seq[event.Event] {
	return func(yield func(event.Event) bool) {
		l.mu.RLock()
		defer l.mu.RUnlock()
		l.yieldUnrevokedLocked(yield)
	}
}

// View invokes fn with the current version and the unrevoked traversal,
// both observed under one read lock, so the version always matches the
// events fn consumes.
func (l *Log) View(fn func(version uint64, events iter.Seq[event.Event])) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn(l.version, func(yield func(event.Event) bool) {
		l.yieldUnrevokedLocked(yield)
	})
}

func (l *Log) yieldUnrevokedLocked(yield func(event.Event) bool) {
	for _, idx := range l.ordered {
		if l.entries[idx].revoked {
			continue
		}
		if !yield(l.entries[idx].ev) {
			return
		}
	}
}

// Snapshot returns the full physical sequence, revoked entries tagged, in
// append order. Replaying it through Restore reconstructs the log exactly.
func (l *Log) Snapshot() []StoredEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]StoredEvent, len(l.entries))
	for i, e := range l.entries {
		out[i] = StoredEvent{Event: e.ev, Revoked: e.revoked}
	}
	return out
}

// Restore replays stored events in the exact order supplied, preserving
// original creation timestamps and revocation tags. The log must be empty.
func (l *Log) Restore(ctx context.Context, stored []StoredEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) > 0 {
		return fmt.Errorf("%w: log %s is not empty", ErrNotEmpty, l.id)
	}
	for _, s := range stored {
		if err := l.appendLocked(s.Event); err != nil {
			return fmt.Errorf("restore %s: %w", l.id, err)
		}
	}
	for _, s := range stored {
		if s.Revoked {
			l.entries[l.byID[s.Event.ID]].revoked = true
		}
	}
	return nil
}
