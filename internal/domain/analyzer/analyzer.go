// Package analyzer derives named pieces of state from a log's unrevoked
// events, memoized per log version.
//
// An analyzer is a pure function over the unrevoked-event traversal. The
// cache guarantees at most one computation per (log, version, analyzer):
// concurrent readers of the same version share a single in-flight
// computation, and readers of other analyzers or logs are never blocked by
// it.
package analyzer

import (
	"iter"
	"sync"
	"time"

	"github.com/okian/regatta/internal/domain/event"
	"github.com/okian/regatta/pkg/metrics"
)

// Source is the log surface analyzers read from.
type Source interface {
	// ID identifies the log for cache keying.
	ID() string
	// Version is the opaque counter bumped on every log change.
	Version() uint64
	// View runs fn with the version and unrevoked traversal observed under
	// one read lock.
	View(fn func(version uint64, events iter.Seq[event.Event]))
}

// Analyzer derives one named value of type V from a log.
type Analyzer[V any] struct {
	name string
	fn   func(events iter.Seq[event.Event]) V
}

// New creates an analyzer from a pure derivation function. The name must be
// unique within a cache; it is part of the cache key.
func New[V any](name string, fn func(events iter.Seq[event.Event]) V) *Analyzer[V] {
	return &Analyzer[V]{name: name, fn: fn}
}

// Name returns the analyzer's cache-key name.
func (a *Analyzer[V]) Name() string {
	return a.name
}

// LastWins builds an analyzer folding to the last matching event's value.
// Events arrive in logical-time order, so the match latest in race time
// wins; def is returned when nothing matches.
func LastWins[V any](name string, def V, match func(event.Event) (V, bool)) *Analyzer[V] {
	return New(name, func(events iter.Seq[event.Event]) V {
		out := def
		for e := range events {
			if v, ok := match(e); ok {
				out = v
			}
		}
		return out
	})
}

// Collect builds an analyzer gathering every matching event's value in
// logical-time order.
func Collect[V any](name string, match func(event.Event) (V, bool)) *Analyzer[[]V] {
	return New(name, func(events iter.Seq[event.Event]) []V {
		var out []V
		for e := range events {
			if v, ok := match(e); ok {
				out = append(out, v)
			}
		}
		return out
	})
}

// Cache memoizes analyzer results keyed by (log id, analyzer name, version).
// It is owned by the race state that owns the log and dropped with it.
type Cache struct {
	mu    sync.Mutex
	slots map[cacheKey]*slot
}

type cacheKey struct {
	logID   string
	name    string
	version uint64
}

type slot struct {
	done  chan struct{}
	value any
}

// NewCache creates an empty analyzer cache.
func NewCache() *Cache {
	return &Cache{slots: make(map[cacheKey]*slot)}
}

// Derive returns a's value for the log's current version, computing it at
// most once per version across concurrent callers.
//
// The cache lock is held only to install or find the in-flight slot; the
// computation itself runs outside it, so waiters for other analyzers are
// never serialized behind an expensive derivation.
func Derive[V any](c *Cache, src Source, a *Analyzer[V]) V {
	version := src.Version()
	k := cacheKey{logID: src.ID(), name: a.name, version: version}

	c.mu.Lock()
	if s, ok := c.slots[k]; ok {
		c.mu.Unlock()
		<-s.done
		metrics.RecordAnalyzerCacheHit()
		return s.value.(V)
	}
	s := &slot{done: make(chan struct{})}
	c.slots[k] = s
	c.mu.Unlock()
	metrics.RecordAnalyzerCacheMiss()

	start := time.Now()
	var out V
	observed := version
	src.View(func(v uint64, events iter.Seq[event.Event]) {
		observed = v
		out = a.fn(events)
	})
	metrics.RecordAnalyzerComputeDuration(float64(time.Since(start).Milliseconds()))

	s.value = out
	close(s.done)

	c.mu.Lock()
	// The log may have moved between the version read and the traversal; the
	// result belongs to the version actually observed, so publish it there
	// too and drop entries for superseded versions.
	if observed != version {
		if _, ok := c.slots[cacheKey{logID: k.logID, name: k.name, version: observed}]; !ok {
			c.slots[cacheKey{logID: k.logID, name: k.name, version: observed}] = s
		}
	}
	for existing := range c.slots {
		if existing.logID == k.logID && existing.name == k.name && existing.version < observed {
			delete(c.slots, existing)
		}
	}
	c.mu.Unlock()
	return out
}
