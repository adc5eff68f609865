// Package dedupe defines the interface for idempotency tracking.
//
// Ingestion is idempotent: replication or UI retries may redeliver the same
// event or fix, and the deduper is the first gate they hit.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen ids to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it if
	// not. Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an id, allowing a retry after a failed hand-off
	// (e.g. queue backpressure after the id was recorded).
	Unrecord(ctx context.Context, id string)

	// Size returns the number of ids currently tracked.
	Size() int64
}

// inMemoryDeduper implements Deduper with a bounded map plus a circular
// buffer of insertion order: when full, the oldest recorded id is evicted
// first. A maxSize of zero or less disables eviction.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]int // id -> its live ring slot, -1 when eviction is off
	ring    []string
	head    int // oldest slot
	tail    int // next write slot
	used    int // slots in use, stale ones included
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]int)
	if d.maxSize > 0 {
		d.ring = make([]string, d.maxSize)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[id]; exists {
		return true
	}
	slot := -1
	if d.maxSize > 0 {
		if d.used >= d.maxSize {
			d.evictOldestLocked()
		}
		slot = d.tail
		d.ring[d.tail] = id
		d.tail = (d.tail + 1) % d.maxSize
		d.used++
	}
	d.seen[id] = slot
	d.size.Store(int64(len(d.seen)))
	return false
}

// evictOldestLocked pops the oldest ring slot to make room for one insert.
// A slot is stale when its id was unrecorded, or unrecorded and re-recorded
// into a newer slot; stale slots are reclaimed without touching the live id.
func (d *inMemoryDeduper) evictOldestLocked() {
	if d.used == 0 {
		return
	}
	victim := d.ring[d.head]
	if slot, ok := d.seen[victim]; ok && slot == d.head {
		delete(d.seen, victim)
	}
	d.head = (d.head + 1) % d.maxSize
	d.used--
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	d.size.Store(int64(len(d.seen)))
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
