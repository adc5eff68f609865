// Package queue defines the contract for enqueuing and consuming tracking
// fixes.
//
// Fixes arrive in bursts while boats are on the course; the bounded
// in-memory queue absorbs them and reports backpressure to the ingestion
// boundary instead of blocking it.
package queue

import (
	"context"
	"sync"

	"github.com/okian/regatta/internal/domain/model"
	"github.com/okian/regatta/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 100000
)

// Fix is the payload type flowing through the queue.
type Fix = model.Fix

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a fix to the queue.
	// Returns false if the queue is full and the fix was not enqueued.
	Enqueue(ctx context.Context, f Fix) bool

	// Dequeue returns a channel receiving fixes as they become available.
	// The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Fix

	// Len returns the current number of queued fixes.
	Len(ctx context.Context) int

	// Close shuts down the queue; no new fixes can be enqueued afterwards.
	Close() error

	// IsClosed reports whether the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	fixes    chan Fix
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.fixes = make(chan Fix, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a fix to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, f Fix) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueError()
		return false
	}

	select {
	case q.fixes <- f:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.fixes))
		return true
	case <-ctx.Done():
		metrics.RecordQueueError()
		return false
	default:
		metrics.RecordQueueError()
		return false // queue is full
	}
}

// Dequeue returns a channel that will receive fixes as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Fix {
	out := make(chan Fix)
	go func() {
		defer close(out)
		for f := range q.fixes {
			select {
			case out <- f:
				metrics.RecordQueueDequeue()
				metrics.UpdateQueueSize(len(q.fixes))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued fixes.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.fixes)
	metrics.UpdateQueueSize(size)
	return size
}

// Close shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.fixes)
	q.closed = true
	return nil
}

// IsClosed reports whether the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
