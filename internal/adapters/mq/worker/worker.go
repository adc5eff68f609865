// Package worker folds queued tracking fixes into the rank store.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/regatta/internal/domain/model"
	"github.com/okian/regatta/pkg/logger"
	"github.com/okian/regatta/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	workerShutdownTimeout   = 5 * time.Second
)

// Fix is what workers read off the queue.
type Fix = model.Fix

// Updater records a fix in the rank store.
type Updater interface {
	Record(ctx context.Context, f Fix) error
}

// Queue defines how workers receive fixes.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Fix
}

// Worker processes fixes until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing fixes.
type InMemoryWorker struct {
	queue   Queue
	updater Updater
	name    string

	shutdown chan struct{}
	stop     sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, updater Updater, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		updater:  updater,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	fixes := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case f, ok := <-fixes:
			if !ok {
				return
			}
			if err := w.processFix(ctx, f); err != nil {
				w.logger.Error(ctx, "error processing fix", logger.Error(err))
			}
		}
	}
}

// signalStop closes the shutdown channel once; safe to call from the worker
// and from its pool.
func (w *InMemoryWorker) signalStop() {
	w.stop.Do(func() { close(w.shutdown) })
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.signalStop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processFix records a single fix.
func (w *InMemoryWorker) processFix(ctx context.Context, f Fix) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.updater.Record(ctx, f); err != nil {
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "rank store update failed",
			logger.String("fixID", f.FixID),
			logger.Error(err),
		)
		return fmt.Errorf("record fix %s: %w", f.FixID, err)
	}
	metrics.RecordFixProcessed()
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers []*InMemoryWorker

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers over one queue and updater.
func NewPool(workerCount int, queue Queue, updater Updater) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range pool.workers {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			updater,
			WithName("worker-"+strconv.Itoa(i)),
		)
	}
	metrics.UpdateWorkerActive(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Stop gracefully stops all workers, waiting up to the shutdown timeout for
// each.
func (p *Pool) Stop() {
	for _, w := range p.workers {
		w.signalStop()
	}
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
	metrics.UpdateWorkerActive(0)
}
