package worker_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/regatta/internal/adapters/mq/queue"
	"github.com/okian/regatta/internal/adapters/mq/worker"
	"github.com/okian/regatta/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// recordingUpdater collects every recorded fix, optionally failing on
// demand.
type recordingUpdater struct {
	mu    sync.Mutex
	fixes []worker.Fix
	fail  error
}

func (u *recordingUpdater) Record(_ context.Context, f worker.Fix) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.fail != nil {
		return u.fail
	}
	u.fixes = append(u.fixes, f)
	return nil
}

func (u *recordingUpdater) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.fixes)
}

func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestWorkerProcessing(t *testing.T) {
	convey.Convey("Given a worker over a queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		updater := &recordingUpdater{}
		w := worker.NewInMemoryWorker(q, updater, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		convey.Reset(func() {
			cancel()
			_ = q.Close()
		})

		convey.Convey("When fixes are enqueued", func() {
			go w.Run(ctx)
			for i := 0; i < 5; i++ {
				ok := q.Enqueue(ctx, worker.Fix{FixID: fmt.Sprintf("fix-%d", i), Column: "Q1", CompetitorID: "c1", Rank: i + 1})
				convey.So(ok, convey.ShouldBeTrue)
			}

			convey.Convey("Then every fix reaches the updater", func() {
				convey.So(waitFor(2*time.Second, func() bool { return updater.count() == 5 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the updater fails", func() {
			updater.fail = errors.New("store unavailable")
			go w.Run(ctx)
			convey.So(q.Enqueue(ctx, worker.Fix{FixID: "fix-err", Column: "Q1", CompetitorID: "c1", Rank: 1}), convey.ShouldBeTrue)

			convey.Convey("Then the worker keeps running", func() {
				convey.So(waitFor(time.Second, func() bool { return q.Len(ctx) == 0 }), convey.ShouldBeTrue)
				updater.mu.Lock()
				updater.fail = nil
				updater.mu.Unlock()
				convey.So(q.Enqueue(ctx, worker.Fix{FixID: "fix-ok", Column: "Q1", CompetitorID: "c1", Rank: 1}), convey.ShouldBeTrue)
				convey.So(waitFor(2*time.Second, func() bool { return updater.count() == 1 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the worker is shut down", func() {
			go w.Run(ctx)
			err := w.Shutdown(context.Background())

			convey.Convey("Then it stops cleanly", func() {
				convey.So(err, convey.ShouldBeNil)
			})

			convey.Convey("And a second shutdown is a no-op", func() {
				convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of workers", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(1024))
		updater := &recordingUpdater{}
		pool := worker.NewPool(4, q, updater)

		ctx, cancel := context.WithCancel(context.Background())
		convey.Reset(func() {
			cancel()
			_ = q.Close()
		})

		convey.Convey("When many fixes are enqueued", func() {
			pool.Start(ctx)
			for i := 0; i < 200; i++ {
				convey.So(q.Enqueue(ctx, worker.Fix{FixID: fmt.Sprintf("fix-%d", i), Column: "Q1", CompetitorID: "c1", Rank: 1}), convey.ShouldBeTrue)
			}

			convey.Convey("Then the pool drains the queue exactly once each", func() {
				convey.So(waitFor(5*time.Second, func() bool { return updater.count() == 200 }), convey.ShouldBeTrue)

				convey.Convey("And Stop returns promptly and may be repeated", func() {
					done := make(chan struct{})
					go func() {
						pool.Stop()
						pool.Stop()
						close(done)
					}()
					select {
					case <-done:
					case <-time.After(10 * time.Second):
						convey.So("pool stop timed out", convey.ShouldBeEmpty)
					}
				})
			})
		})
	})
}
