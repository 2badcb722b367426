package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/matchrank/internal/adapters/mq/queue"
	worker "github.com/okian/matchrank/internal/adapters/mq/worker"
	"github.com/okian/matchrank/internal/domain/types"
	logging "github.com/okian/matchrank/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockPublisher struct {
	mu    sync.Mutex
	names []string
	runs  []string
	err   error
}

func (m *mockPublisher) Publish(ctx context.Context, r types.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.names = append(m.names, r.Name)
	if id, ok := logging.RunID(ctx); ok {
		m.runs = append(m.runs, id)
	}
	return nil
}

func (m *mockPublisher) published() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names...)
}

func enqueue(q *queue.InMemoryQueue, names ...string) {
	for _, n := range names {
		q.Enqueue(context.Background(), queue.Job{RunID: "run-1", Report: types.Report{Name: n}})
	}
}

func TestWorkerPool(t *testing.T) {
	convey.Convey("Given a worker pool with two sinks", t, func() {
		_ = logging.Init()

		q := queue.NewInMemoryQueue(queue.WithCapacity(10))
		good := &mockPublisher{}
		bad := &mockPublisher{err: errors.New("down")}
		pool := worker.NewPool(2, q, []worker.Sink{
			{Name: "memory", Publisher: good},
			{Name: "broken", Publisher: bad},
		})

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When reports are queued and the pool drains", func() {
			enqueue(q, "elo", "glicko", "winrate")

			drainCtx, drainCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer drainCancel()
			err := pool.Drain(drainCtx)

			convey.Convey("Then every report reaches the healthy sink", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(good.published(), convey.ShouldHaveLength, 3)
				convey.So(good.published(), convey.ShouldContain, "glicko")
			})

			convey.Convey("And the run id travels with the context", func() {
				convey.So(good.runs, convey.ShouldResemble, []string{"run-1", "run-1", "run-1"})
			})

			convey.Convey("And the failing sink is counted without blocking the others", func() {
				published, failed := pool.Stats()
				convey.So(published, convey.ShouldEqual, 3)
				convey.So(failed, convey.ShouldEqual, 3)
			})

			convey.Convey("And the queue no longer accepts jobs", func() {
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down without draining", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})
}

func TestWorkerPoolDefaults(t *testing.T) {
	convey.Convey("Given a pool created with a non-positive worker count", t, func() {
		_ = logging.Init()
		pool := worker.NewPool(0, queue.NewInMemoryQueue(), nil)

		convey.Convey("Then it is created with the default workers", func() {
			convey.So(pool, convey.ShouldNotBeNil)
		})

		convey.Convey("When draining a pool that never started", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			convey.Convey("Then the deadline is reported", func() {
				convey.So(errors.Is(pool.Drain(ctx), context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})
	})
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a single named worker", t, func() {
		_ = logging.Init()
		q := queue.NewInMemoryQueue()
		pub := &mockPublisher{}
		w := worker.NewInMemoryWorker(q, []worker.Sink{{Name: "memory", Publisher: pub}},
			worker.WithName("solo"), worker.WithLogger(logging.Get()))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			w.Run(ctx)
			close(done)
		}()

		convey.Convey("When a job arrives and the context is cancelled", func() {
			enqueue(q, "elo")
			deadline := time.Now().Add(time.Second)
			for w.Published() == 0 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			cancel()
			<-done

			convey.Convey("Then the job was published and the loop exited", func() {
				convey.So(w.Published(), convey.ShouldEqual, 1)
				convey.So(w.Failed(), convey.ShouldEqual, 0)
			})
		})
	})
}
