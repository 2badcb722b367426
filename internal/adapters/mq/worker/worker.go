// Package worker publishes queued reports to every configured sink.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/matchrank/internal/adapters/mq/queue"
	"github.com/okian/matchrank/internal/domain/types"
	"github.com/okian/matchrank/pkg/logger"
	"github.com/okian/matchrank/pkg/metrics"
)

const defaultWorkerCount = 2

// Publisher accepts one built report.
type Publisher interface {
	Publish(ctx context.Context, r types.Report) error
}

// Sink is a named publisher.
type Sink struct {
	Name      string
	Publisher Publisher
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker publishes jobs until its queue is drained.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker after its current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue Queue
	sinks []Sink
	name  string

	published atomic.Int64
	failed    atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, sinks []Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		sinks:    sinks,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("publisher"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(logger.WithRunID(ctx, j.RunID), j); err != nil {
				w.logger.Error(ctx, "publish failed", logger.String("report", j.Report.Name), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Published returns the number of successful sink writes.
func (w *InMemoryWorker) Published() int64 { return w.published.Load() }

// Failed returns the number of failed sink writes.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

// process publishes j to every sink. A failing sink does not stop the others.
func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	var errs []error
	for _, s := range w.sinks {
		start := time.Now()
		err := s.Publisher.Publish(ctx, j.Report)
		metrics.RecordPublishLatency(s.Name, float64(time.Since(start).Milliseconds()))
		if err != nil {
			w.failed.Add(1)
			metrics.RecordPublishError(s.Name)
			metrics.RecordErrorByComponent("publisher", s.Name)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		w.published.Add(1)
		metrics.RecordPublished(s.Name)
		w.logger.Debug(ctx, "report published",
			logger.String("report", j.Report.Name),
			logger.String("sink", s.Name),
		)
	}
	return errors.Join(errs...)
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker pool. workerCount < 1 uses a small default.
func NewPool(workerCount int, q Queue, sinks []Sink) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("publisher-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, sinks, WithName("worker-"+strconv.Itoa(i)))
	}
	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Drain closes the queue and waits until every queued job is published or
// ctx ends.
func (p *Pool) Drain(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-ctx.Done():
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			return fmt.Errorf("drain: %w", ctx.Err())
		}
	}
	return nil
}

// Shutdown stops every worker without waiting for the queue to drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	var errs []error
	for _, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stats returns successful and failed sink writes across workers.
func (p *Pool) Stats() (published, failed int64) {
	for _, w := range p.workers {
		published += w.Published()
		failed += w.Failed()
	}
	return published, failed
}
