// Package worker drains the relay queue into the service.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/raidstats/internal/domain/model"
	"github.com/okian/raidstats/pkg/logger"
	"github.com/okian/raidstats/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// ErrShutdownTimeout reports a pool that stopped before its queue drained.
var ErrShutdownTimeout = errors.New("worker pool shutdown timed out")

// Event abstracts what workers read off the queue.
type Event = model.SourceEvent

// Ingester persists one relay event.
type Ingester interface {
	Ingest(ctx context.Context, e model.SourceEvent) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// Worker processes events until stopped.
type Worker interface {
	// Run starts the worker loop until the queue closes or Shutdown is called.
	Run(ctx context.Context)

	// Shutdown waits for the loop to exit.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for processing relay events.
type InMemoryWorker struct {
	queue    Queue
	ingester Ingester
	name     string
	timeout  time.Duration

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, ingester Ingester, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		ingester: ingester,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop. Cancelling ctx does not stop it: events already
// accepted into the queue are drained until the queue closes, and ingest calls
// run detached from ctx cancellation. Shutdown stops the loop early.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	ctx = context.WithoutCancel(ctx)
	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-w.shutdown:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			w.processEvent(ctx, event)
		}
	}
}

// Shutdown signals the loop and waits for it.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stop()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) stop() {
	w.shutdownOnce.Do(func() { close(w.shutdown) })
}

// processEvent ingests one event. Failures are logged and counted; the
// ingester is responsible for making the id retryable.
func (w *InMemoryWorker) processEvent(ctx context.Context, event Event) { //nolint:gocritic // hugeParam: Event is passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	if err := w.ingester.Ingest(ctx, event); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByType("ingest_error", "high")
		w.logger.Error(ctx, "ingest failed for relay event",
			logger.String("eventID", event.ID),
			logger.String("source", string(event.Source)),
			logger.Error(err),
		)
	}
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers  []*InMemoryWorker
	queue    Queue
	ingester Ingester
	logger   logger.Logger
}

// NewPool creates a new worker pool. A non-positive count uses one worker per
// CPU. opts apply to every worker.
func NewPool(workerCount int, queue Queue, ingester Ingester, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	p := &Pool{
		workers:  make([]*InMemoryWorker, workerCount),
		queue:    queue,
		ingester: ingester,
		logger:   logger.Get().Named("worker_pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker_" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(queue, ingester, wopts...)
	}
	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	metrics.UpdateWorkerCount(len(p.workers))
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Shutdown closes the queue so workers drain what is left, then waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			w.stop()
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		left := 0
		if l, ok := p.queue.(interface{ Len(context.Context) int }); ok {
			left = l.Len(ctx)
		}
		p.logger.Error(ctx, "relay events left unprocessed at shutdown", logger.Int("pending", left))
		return fmt.Errorf("%w: %d events pending", ErrShutdownTimeout, left)
	}
	return nil
}
