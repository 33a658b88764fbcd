// Package worker drains the event queue into the ingestor.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/echochamber/internal/domain/ingest"
	"github.com/okian/echochamber/internal/domain/model"
	"github.com/okian/echochamber/pkg/logger"
	"github.com/okian/echochamber/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Source is where workers receive events from.
type Source interface {
	Dequeue() <-chan model.Event
}

// Processor applies one event.
type Processor interface {
	Ingest(ctx context.Context, ev model.Event) error
}

// Worker runs a receive loop until its source closes or it is stopped.
type Worker struct {
	source    Source
	processor Processor
	name      string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewWorker creates a worker.
func NewWorker(source Source, processor Processor, opts ...Option) *Worker {
	w := &Worker{
		source:    source,
		processor: processor,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes events until ctx is cancelled, Shutdown is called or the
// source channel closes.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.source.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			w.process(ctx, ev)
		}
	}
}

// Shutdown stops the worker and waits for the in-flight event.
func (w *Worker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *Worker) process(ctx context.Context, ev model.Event) { //nolint:gocritic // hugeParam: events travel by value
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	err := w.processor.Ingest(ctx, ev)
	switch {
	case err == nil:
	case ingest.Dropped(err):
		w.logger.Debug(ctx, "event dropped",
			logger.String("event_id", ev.EventID),
			logger.String("kind", string(ev.Kind)),
			logger.Error(err),
		)
	default:
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "ingest")
		w.logger.Error(ctx, "ingest failed",
			logger.String("event_id", ev.EventID),
			logger.Error(err),
		)
	}
}

// Pool runs a fixed set of workers on one source.
type Pool struct {
	workers []*Worker
	source  Source

	wg     sync.WaitGroup
	logger logger.Logger
}

// NewPool creates count workers. count < 1 uses runtime.NumCPU().
func NewPool(count int, source Source, processor Processor) *Pool {
	if count < 1 {
		count = runtime.NumCPU()
	}
	p := &Pool{
		workers: make([]*Worker, count),
		source:  source,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewWorker(source, processor, WithName("worker-"+strconv.Itoa(i)))
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
	metrics.UpdateWorkerActiveCount(len(p.workers))
	p.logger.Info(ctx, "worker pool started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the source when it can be closed, lets the workers drain
// what is buffered and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.source.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	waitCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		metrics.UpdateWorkerActiveCount(0)
		return nil
	case <-waitCtx.Done():
		var errs []error
		for _, w := range p.workers {
			select {
			case <-w.done:
			default:
				errs = append(errs, fmt.Errorf("%s still running", w.name))
			}
		}
		p.logger.Warn(ctx, "worker pool shutdown timed out", logger.Int("stuck", len(errs)))
		return fmt.Errorf("worker pool shutdown: %w", errors.Join(append(errs, waitCtx.Err())...))
	}
}
