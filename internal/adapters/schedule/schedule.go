// Package schedule runs named periodic tasks on tickers tied to one context
// and one stop signal.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/echochamber/pkg/logger"
	"github.com/okian/echochamber/pkg/metrics"
)

// Func is the body of a periodic task.
type Func func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration
	fn       Func
}

// Scheduler runs tasks until its context is cancelled or Stop is called.
// A failing or panicking cycle is logged and the next cycle runs as usual.
type Scheduler struct {
	mu      sync.Mutex
	tasks   []task
	started bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	logger logger.Logger
}

// New creates an empty Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		stop:   make(chan struct{}),
		logger: logger.Get().Named("schedule"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a task. Tasks with a non-positive interval are skipped.
// Adding after Start has no effect.
func (s *Scheduler) Add(name string, interval time.Duration, fn Func) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || interval <= 0 || fn == nil {
		return
	}
	s.tasks = append(s.tasks, task{name: name, interval: interval, fn: fn})
}

// Start launches one goroutine per task.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.started = true
	for _, t := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, t)
	}
	s.logger.Info(ctx, "scheduler started", logger.Int("tasks", len(s.tasks)))
}

// Stop signals every task and waits for in-flight cycles to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, t task) {
	defer s.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.runOnce(ctx, t)
		}
	}
}

// runOnce runs a single cycle and reports whether it succeeded.
func (s *Scheduler) runOnce(ctx context.Context, t task) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordErrorByComponent("schedule", t.name+"_panic")
			s.logger.Error(ctx, "periodic task panicked",
				logger.String("task", t.name),
				logger.Error(fmt.Errorf("panic: %v", r)),
			)
			ok = false
		}
	}()

	if err := t.fn(ctx); err != nil {
		metrics.RecordErrorByComponent("schedule", t.name)
		s.logger.Warn(ctx, "periodic task failed",
			logger.String("task", t.name),
			logger.Error(err),
		)
		return false
	}
	return true
}
