// Package bridge moves attraction edges between the in-memory store and
// durable storage: a debounced flusher writes dirty edges out, Rehydrate
// reads everything back at start, and a change listener merges writes made
// by other instances.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/echochamber/internal/domain/model"
	"github.com/okian/echochamber/pkg/logger"
	"github.com/okian/echochamber/pkg/metrics"
)

// DirtySource is the flush side of the attraction store.
type DirtySource interface {
	Dirty() <-chan struct{}
	DrainDirty() []model.Edge
	Requeue(batch []model.Edge)
	DirtyCount() int
}

// Writer persists edge batches.
type Writer interface {
	UpsertBatch(ctx context.Context, writer string, batch []model.Edge) error
}

// Flusher writes dirty edges to storage at most once per interval. The first
// dirty mark after a flush arms the timer; marks while it is armed coalesce
// into the same batch. A failed batch is requeued and the timer re-armed.
type Flusher struct {
	source DirtySource
	repo   Writer
	writer string

	interval     time.Duration
	finalTimeout time.Duration

	mu       sync.Mutex // serializes flushes
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewFlusher creates a Flusher writing as writer, the instance id stamped on
// every row.
func NewFlusher(source DirtySource, repo Writer, writer string, opts ...FlusherOption) *Flusher {
	f := &Flusher{
		source:       source,
		repo:         repo,
		writer:       writer,
		interval:     DefaultFlushInterval,
		finalTimeout: DefaultFinalFlushTimeout,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
		logger:       logger.Get().Named("flusher"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run drives the debounce loop until ctx is cancelled or Stop is called,
// then performs one final flush.
func (f *Flusher) Run(ctx context.Context) {
	defer close(f.done)

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	arm := func() {
		if timerC != nil {
			return
		}
		timer = time.NewTimer(f.interval)
		timerC = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			f.finalFlush(ctx)
			return
		case <-f.stop:
			f.finalFlush(ctx)
			return
		case <-f.source.Dirty():
			arm()
		case <-timerC:
			timerC = nil
			if err := f.Flush(ctx); err != nil {
				f.logger.Warn(ctx, "flush failed, will retry", logger.Error(err))
				arm()
			}
		}
	}
}

// Flush drains every dirty edge and writes it as one batch. On failure the
// batch is requeued.
func (f *Flusher) Flush(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	batch := f.source.DrainDirty()
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	if err := f.repo.UpsertBatch(ctx, f.writer, batch); err != nil {
		f.source.Requeue(batch)
		metrics.RecordFlushError()
		metrics.RecordErrorByComponent("flusher", "upsert")
		metrics.UpdateDirtyEdges(f.source.DirtyCount())
		return fmt.Errorf("flush %d edges: %w", len(batch), err)
	}

	metrics.RecordFlush(len(batch), float64(time.Since(start).Milliseconds()))
	metrics.UpdateDirtyEdges(f.source.DirtyCount())
	f.logger.Debug(ctx, "flushed edges", logger.Int("count", len(batch)))
	return nil
}

// Stop ends the loop and waits for the final flush.
func (f *Flusher) Stop(ctx context.Context) error {
	f.stopOnce.Do(func() { close(f.stop) })
	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flusher stop: %w", ctx.Err())
	}
}

func (f *Flusher) finalFlush(ctx context.Context) {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.finalTimeout)
	defer cancel()

	if err := f.Flush(fctx); err != nil {
		f.logger.Error(fctx, "final flush failed", logger.Error(err))
		return
	}
	f.logger.Info(fctx, "final flush complete")
}
