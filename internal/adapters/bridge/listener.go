package bridge

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/okian/echochamber/internal/adapters/repository"
	"github.com/okian/echochamber/internal/domain/model"
	"github.com/okian/echochamber/pkg/logger"
	"github.com/okian/echochamber/pkg/metrics"
)

// ChangeFeed is the read side of the storage change log.
type ChangeFeed interface {
	ChangesSince(ctx context.Context, seq int64, limit int) ([]repository.Change, error)
	PruneChanges(ctx context.Context, seq int64) error
}

// Merger applies a remote edge state by absolute weight.
type Merger interface {
	Merge(e model.Edge)
}

// ChangeListener merges changes written by other instances into the store.
// Poll is meant to run as a periodic task.
type ChangeListener struct {
	feed   ChangeFeed
	merger Merger
	self   string

	batch     int
	retention int64
	cursor    atomic.Int64

	logger logger.Logger
}

// NewChangeListener creates a listener that skips changes written by self.
func NewChangeListener(feed ChangeFeed, merger Merger, self string, opts ...ListenerOption) *ChangeListener {
	l := &ChangeListener{
		feed:      feed,
		merger:    merger,
		self:      self,
		batch:     DefaultChangeBatch,
		retention: DefaultChangeRetention,
		logger:    logger.Get().Named("changefeed"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetCursor positions the listener after seq.
func (l *ChangeListener) SetCursor(seq int64) { l.cursor.Store(seq) }

// Cursor returns the last consumed seq.
func (l *ChangeListener) Cursor() int64 { return l.cursor.Load() }

// Poll reads every pending change, merges the foreign ones and advances the
// cursor. It returns how many changes were merged.
func (l *ChangeListener) Poll(ctx context.Context) (int, error) {
	merged := 0
	for {
		cursor := l.cursor.Load()
		changes, err := l.feed.ChangesSince(ctx, cursor, l.batch)
		if err != nil {
			metrics.RecordChangefeedError()
			return merged, fmt.Errorf("read changes after %d: %w", cursor, err)
		}
		for _, c := range changes {
			if c.Writer != l.self {
				l.merger.Merge(c.Edge)
				merged++
			}
			cursor = c.Seq
		}
		l.cursor.Store(cursor)
		if len(changes) < l.batch {
			break
		}
	}

	if merged > 0 {
		metrics.RecordChangesMerged(merged)
		l.logger.Debug(ctx, "merged remote changes", logger.Int("count", merged))
	}
	l.prune(ctx)
	return merged, nil
}

// Run adapts Poll to a periodic task signature.
func (l *ChangeListener) Run(ctx context.Context) error {
	_, err := l.Poll(ctx)
	return err
}

func (l *ChangeListener) prune(ctx context.Context) {
	if l.retention == 0 {
		return
	}
	below := l.cursor.Load() - l.retention
	if below <= 0 {
		return
	}
	if err := l.feed.PruneChanges(ctx, below); err != nil {
		metrics.RecordChangefeedError()
		l.logger.Warn(ctx, "prune change log failed", logger.Error(err))
	}
}
