package bridge

import (
	"time"

	"github.com/okian/echochamber/pkg/logger"
)

// Defaults for the flusher and the change listener.
const (
	DefaultFlushInterval     = 2 * time.Second
	DefaultFinalFlushTimeout = 10 * time.Second
	DefaultChangeBatch       = 1000
	DefaultChangeRetention   = 100000
)

// FlusherOption applies a configuration option to the Flusher.
type FlusherOption func(*Flusher)

// WithFlushInterval sets the debounce window between the first dirty mark and the flush.
func WithFlushInterval(d time.Duration) FlusherOption {
	return func(f *Flusher) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithFinalFlushTimeout bounds the flush performed on shutdown.
func WithFinalFlushTimeout(d time.Duration) FlusherOption {
	return func(f *Flusher) {
		if d > 0 {
			f.finalTimeout = d
		}
	}
}

// WithFlusherLogger sets a custom logger.
func WithFlusherLogger(l logger.Logger) FlusherOption {
	return func(f *Flusher) {
		if l != nil {
			f.logger = l
		}
	}
}

// ListenerOption applies a configuration option to the ChangeListener.
type ListenerOption func(*ChangeListener)

// WithChangeBatch caps how many changes one poll reads.
func WithChangeBatch(n int) ListenerOption {
	return func(l *ChangeListener) {
		if n > 0 {
			l.batch = n
		}
	}
}

// WithChangeRetention sets how many change records stay behind the cursor
// before they are pruned. Zero disables pruning.
func WithChangeRetention(n int64) ListenerOption {
	return func(l *ChangeListener) {
		if n >= 0 {
			l.retention = n
		}
	}
}

// WithListenerLogger sets a custom logger.
func WithListenerLogger(lg logger.Logger) ListenerOption {
	return func(l *ChangeListener) {
		if lg != nil {
			l.logger = lg
		}
	}
}
