package attraction

import "time"

// DefaultFloor is the weight at or under which an edge is removed.
const DefaultFloor = 0.05

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithFloor sets the removal floor. Negative values are ignored.
func WithFloor(floor float64) Option {
	return func(s *Store) {
		if floor >= 0 {
			s.floor = floor
		}
	}
}

// WithClock replaces time.Now for edge timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}
