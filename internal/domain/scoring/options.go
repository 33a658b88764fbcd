package scoring

// Reference constants of the ranking formula.
const (
	DefaultSaturation = 3.0
	DefaultFloor      = 0.05
	DefaultBase       = 1.0

	matchBase  = 0.6
	matchScale = 0.4
	echoBonus  = 0.15
)

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithSaturation sets T, the total topic weight at which echo strength reaches 1.
func WithSaturation(t float64) Option {
	return func(s *Scorer) {
		if t > 0 {
			s.saturation = t
		}
	}
}

// WithFloor sets the minimum affinity of non-matching content.
func WithFloor(floor float64) Option {
	return func(s *Scorer) {
		if floor > 0 && floor <= 1 {
			s.floor = floor
		}
	}
}

// WithBase sets the affinity of non-matching content before echo suppression.
func WithBase(base float64) Option {
	return func(s *Scorer) {
		if base > 0 && base <= 1 {
			s.base = base
		}
	}
}

// WithThreshold drops candidates whose affinity falls under threshold.
// Zero, the default, keeps everything.
func WithThreshold(threshold float64) Option {
	return func(s *Scorer) {
		if threshold >= 0 {
			s.threshold = threshold
		}
	}
}

// WithLimit caps the number of ranked results. Zero means no cap.
func WithLimit(limit int) Option {
	return func(s *Scorer) {
		if limit >= 0 {
			s.limit = limit
		}
	}
}
