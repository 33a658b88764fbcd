package cluster

// DefaultDominanceRatio is R: the top topic must reach R times the second.
const DefaultDominanceRatio = 2.0

// Option applies a configuration option to the Assigner.
type Option func(*Assigner)

// WithDominanceRatio sets R. Values not above 1 are ignored.
func WithDominanceRatio(r float64) Option {
	return func(a *Assigner) {
		if r > 1 {
			a.ratio = r
		}
	}
}
