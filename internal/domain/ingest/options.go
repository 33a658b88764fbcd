package ingest

import "github.com/okian/echochamber/internal/domain/topics"

// Default weights.
const (
	DefaultReactionWeight  = 1.0
	DefaultAuthorAffinity  = 0.5
	DefaultExposureEpsilon = 0.1
	DefaultAuthoredWeight  = 2.0
)

// Option applies a configuration option to the Ingestor.
type Option func(*Ingestor)

// WithReactionWeight sets the per-topic delta of a reaction.
func WithReactionWeight(w float64) Option {
	return func(i *Ingestor) {
		if w > 0 {
			i.reactionWeight = w
		}
	}
}

// WithAuthorAffinity sets the actor->author delta of a reaction. Zero disables it.
func WithAuthorAffinity(w float64) Option {
	return func(i *Ingestor) {
		if w >= 0 {
			i.authorAffinity = w
		}
	}
}

// WithExposureEpsilon sets the per-topic passive delta of an exposure.
func WithExposureEpsilon(eps float64) Option {
	return func(i *Ingestor) {
		if eps > 0 {
			i.exposureEpsilon = eps
		}
	}
}

// WithAuthoredWeight sets the one-time self-reinforcement of an author's topics.
func WithAuthoredWeight(w float64) Option {
	return func(i *Ingestor) {
		if w > 0 {
			i.authoredWeight = w
		}
	}
}

// WithNormalizer replaces the default topic normalizer.
func WithNormalizer(n *topics.Normalizer) Option {
	return func(i *Ingestor) {
		if n != nil {
			i.normalizer = n
		}
	}
}
