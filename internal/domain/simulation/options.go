package simulation

import (
	"time"

	"github.com/okian/echochamber/internal/domain/scoring"
)

// Defaults for the simulated population.
const (
	DefaultPersonaCount   = 6
	DefaultDrifterTTL     = 2 * time.Minute
	DefaultExposureWindow = 3
	DefaultCandidatePool  = 50
	DefaultSeedMin        = 0.5
	DefaultSeedSpread     = 1.0
)

// Option applies a configuration option to the Driver.
type Option func(*Driver)

// WithRand sets the random source.
func WithRand(r RandSource) Option {
	return func(d *Driver) {
		if r != nil {
			d.rand = r
		}
	}
}

// WithPolicy sets how drifters choose what to react to.
func WithPolicy(p scoring.PickPolicy) Option {
	return func(d *Driver) {
		if p != nil {
			d.policy = p
		}
	}
}

// WithPersonaCount sets how many personas Bootstrap creates.
func WithPersonaCount(n int) Option {
	return func(d *Driver) {
		if n >= 0 {
			d.personaCount = n
		}
	}
}

// WithDrifterTTL sets the lifetime of spawned drifters.
func WithDrifterTTL(ttl time.Duration) Option {
	return func(d *Driver) {
		if ttl > 0 {
			d.drifterTTL = ttl
		}
	}
}

// WithExposureWindow sets how many top-ranked items count as shown per step.
func WithExposureWindow(n int) Option {
	return func(d *Driver) {
		if n >= 0 {
			d.exposureWindow = n
		}
	}
}

// WithCandidatePool sets how many recent items are ranked per step.
func WithCandidatePool(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.candidatePool = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

// WithIDs replaces the id generator used for drifters, items and events.
func WithIDs(next func() string) Option {
	return func(d *Driver) {
		if next != nil {
			d.newID = next
		}
	}
}
