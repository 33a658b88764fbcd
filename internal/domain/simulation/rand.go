package simulation

import (
	"math/rand"
	"sync"
)

// RandSource is the randomness the driver draws from. Tests pass a seeded
// source to get reproducible runs.
type RandSource interface {
	Float64() float64
	Intn(n int) int
}

// lockedRand is a seeded *rand.Rand safe for use from several tickers.
type lockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRand returns a RandSource seeded with seed.
func NewRand(seed int64) RandSource {
	return &lockedRand{rng: rand.New(rand.NewSource(seed))} //nolint:gosec // simulation, not security
}

func (r *lockedRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

func (r *lockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}
