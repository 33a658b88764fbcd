package scoring

import (
	"errors"
	"fmt"
)

// ErrUnknownPolicy is returned for an unrecognized pick policy name.
var ErrUnknownPolicy = errors.New("unknown pick policy")

// Policy names.
const (
	PolicyTop      = "top"
	PolicyWeighted = "weighted"
)

// Rand is the random source a weighted pick draws from.
type Rand interface {
	// Float64 returns a value in [0,1).
	Float64() float64
}

// PickPolicy chooses one item out of a ranking.
type PickPolicy interface {
	Pick(ranked []Scored) (Scored, bool)
	Name() string
}

// PickTop always picks the highest-affinity item.
type PickTop struct{}

func (PickTop) Pick(ranked []Scored) (Scored, bool) {
	if len(ranked) == 0 {
		return Scored{}, false
	}
	return ranked[0], true
}

func (PickTop) Name() string { return PolicyTop }

// PickWeighted picks an item with probability proportional to its affinity.
type PickWeighted struct {
	Rand Rand
}

func (p PickWeighted) Pick(ranked []Scored) (Scored, bool) {
	if len(ranked) == 0 {
		return Scored{}, false
	}
	var total float64
	for _, r := range ranked {
		total += r.Affinity
	}
	if total <= 0 {
		return ranked[0], true
	}
	x := p.Rand.Float64() * total
	for _, r := range ranked {
		x -= r.Affinity
		if x < 0 {
			return r, true
		}
	}
	return ranked[len(ranked)-1], true
}

func (PickWeighted) Name() string { return PolicyWeighted }

// ParsePolicy returns the policy called name. r is used by the weighted policy.
func ParsePolicy(name string, r Rand) (PickPolicy, error) {
	switch name {
	case "", PolicyTop:
		return PickTop{}, nil
	case PolicyWeighted:
		if r == nil {
			return nil, fmt.Errorf("%w: %s needs a random source", ErrUnknownPolicy, name)
		}
		return PickWeighted{Rand: r}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
	}
}
