// Package scoring ranks content candidates for an actor from its attraction
// snapshot.
package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/okian/echochamber/internal/domain/model"
	"github.com/okian/echochamber/pkg/metrics"
)

// Scored is a ranked candidate.
type Scored struct {
	Item     model.ContentItem `json:"item"`
	Affinity float64           `json:"affinity"`
}

// Scorer ranks candidates. It holds no state beyond its configuration and is
// safe for concurrent use.
type Scorer struct {
	saturation float64
	floor      float64
	base       float64
	threshold  float64
	limit      int
}

// NewScorer creates a Scorer with the reference constants.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		saturation: DefaultSaturation,
		floor:      DefaultFloor,
		base:       DefaultBase,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// topicStats summarizes the topic entries of a snapshot.
type topicStats struct {
	total float64
	max   float64
	n     int
}

func statsOf(snapshot map[string]float64) topicStats {
	var st topicStats
	for target, w := range snapshot {
		if _, ok := model.TopicOf(target); !ok || w <= 0 {
			continue
		}
		st.total += w
		st.max = math.Max(st.max, w)
		st.n++
	}
	return st
}

// EchoStrength returns min(total topic weight / T, 1).
func (s *Scorer) EchoStrength(snapshot map[string]float64) float64 {
	return math.Min(statsOf(snapshot).total/s.saturation, 1)
}

// Rank orders candidates for actor by affinity, highest first. Items authored
// by actor are removed. Ties keep the newer item first, then input order.
func (s *Scorer) Rank(actor string, snapshot map[string]float64, candidates []model.ContentItem) []Scored {
	start := time.Now()
	st := statsOf(snapshot)
	echo := math.Min(st.total/s.saturation, 1)

	out := make([]Scored, 0, len(candidates))
	for _, item := range candidates {
		if item.AuthorID == actor {
			continue
		}
		aff := s.affinity(st, echo, snapshot, item)
		if aff < s.threshold {
			continue
		}
		out = append(out, Scored{Item: item, Affinity: aff})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Affinity != out[j].Affinity {
			return out[i].Affinity > out[j].Affinity
		}
		return out[i].Item.CreatedAt.After(out[j].Item.CreatedAt)
	})
	if s.limit > 0 && len(out) > s.limit {
		out = out[:s.limit]
	}

	metrics.RecordRank(float64(time.Since(start).Milliseconds()), echo)
	return out
}

func (s *Scorer) affinity(st topicStats, echo float64, snapshot map[string]float64, item model.ContentItem) float64 {
	if st.n == 0 {
		return 1
	}

	var raw float64
	for _, t := range item.Topics {
		if w := snapshot[model.TopicTarget(t)]; w > 0 {
			raw += w
		}
	}
	if raw <= 0 {
		return math.Max(s.floor, s.base*(1-echo))
	}

	normalized := raw / (st.max * float64(len(item.Topics)))
	return math.Min(1, matchBase+matchScale*normalized+echoBonus*echo)
}
