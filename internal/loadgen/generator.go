package loadgen

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/echochamber/internal/domain/simulation"
)

// PlannedActor is a synthetic human and the topic it leans towards.
type PlannedActor struct {
	ID   string `json:"id"`
	Home string `json:"home"`
}

// PlannedItem records who authored an item and under which topic.
type PlannedItem struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Topic  string `json:"topic"`
}

// Plan is the full workload of one run.
type Plan struct {
	Actors    []PlannedActor `json:"actors"`
	Items     []PlannedItem  `json:"items"`
	Authored  []Event        `json:"authored"`
	Reactions []Event        `json:"reactions"`
}

// Home returns the home topic of every planned actor keyed by id.
func (p Plan) Home() map[string]string {
	out := make(map[string]string, len(p.Actors))
	for _, a := range p.Actors {
		out[a.ID] = a.Home
	}
	return out
}

// NewPlan builds the workload for cfg. Actor homes rotate through cfg.Topics.
// Each reaction picks an item from the actor's home topic with probability
// cfg.Bias and a uniformly random item otherwise, skipping the actor's own
// items whenever another candidate exists.
func NewPlan(cfg *Config, rnd simulation.RandSource) Plan {
	now := time.Now().UTC().Format(time.RFC3339)
	var p Plan

	for i := 0; i < cfg.Actors; i++ {
		p.Actors = append(p.Actors, PlannedActor{
			ID:   "load-" + uuid.NewString(),
			Home: cfg.Topics[i%len(cfg.Topics)],
		})
	}

	byTopic := make(map[string][]int)
	for _, a := range p.Actors {
		for j := 0; j < cfg.PostsPerActor; j++ {
			item := PlannedItem{ID: uuid.NewString(), Author: a.ID, Topic: a.Home}
			byTopic[item.Topic] = append(byTopic[item.Topic], len(p.Items))
			p.Items = append(p.Items, item)
			p.Authored = append(p.Authored, Event{
				EventID: uuid.NewString(),
				Kind:    "authored",
				ActorID: a.ID,
				Item:    &Item{ID: item.ID, Topics: []string{item.Topic}},
				TS:      now,
			})
		}
	}

	all := make([]int, len(p.Items))
	for i := range all {
		all[i] = i
	}

	for _, a := range p.Actors {
		for j := 0; j < cfg.ReactionsPerActor; j++ {
			pool := all
			if rnd.Float64() < cfg.Bias {
				pool = byTopic[a.Home]
			}
			item := p.Items[pickOther(pool, p.Items, a.ID, rnd)]
			p.Reactions = append(p.Reactions, Event{
				EventID: uuid.NewString(),
				Kind:    "reaction",
				ActorID: a.ID,
				ItemID:  item.ID,
				TS:      now,
			})
		}
	}
	return p
}

// pickOther draws an index from pool, preferring items not authored by actor.
func pickOther(pool []int, items []PlannedItem, actor string, rnd simulation.RandSource) int {
	others := make([]int, 0, len(pool))
	for _, idx := range pool {
		if items[idx].Author != actor {
			others = append(others, idx)
		}
	}
	if len(others) == 0 {
		others = pool
	}
	return others[rnd.Intn(len(others))]
}
