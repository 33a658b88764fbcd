// Package types holds the read shapes the service returns to its adapters.
package types

import "time"

// FeedEntry is one ranked content item.
type FeedEntry struct {
	ItemID    string    `json:"item_id"`
	AuthorID  string    `json:"author_id"`
	Topics    []string  `json:"topics"`
	Affinity  float64   `json:"affinity"`
	CreatedAt time.Time `json:"created_at"`
}

// Feed is a ranked feed for one actor.
type Feed struct {
	ActorID      string      `json:"actor_id"`
	EchoStrength float64     `json:"echo_strength"`
	Items        []FeedEntry `json:"items"`
}

// ClusterLabel is the current label of one actor.
type ClusterLabel struct {
	ActorID string `json:"actor_id"`
	Cluster string `json:"cluster"`
}

// ActorSnapshot exposes an actor's edges for inspection.
type ActorSnapshot struct {
	ActorID     string             `json:"actor_id"`
	Weights     map[string]float64 `json:"weights"`
	Affirmative map[string]float64 `json:"affirmative"`
	Cluster     string             `json:"cluster"`
}
