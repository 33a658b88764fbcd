// Package loadgen drives a running echochamber service over HTTP with a
// population of synthetic humans and checks that the feeds and cluster labels
// it serves reflect what those humans did.
package loadgen

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid load config")

// Config holds configuration for a load run.
type Config struct {
	BaseURL           string        // Base URL of the service
	Actors            int           // Number of synthetic humans
	PostsPerActor     int           // Items each human authors
	ReactionsPerActor int           // Reactions each human submits
	Bias              float64       // Probability a reaction targets the actor's home topic
	Topics            []string      // Home topics, assigned round-robin
	Workers           int           // Number of concurrent workers
	Timeout           time.Duration // HTTP request timeout
	SettleDelay       time.Duration // Wait between phases for asynchronous ingestion
	Seed              int64         // Seed of the plan generator
	OutputFile        string        // Optional file receiving the generated plan
	Verbose           bool          // Log each failed request
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url must not be empty", ErrInvalidConfig)
	case c.Actors <= 0:
		return fmt.Errorf("%w: actors must be > 0", ErrInvalidConfig)
	case c.PostsPerActor <= 0:
		return fmt.Errorf("%w: posts per actor must be > 0", ErrInvalidConfig)
	case c.ReactionsPerActor < 0:
		return fmt.Errorf("%w: reactions per actor must be >= 0", ErrInvalidConfig)
	case c.Bias < 0 || c.Bias > 1:
		return fmt.Errorf("%w: bias must be in [0,1], got %v", ErrInvalidConfig, c.Bias)
	case len(c.Topics) == 0:
		return fmt.Errorf("%w: at least one topic is required", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be > 0", ErrInvalidConfig)
	}
	return nil
}

// ActorRequest is the body of POST /actors.
type ActorRequest struct {
	ID     string   `json:"id"`
	Kind   string   `json:"kind"`
	Topics []string `json:"topics,omitempty"`
}

// Item is the authored payload of an event.
type Item struct {
	ID     string   `json:"id"`
	Topics []string `json:"topics"`
}

// Event is the body of POST /events.
type Event struct {
	EventID string `json:"event_id"`
	Kind    string `json:"kind"`
	ActorID string `json:"actor_id"`
	ItemID  string `json:"item_id,omitempty"`
	Item    *Item  `json:"item,omitempty"`
	TS      string `json:"ts"`
}

// AckResponse represents the response from event submission.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	ItemID    string `json:"item_id"`
}

// Stats holds run statistics.
type Stats struct {
	ActorsRegistered int
	EventsSubmitted  int
	EventsAccepted   int
	EventsDuplicate  int
	EventsFailed     int
	FeedsRetrieved   int
	LabelsRetrieved  int
	Aligned          int // actors labeled with their home topic
	Neutral          int
	HomeFeedShare    float64 // share of feed items carrying the reader's home topic
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
