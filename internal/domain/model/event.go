// Package model contains domain models passed between layers.
package model

import "time"

// EventKind enumerates the interaction events the ingestor understands.
type EventKind string

const (
	// EventReaction is an affirmative reaction to a content item.
	EventReaction EventKind = "reaction"
	// EventExposure is an item shown in a feed without a reaction.
	EventExposure EventKind = "exposure"
	// EventAuthored is a newly authored content item.
	EventAuthored EventKind = "authored"
)

// Valid reports whether k is a known event kind.
func (k EventKind) Valid() bool {
	switch k {
	case EventReaction, EventExposure, EventAuthored:
		return true
	}
	return false
}

// Event is one interaction flowing through the ingestion queue.
type Event struct {
	EventID string    // unique id for idempotency
	Kind    EventKind // reaction, exposure or authored
	ActorID string    // the reacting, exposed or authoring actor
	ItemID  string    // referenced content item
	// Retract turns a reaction into an un-reaction.
	Retract bool
	// Item carries the authored content for EventAuthored.
	Item *ContentItem
	TS   time.Time
}

// ContentItem is a piece of content as seen by ranking and ingestion.
type ContentItem struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Topics    []string  `json:"topics"`
	CreatedAt time.Time `json:"created_at"`
}
