package model

import "time"

// ActorKind classifies participants.
type ActorKind string

const (
	ActorHuman   ActorKind = "human"
	ActorPersona ActorKind = "persona"
	ActorDrifter ActorKind = "drifter"
)

// Valid reports whether k is a known actor kind.
func (k ActorKind) Valid() bool {
	switch k {
	case ActorHuman, ActorPersona, ActorDrifter:
		return true
	}
	return false
}

// Actor is any participant in the graph.
type Actor struct {
	ID   string    `json:"id"`
	Kind ActorKind `json:"kind"`
	// PassiveDrift makes exposure events move this actor's weights.
	PassiveDrift bool `json:"passive_drift"`
	// Durable actors have their edges flushed to storage.
	Durable   bool      `json:"durable"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Ephemeral reports whether the actor has an expiry.
func (a Actor) Ephemeral() bool { return !a.ExpiresAt.IsZero() }

// Expired reports whether an ephemeral actor has passed its expiry at now.
func (a Actor) Expired(now time.Time) bool {
	return a.Ephemeral() && !now.Before(a.ExpiresAt)
}
