package model

import (
	"strings"
	"time"
)

// Target prefixes for edge targets.
const (
	TopicPrefix = "topic:"
	ActorPrefix = "actor:"
)

// TopicTarget returns the edge target for topic t.
func TopicTarget(t string) string { return TopicPrefix + t }

// ActorTarget returns the edge target for actor id.
func ActorTarget(id string) string { return ActorPrefix + id }

// TopicOf returns the topic behind a target and whether target is a topic target.
func TopicOf(target string) (string, bool) {
	if !strings.HasPrefix(target, TopicPrefix) {
		return "", false
	}
	return strings.TrimPrefix(target, TopicPrefix), true
}

// EdgeKey identifies an edge.
type EdgeKey struct {
	Source string
	Target string
}

// Edge is one attraction edge, also the durable row shape.
type Edge struct {
	Source string
	Target string
	Weight float64
	// Passive is the part of Weight contributed by exposure.
	Passive   float64
	UpdatedAt time.Time
	// Deleted marks a tombstone: the row must be removed from storage.
	Deleted bool
}

// Key returns the edge identity.
func (e Edge) Key() EdgeKey { return EdgeKey{Source: e.Source, Target: e.Target} }
