package ingest

import "errors"

// Sentinel kinds for dropped events. Callers treat them as drops, not failures.
var (
	ErrUnknownActor = errors.New("unknown actor")
	ErrUnknownItem  = errors.New("unknown content item")
	ErrInvalidEvent = errors.New("invalid event")
	ErrItemConflict = errors.New("content item id taken by another author")
)

// Dropped reports whether err means the event was dropped by design.
func Dropped(err error) bool {
	return errors.Is(err, ErrUnknownActor) || errors.Is(err, ErrUnknownItem) || errors.Is(err, ErrInvalidEvent) ||
		errors.Is(err, ErrItemConflict)
}
