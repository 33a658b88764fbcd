package service

import "errors"

var (
	// ErrNotStarted is returned by operations called before Start or after Stop.
	ErrNotStarted = errors.New("service not started")
	// ErrInvalidEvent is returned by Submit for events missing a kind or actor.
	ErrInvalidEvent = errors.New("invalid event")
)
