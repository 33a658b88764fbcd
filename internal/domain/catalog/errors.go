package catalog

import "errors"

// Sentinel kinds for catalog errors.
var (
	ErrActorNotFound = errors.New("actor not found")
	ErrActorExists   = errors.New("actor already registered")
	ErrItemNotFound  = errors.New("content item not found")
	ErrInvalidActor  = errors.New("invalid actor")
)
