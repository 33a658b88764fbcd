package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	ErrStorage = errors.New("edge storage failure")
	ErrClosed  = errors.New("edge storage closed")
)
