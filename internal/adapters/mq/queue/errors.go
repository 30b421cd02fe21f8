package queue

import "errors"

// Sentinel errors for command dispatch.
var (
	ErrStopped = errors.New("dispatcher stopped")
	ErrClosed  = errors.New("queue closed")
	ErrFull    = errors.New("queue full")
)
