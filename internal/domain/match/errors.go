package match

import "errors"

// Sentinel errors returned by store commands.
var (
	ErrInvalidKey   = errors.New("match needs both a position code and a utorid")
	ErrInvalidHours = errors.New("hours must be a finite, non-negative number")
	ErrUnknownKey   = errors.New("no match for key")
)
