package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/tapp/internal/domain/match"
)

// Sentinel errors returned by the service.
var (
	ErrNotStarted      = errors.New("service not started")
	ErrBackpressure    = errors.New("command queue is full")
	ErrNotDraft        = errors.New("match is not a draft")
	ErrInFlight        = errors.New("match is already being finalized")
	ErrEmptySelection  = errors.New("no matches selected")
	ErrUnknownPosition = errors.New("unknown position")
	ErrUnknownKey      = match.ErrUnknownKey
)

// ConflictItem names one match that could not be finalized.
type ConflictItem struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Conflict reasons.
const (
	ReasonActiveOffer      = "an assignment with an active offer already exists"
	ReasonUnknownApplicant = "unknown applicant"
	ReasonUnknownPosition  = "unknown position"
	ReasonNotConfirmed     = "not confirmed by the assignment store"
	ReasonModified         = "modified while the batch was pending"
)

// ConflictError reports matches that were refused, either before
// submission or by the assignment store. Matches not listed were handled.
type ConflictError struct {
	Items []ConflictItem
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("finalize conflict on %d match(es): %s", len(e.Items), strings.Join(e.Keys(), ", "))
}

// Keys returns the conflicting keys in order.
func (e *ConflictError) Keys() []string {
	keys := make([]string, 0, len(e.Items))
	for _, it := range e.Items {
		keys = append(keys, it.Key)
	}
	return keys
}

// NetworkError reports a finalize batch that failed outright. No drafts
// were removed and the batch may be retried unchanged.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "finalize batch failed: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }
