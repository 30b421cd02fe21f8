package transfer

import (
	"errors"
	"fmt"
)

// ErrTooLarge is wrapped by a ParseError when the input exceeds the read
// limit.
var ErrTooLarge = errors.New("import file too large")

// ParseError rejects a whole import file. Nothing from a rejected file is
// applied.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse import: %s: %v", e.Reason, e.Err)
	}
	return "parse import: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErr(reason string, err error) error {
	return &ParseError{Reason: reason, Err: err}
}
