package recording

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks a request rejected locally before any remote call.
	ErrValidation = errors.New("validation failed")
	// ErrBusy is returned while another start, stop or end request is outstanding.
	ErrBusy = errors.New("another request is in progress")
	// ErrInvalidTransition is returned when the current state does not permit the operation.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// ValidationError lists the inputs an operation was missing.
type ValidationError struct {
	Op      string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("cannot %s: missing %s", e.Op, strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TransitionError reports an operation attempted from the wrong state.
type TransitionError struct {
	Op   string
	From State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Op, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
