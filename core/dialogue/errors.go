package dialogue

import (
	"errors"
	"fmt"
)

// codedError is a sentinel that also names itself for logs.
type codedError struct {
	code string
	msg  string
}

func (e *codedError) Error() string { return e.msg }

// Code returns the stable log code of the error.
func (e *codedError) Code() string { return e.code }

var (
	// ErrAlreadyActive is returned by Start when the identity already has a session.
	ErrAlreadyActive error = &codedError{"already_active", "dialogue: session already active"}
	// ErrNoActiveSession is returned by Advance when the identity has no session.
	ErrNoActiveSession error = &codedError{"no_active_session", "dialogue: no active session"}
	// ErrNotRegistered is returned when the identity has no profile.
	ErrNotRegistered error = &codedError{"not_registered", "dialogue: identity not registered"}
	// ErrStoreUnavailable wraps profile store failures.
	ErrStoreUnavailable error = &codedError{"store_unavailable", "dialogue: store unavailable"}
	// ErrValidation is the target every *ValidationError matches with errors.Is.
	ErrValidation = errors.New("dialogue: invalid input")
)

// ValidationError reports input that does not satisfy the current step.
// The session is left unchanged.
type ValidationError struct {
	Step   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dialogue: invalid input for step %s: %s", e.Step, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Code returns the stable log code of the error.
func (e *ValidationError) Code() string { return "validation" }

func storeUnavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}
