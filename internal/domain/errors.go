package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")

	// ErrStaleVersion is returned by repositories when a compare-and-swap write
	// loses against a concurrent writer. Services retry it and surface
	// ErrConflict once retries run out.
	ErrStaleVersion = errors.New("stale version")
)

// TransitionError reports an illegal lifecycle transition.
type TransitionError struct {
	Action string
	From   AlertStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s alert in status %s", e.Action, e.From)
}

func (e *TransitionError) Unwrap() error { return ErrConflict }

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Problem string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Problem)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
