package airquality

import (
	"errors"
	"fmt"
)

// ErrValidation marks request input that was rejected before any provider
// or store call.
var ErrValidation = errors.New("validation failed")

// ValidationError describes a rejected request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// UpstreamError reports a failed provider fetch. Status is the upstream
// HTTP status, or zero when no response was received.
type UpstreamError struct {
	Kind   SeriesKind
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s provider returned status %d: %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s provider fetch failed: %v", e.Kind, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// PersistenceError wraps a store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
