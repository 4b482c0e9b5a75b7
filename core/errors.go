package core

import "github.com/pkg/errors"

var (
	// ErrUnauthenticated is returned when no valid identity could be resolved.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrUnauthorized is returned for every role, ownership or membership failure.
	// Callers are never told which check failed.
	ErrUnauthorized = errors.New("unauthorized")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// StateError reports an operation rejected by the current state of a resource
// (round closed, activity not running, ...).
type StateError struct {
	Reason string
}

func NewStateError(reason string) error {
	return &StateError{Reason: reason}
}

func (err StateError) Error() string {
	return err.Reason
}

// ConflictError reports a write that collided with an existing record.
// Existing holds that record when the caller may see it.
type ConflictError struct {
	Reason   string
	Existing interface{}
}

func NewConflictError(reason string, existing interface{}) error {
	return &ConflictError{Reason: reason, Existing: existing}
}

func (err ConflictError) Error() string {
	return err.Reason
}

type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

func IsUnauthorized(err error) bool {
	return errors.Cause(err) == ErrUnauthorized
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsStateError(err error) bool {
	_, ok := errors.Cause(err).(*StateError)
	return ok
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

func IsValidationError(err error) bool {
	_, ok := errors.Cause(err).(*ValidationError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
