package lifecycle

import (
	"errors"
	"fmt"
)

// Error kinds. Every rejected action wraps exactly one of these.
var (
	ErrReferenceNotFound = errors.New("reference not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrValidation        = errors.New("validation error")
)

// Error describes why an action was rejected. The record is never modified
// when an Error is returned.
type Error struct {
	Kind   error
	Action ActionKind
	Field  string
	Reason string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s: %s", e.Action, e.Kind, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Action, e.Kind, e.Reason)
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func invalid(action ActionKind, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInvalidTransition, Action: action, Reason: fmt.Sprintf(format, args...)}
}

func notFound(action ActionKind, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrReferenceNotFound, Action: action, Reason: fmt.Sprintf(format, args...)}
}

func validation(action ActionKind, field, format string, args ...interface{}) *Error {
	return &Error{Kind: ErrValidation, Action: action, Field: field, Reason: fmt.Sprintf(format, args...)}
}
