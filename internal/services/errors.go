package services

import (
	"errors"

	"github.com/sadiqgoni/GreenCycle/internal/lifecycle"
)

var (
	ErrRequestNotFound   = errors.New("service request not found")
	ErrCompanyNotFound   = errors.New("company not found")
	ErrCompanyExists     = errors.New("company already registered for this user")
	ErrCompanyNotActive  = errors.New("company is not approved")
	ErrConcurrentUpdate  = errors.New("service request was modified by another user, reload and retry")
	ErrRecordLocked      = errors.New("service request is being updated, try again shortly")
	ErrForbidden         = errors.New("not allowed for this role")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrAccountDisabled   = errors.New("account is disabled")
	ErrInvalidToken      = errors.New("invalid or expired token")
)

// FieldError is an input validation failure outside the lifecycle engine.
// It matches lifecycle.ErrValidation so handlers map both the same way.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

func (e *FieldError) Is(target error) bool {
	return target == lifecycle.ErrValidation
}
