// Package domain contains domain entities, value objects, and domain-specific errors.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain error types for consistent error handling across the application.
// Generic bases classify an error for transport mapping; the engine-specific
// kinds below wrap one of them so both errors.Is checks succeed.

var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists is returned when trying to create a resource that already exists.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is returned when authentication is required but not provided.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the caller lacks permission for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when there's a conflict with the current state.
	ErrConflict = errors.New("conflict")
)

var (
	ErrRoundNotActive               = kind("round not active", ErrConflict)
	ErrRoundNotEnded                = kind("round not ended", ErrConflict)
	ErrEntryConflict                = kind("entry conflict", ErrConflict)
	ErrParticipantDisqualified      = kind("participant disqualified", ErrForbidden)
	ErrNotQualified                 = kind("participant not qualified", ErrForbidden)
	ErrDuplicatePayment             = kind("duplicate payment", ErrConflict)
	ErrAlreadyCompleted             = kind("payment already completed", ErrConflict)
	ErrInvalidTransition            = kind("invalid transition", ErrConflict)
	ErrCompetitionNotConcluded      = kind("competition not concluded", ErrConflict)
	ErrReconciliationInProgress     = kind("reconciliation in progress", ErrConflict)
	ErrReconciliationPartialFailure = errors.New("reconciliation partial failure")
)

// kindError is a named error kind that also matches its generic base.
type kindError struct {
	msg  string
	base error
}

func kind(msg string, base error) error { return &kindError{msg: msg, base: base} }

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.base }

// DomainError wraps a base error with additional context.
type DomainError struct {
	// Base is the underlying error type (e.g., ErrNotFound, ErrRoundNotActive)
	Base error

	// Message provides human-readable context
	Message string

	// Field indicates which field caused the error (for validation errors)
	Field string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Base.Error(), e.Message, e.Field)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Base.Error(), e.Message)
	}
	return e.Base.Error()
}

// Unwrap returns the base error for errors.Is/As support.
func (e *DomainError) Unwrap() error {
	return e.Base
}

// NewError creates a domain error of the given kind with context.
func NewError(base error, message string) *DomainError {
	return &DomainError{Base: base, Message: message}
}

// NewNotFoundError creates a not found error with context.
func NewNotFoundError(resource string) *DomainError {
	return &DomainError{
		Base:    ErrNotFound,
		Message: resource,
	}
}

// NewValidationError creates a validation error for a specific field.
func NewValidationError(field, message string) *DomainError {
	return &DomainError{
		Base:    ErrInvalidInput,
		Message: message,
		Field:   field,
	}
}

// NewConflictError creates a conflict error with context.
func NewConflictError(message string) *DomainError {
	return &DomainError{
		Base:    ErrConflict,
		Message: message,
	}
}

// NewForbiddenError creates a forbidden error with context.
func NewForbiddenError(message string) *DomainError {
	return &DomainError{
		Base:    ErrForbidden,
		Message: message,
	}
}

// NewUnauthorizedError creates an unauthorized error with context.
func NewUnauthorizedError(message string) *DomainError {
	return &DomainError{
		Base:    ErrUnauthorized,
		Message: message,
	}
}

// TransitionError reports a rejected payment state change.
type TransitionError struct {
	Base error
	From PaymentStatus
	To   PaymentStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", e.Base.Error(), e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return e.Base }

// ParticipantFailure is one participant that could not be repaired.
type ParticipantFailure struct {
	ParticipantID int64
	Err           error
}

// PartialFailureError summarises a reconciliation batch that skipped participants.
type PartialFailureError struct {
	Operation string
	Failures  []ParticipantFailure
}

func (e *PartialFailureError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, fmt.Sprintf("%d", f.ParticipantID))
	}
	return fmt.Sprintf("%s: %s skipped %d participant(s) [%s]",
		ErrReconciliationPartialFailure.Error(), e.Operation, len(e.Failures), strings.Join(ids, ","))
}

func (e *PartialFailureError) Unwrap() error { return ErrReconciliationPartialFailure }

// KindOf names the most specific error kind of err, for structured responses.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRoundNotActive):
		return "ROUND_NOT_ACTIVE"
	case errors.Is(err, ErrRoundNotEnded):
		return "ROUND_NOT_ENDED"
	case errors.Is(err, ErrEntryConflict):
		return "ENTRY_CONFLICT"
	case errors.Is(err, ErrParticipantDisqualified):
		return "PARTICIPANT_DISQUALIFIED"
	case errors.Is(err, ErrNotQualified):
		return "NOT_QUALIFIED"
	case errors.Is(err, ErrDuplicatePayment):
		return "DUPLICATE_PAYMENT"
	case errors.Is(err, ErrAlreadyCompleted):
		return "ALREADY_COMPLETED"
	case errors.Is(err, ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, ErrCompetitionNotConcluded):
		return "COMPETITION_NOT_CONCLUDED"
	case errors.Is(err, ErrReconciliationInProgress):
		return "RECONCILIATION_IN_PROGRESS"
	case errors.Is(err, ErrReconciliationPartialFailure):
		return "RECONCILIATION_PARTIAL_FAILURE"
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrInvalidInput):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	default:
		return "INTERNAL_ERROR"
	}
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsConflict checks if an error is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrAlreadyExists)
}

// IsForbidden checks if an error is a forbidden error.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsUnauthorized checks if an error is unauthorized.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
