// Package errors provides custom error types for the SOC workflow SDK.
// Every failure surfaced by the core carries a Kind so the request-handling
// boundary can translate it to a machine-readable response.
package errors

import (
	"errors"
	"fmt"
)

// =============================================================================
// Base Error Types
// =============================================================================

// Error is the base error type for all SDK errors.
type Error struct {
	// Kind indicates the category of error
	Kind Kind

	// Op is the operation being performed (e.g., "engagement.Advance")
	Op string

	// Message is a human-readable description
	Message string

	// Err is the underlying error
	Err error
}

// Kind represents the kind/category of error.
type Kind uint8

const (
	KindUnknown Kind = iota

	// KindInvalidInput covers malformed creation/update payloads: score out
	// of range, unknown enum value, missing required field.
	KindInvalidInput

	// KindInvalidStage is returned when a stage value is not a member of the
	// engagement's configured sequence.
	KindInvalidStage

	// KindTerminalStage is returned when advancing an engagement already at
	// the last stage of its sequence.
	KindTerminalStage

	// KindNotFound is returned when a referenced entity does not exist under
	// the caller's tenant scope.
	KindNotFound

	// KindAlreadyResolved is returned when resolving a finding that is
	// already RESOLVED.
	KindAlreadyResolved

	// KindNotEligible is returned when certification issuance is requested
	// against an engagement that has not been delivered.
	KindNotEligible

	// KindInvalidState is returned for state transitions the entity does not
	// permit, e.g. revoking a non-ACTIVE certification.
	KindInvalidState

	// KindConflict is returned when a concurrent write is detected at the
	// persistence boundary. Callers should reload and retry.
	KindConflict

	// KindInternal is returned for unexpected internal failures.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindInvalidStage:
		return "invalid_stage"
	case KindTerminalStage:
		return "terminal_stage"
	case KindNotFound:
		return "not_found"
	case KindAlreadyResolved:
		return "already_resolved"
	case KindNotEligible:
		return "not_eligible"
	case KindInvalidState:
		return "invalid_state"
	case KindConflict:
		return "conflict"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// =============================================================================
// Constructors
// =============================================================================

// E constructs an Error from the given arguments.
// Arguments can be: Kind, string (Op or Message), error.
func E(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Kind:
			e.Kind = a
		case string:
			if e.Op == "" {
				e.Op = a
			} else {
				e.Message = a
			}
		case error:
			e.Err = a
		}
	}
	return e
}

// New creates a new simple error.
func New(message string) error {
	return &Error{Message: message}
}

// Wrap wraps an error with additional context.
func Wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// WrapWithMessage wraps an error with a message.
func WrapWithMessage(err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Message: message, Err: err}
}

// =============================================================================
// Error Checkers
// =============================================================================

// GetKind returns the Kind of the error, or KindUnknown.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsValidation checks if the error is an invalid-input error.
func IsValidation(err error) bool {
	return GetKind(err) == KindInvalidInput
}

// IsInvalidStage checks if the error is an invalid-stage error.
func IsInvalidStage(err error) bool {
	return GetKind(err) == KindInvalidStage
}

// IsTerminalStage checks if the error is a terminal-stage error.
func IsTerminalStage(err error) bool {
	return GetKind(err) == KindTerminalStage
}

// IsNotFound checks if the error is a not-found error.
func IsNotFound(err error) bool {
	return GetKind(err) == KindNotFound
}

// IsAlreadyResolved checks if the error is an already-resolved error.
func IsAlreadyResolved(err error) bool {
	return GetKind(err) == KindAlreadyResolved
}

// IsNotEligible checks if the error is a not-eligible error.
func IsNotEligible(err error) bool {
	return GetKind(err) == KindNotEligible
}

// IsInvalidState checks if the error is an invalid-state error.
func IsInvalidState(err error) bool {
	return GetKind(err) == KindInvalidState
}

// IsConflict checks if the error is a persistence conflict.
// Conflicts are retryable: the caller should reload the entity and retry.
func IsConflict(err error) bool {
	return GetKind(err) == KindConflict
}

// IsRetryable checks if the error is retryable.
// Only persistence conflicts are retryable in this core; every other kind
// requires the caller to fix its input or give up.
func IsRetryable(err error) bool {
	return IsConflict(err)
}

// =============================================================================
// Common Errors
// =============================================================================

var (
	// ErrNotFound is a bare not-found error for sentinel comparisons.
	ErrNotFound = &Error{Kind: KindNotFound, Message: "not found"}

	// ErrConflict is returned on concurrent-write detection.
	ErrConflict = &Error{Kind: KindConflict, Message: "concurrent modification detected"}

	// ErrInvalidConfig is returned for invalid configuration.
	ErrInvalidConfig = &Error{Kind: KindInvalidInput, Message: "invalid configuration"}
)
