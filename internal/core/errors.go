package core

import (
	"errors"
	"fmt"
)

// TransportKind separates an unreachable remote from one that answered with a failure.
type TransportKind int

const (
	// Unreachable covers DNS failures, refused connections and timeouts.
	Unreachable TransportKind = iota
	// Rejected means the remote answered with a non-200 status.
	Rejected
)

func (k TransportKind) String() string {
	switch k {
	case Unreachable:
		return "unreachable"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ValidationError reports caller input that was refused before any I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// TransportError is a failed exchange with the remote service.
type TransportError struct {
	Kind   TransportKind
	Op     string // e.g. "POST /api/download"
	Status int    // HTTP status for Rejected
	Body   string // Response body (truncated) for Rejected
	Cause  error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case Rejected:
		if e.Body != "" {
			return fmt.Sprintf("%s: remote rejected request (%d): %s", e.Op, e.Status, e.Body)
		}
		return fmt.Sprintf("%s: remote rejected request (%d)", e.Op, e.Status)
	default:
		return fmt.Sprintf("%s: remote unreachable: %v", e.Op, e.Cause)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// DecodeError is a malformed body on an otherwise successful response.
type DecodeError struct {
	Op    string
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Op, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsUnreachable reports whether err is a TransportError of kind Unreachable.
func IsUnreachable(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == Unreachable
}

// IsRejected reports whether err is a TransportError of kind Rejected.
func IsRejected(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Kind == Rejected
}

// IsDecode reports whether err is a DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
