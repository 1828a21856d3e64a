package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned by stores when a unique constraint is violated.
var ErrDuplicate = errors.New("duplicate")

// Kind classifies service failures.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthorized
	KindNotFound
	KindConflict
	KindInvalidCredentials
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalidCredentials:
		return "invalid_credentials"
	default:
		return "internal"
	}
}

// Error is the failure type returned by every service operation.
// Message is safe to show to clients; Err is the underlying cause and is only logged.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError reports malformed or oversized input.
func NewValidationError(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

// NewUnauthorizedError reports a missing or invalid session.
func NewUnauthorizedError(err error) *Error {
	return &Error{Kind: KindUnauthorized, Message: "Unauthorized", Err: err}
}

// NewNotFoundError reports an entity that is absent or not owned by the caller.
func NewNotFoundError(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// NewConflictError reports a uniqueness violation.
func NewConflictError(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// NewInvalidCredentialsError reports a failed login without saying why.
func NewInvalidCredentialsError() *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "Email or Password is incorrect"}
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: err}
}

// KindOf returns the kind of err, or KindInternal if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
