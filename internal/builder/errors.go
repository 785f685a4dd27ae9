package builder

import (
	"errors"
	"fmt"
)

type (
	// ErrorKind classifies a pipeline failure for the caller
	ErrorKind string

	// Error is a phase failure surfaced to callers. External-service
	// failures are retryable by calling advance again; precondition
	// violations require redoing an earlier phase
	Error struct {
		Kind ErrorKind
		Err  error
	}
)

const (
	// ErrKindValidation marks missing preconditions; not retryable
	ErrKindValidation ErrorKind = "validation"

	// ErrKindExternal marks registry or model failures; retryable
	ErrKindExternal ErrorKind = "external_service"

	// ErrKindNotFound marks an unknown session; caller decides whether to
	// create it
	ErrKindNotFound ErrorKind = "not_found"

	// ErrKindConflict marks an advance attempted while a clarification is
	// pending; the caller must answer it first
	ErrKindConflict ErrorKind = "conflict"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionExists        = errors.New("session exists")
	ErrSessionComplete      = errors.New("session is complete")
	ErrClarificationPending = errors.New("clarification pending")
	ErrUnknownQuestion      = errors.New("unknown clarification question")
	ErrNoConfiguredNodes    = errors.New("no configured nodes")
	ErrNoValidatedNodes     = errors.New("no validated nodes")
	ErrNoWorkflow           = errors.New("workflow not yet built")
	ErrNoRunner             = errors.New("no runner registered for phase")
	ErrEmptyPrompt          = errors.New("prompt must not be empty")
	ErrInvalidSessionID     = errors.New("invalid session ID")
)

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether re-invoking advance can succeed without caller
// intervention
func (e *Error) Retryable() bool {
	return e.Kind == ErrKindExternal
}

func validationError(err error) *Error {
	return &Error{Kind: ErrKindValidation, Err: err}
}

func externalError(err error) *Error {
	return &Error{Kind: ErrKindExternal, Err: err}
}

func notFoundError(err error) *Error {
	return &Error{Kind: ErrKindNotFound, Err: err}
}

func conflictError(err error) *Error {
	return &Error{Kind: ErrKindConflict, Err: err}
}

// AsError extracts the typed pipeline error, wrapping unclassified errors
// as external failures
func AsError(err error) *Error {
	var typed *Error
	if errors.As(err, &typed) {
		return typed
	}
	if errors.Is(err, ErrSessionNotFound) {
		return notFoundError(err)
	}
	if errors.Is(err, ErrSessionExists) {
		return conflictError(err)
	}
	return externalError(err)
}
