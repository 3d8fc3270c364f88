package chat

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable category of a chat failure.
type ErrorKind string

const (
	// KindInvalidInput is a malformed or missing request message.
	KindInvalidInput ErrorKind = "invalid_input"
	// KindMisconfigured is a missing credential or an empty candidate list.
	KindMisconfigured ErrorKind = "misconfigured"
	// KindProviderTimeout is a single candidate exceeding its deadline.
	KindProviderTimeout ErrorKind = "provider_timeout"
	// KindProviderError is a single candidate returning an error.
	KindProviderError ErrorKind = "provider_error"
	// KindAllProvidersFailed means every candidate was exhausted.
	KindAllProvidersFailed ErrorKind = "all_providers_failed"
)

var (
	// ErrMessageRequired is returned for an empty message.
	ErrMessageRequired = errors.New("message is required")
	// ErrMissingCredential is returned when no provider API key is configured.
	ErrMissingCredential = errors.New("API key not configured")
	// ErrNoCandidates is returned when the candidate model list is empty.
	ErrNoCandidates = errors.New("no candidate models configured")
	// ErrAttemptTimeout is the cause recorded for an attempt that hit its deadline.
	ErrAttemptTimeout = errors.New("model did not respond before the deadline")
)

// Error is a structured chat failure.
type Error struct {
	Kind     ErrorKind
	Cause    error
	Attempts []Attempt
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Message is the human-readable detail of the underlying cause.
func (e *Error) Message() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return e.Cause.Error()
}

// KindOf returns the kind of a chat error, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var chatErr *Error
	if errors.As(err, &chatErr) {
		return chatErr.Kind
	}
	return ""
}

// AttemptError wraps the failure of one candidate so its kind is preserved
// when it becomes the last error of an exhausted list.
type AttemptError struct {
	Model string
	Kind  ErrorKind
	Err   error
}

func (e *AttemptError) Error() string {
	return e.Err.Error()
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}
