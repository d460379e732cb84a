package domain

import "errors"

var (
	// ErrInvalidMessage is returned when a watch message cannot be parsed
	ErrInvalidMessage = errors.New("invalid watch message")

	// ErrSessionNotFound is returned when the session of a watch message does not exist
	ErrSessionNotFound = errors.New("session not found")

	// ErrTaskMismatch is returned when the message task ID differs from the stored session
	ErrTaskMismatch = errors.New("task id does not match session")

	// ErrMaxRetriesExceeded is returned when a message has been redelivered too often
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)

// RetryableError wraps transient errors that should trigger a requeue
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string {
	return "retryable error: " + e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// NewRetryableError creates a new retryable error
func NewRetryableError(err error) error {
	return &RetryableError{Err: err}
}
