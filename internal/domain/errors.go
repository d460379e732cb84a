package domain

import "errors"

// Error kinds. Match with errors.Is.
var (
	// ErrMalformedInput is returned when CSV content has no usable header row
	ErrMalformedInput = errors.New("malformed input")

	// ErrValidation is returned when a request is incomplete, e.g. no key column was picked
	ErrValidation = errors.New("validation failed")

	// ErrUpload is returned when the file upload is rejected or its response is unreadable
	ErrUpload = errors.New("upload failed")

	// ErrSubmission is returned when the backend refuses to start a job
	ErrSubmission = errors.New("submission rejected")

	// ErrSubmissionInFlight is returned when the same submission is already running
	ErrSubmissionInFlight = errors.New("submission already in flight")

	// ErrPoll is returned when a task status request fails
	ErrPoll = errors.New("task status check failed")

	// ErrPollTimeout is returned when a task does not reach a terminal state within the attempt budget
	ErrPollTimeout = errors.New("task polling timed out")

	// ErrSearch is returned when the backend rejects a course search
	ErrSearch = errors.New("course search failed")

	// ErrTaskFailure is returned when the backend reports the task as failed
	ErrTaskFailure = errors.New("task failed")

	// ErrDownload is returned when a result file cannot be fetched
	ErrDownload = errors.New("download failed")

	// ErrNotFound is returned when a session or stored file does not exist
	ErrNotFound = errors.New("not found")

	// ErrNotReady is returned when a session has not completed yet
	ErrNotReady = errors.New("not ready")
)

// Error carries a user-facing message together with its kind and cause
type Error struct {
	Kind error
	Msg  string
	Err  error
}

// NewError creates an Error of the given kind
func NewError(kind error, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" && e.Kind != nil {
		msg = e.Kind.Error()
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Message returns the user-facing text of err. Errors that are not *Error
// fall back to err.Error().
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) && de.Msg != "" {
		return de.Msg
	}
	return err.Error()
}
