package domain

// Poll states of a task handle
const (
	PollStatePolling   = "POLLING"
	PollStateCompleted = "COMPLETED"
	PollStateFailed    = "FAILED"
	PollStateCanceled  = "CANCELED"
)

// Status values reported by the course backend
const (
	BackendStatusCompleted = "completed"
	BackendStatusFailed    = "failed"
	BackendStatusSuccess   = "success"

	// BackendCodeOK is the embedded success code of task and search responses
	BackendCodeOK = 200
)

// Fallback messages shown when the backend gives no detail
const (
	MsgTaskFailed        = "Task failed"
	MsgPollFailed        = "Failed to check task status"
	MsgStartFailed       = "Failed to start process"
	MsgUploadFailed      = "Failed to upload file"
	MsgDownloadFailed    = "Failed to download file"
	MsgPollTimeout       = "Task did not finish in time"
	MsgSearchFailed      = "Course search failed"
	MsgMissingKeyColumn  = "Please select a primary key column"
	MsgSubmissionRunning = "A submission with the same key is already in progress"
)
