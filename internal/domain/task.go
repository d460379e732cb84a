package domain

// TaskHandle tracks a backend task from submission to a terminal state
type TaskHandle struct {
	TaskID      string `json:"task_id"`
	State       string `json:"state"`
	Status      string `json:"status"` // last raw status reported by the backend
	Progress    int    `json:"progress"`
	Total       int    `json:"total"`
	ErrorDetail string `json:"error,omitempty"`
}

// NewTaskHandle returns a handle in the POLLING state
func NewTaskHandle(taskID string) TaskHandle {
	return TaskHandle{TaskID: taskID, State: PollStatePolling}
}

// Terminal reports whether no further polling will happen
func (h TaskHandle) Terminal() bool {
	return IsTerminalState(h.State)
}

// Percent returns progress as a 0-100 value. A zero total yields 0.
func (h TaskHandle) Percent() float64 {
	if h.Total <= 0 {
		return 0
	}
	return float64(h.Progress) / float64(h.Total) * 100
}

// IsTerminalState reports whether state ends a poll session
func IsTerminalState(state string) bool {
	switch state {
	case PollStateCompleted, PollStateFailed, PollStateCanceled:
		return true
	default:
		return false
	}
}
