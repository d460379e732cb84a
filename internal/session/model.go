// Package session owns the lifecycle of submitted backend tasks.
package session

import (
	"time"

	"github.com/cuongbtq/coursehub/internal/domain"
)

// Session kinds
const (
	KindBulkInference = "BULK_INFERENCE"
	KindAddCourses    = "ADD_COURSES"
	KindUpdateCourses = "UPDATE_COURSES"
	KindDeleteCourses = "DELETE_COURSES"
)

// Session is the gateway's record of one submission
type Session struct {
	ID             string    `db:"session_id"`
	Kind           string    `db:"kind"`
	TaskID         string    `db:"task_id"`
	State          string    `db:"state"`
	Progress       int       `db:"progress"`
	Total          int       `db:"total"`
	ErrorMessage   string    `db:"error_message"`
	InputPath      string    `db:"input_path"`
	OutputPath     string    `db:"output_path"`
	IdempotencyKey string    `db:"idempotency_key"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Handle returns the poll view of the session
func (s *Session) Handle() domain.TaskHandle {
	return domain.TaskHandle{
		TaskID:      s.TaskID,
		State:       s.State,
		Progress:    s.Progress,
		Total:       s.Total,
		ErrorDetail: s.ErrorMessage,
	}
}

// Apply copies the poll state of h onto the session
func (s *Session) Apply(h domain.TaskHandle, now time.Time) {
	s.State = h.State
	s.Progress = h.Progress
	s.Total = h.Total
	s.ErrorMessage = h.ErrorDetail
	s.UpdatedAt = now
}

// Terminal reports whether the session will not change again
func (s *Session) Terminal() bool {
	return domain.IsTerminalState(s.State)
}
