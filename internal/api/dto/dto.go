package dto

import (
	"time"

	"github.com/cuongbtq/coursehub/internal/mapping"
	"github.com/cuongbtq/coursehub/internal/session"
	"github.com/cuongbtq/coursehub/internal/workflow"
)

type UploadResponse struct {
	FilePath string `json:"filePath"`
}

type PreviewResponse struct {
	Rows         []mapping.Row `json:"rows"`
	Records      int           `json:"records"`
	QuotedHeader bool          `json:"quoted_header"`
}

type ListSessionsRequest struct {
	Kind     string `form:"kind"`
	State    string `form:"state"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListSessionsResponse struct {
	Sessions   []SessionDTO `json:"sessions"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

type SessionDTO struct {
	SessionID  string  `json:"session_id"`
	Kind       string  `json:"kind"`
	TaskID     string  `json:"task_id"`
	State      string  `json:"state"`
	Progress   int     `json:"progress"`
	Total      int     `json:"total"`
	Percent    float64 `json:"percent"`
	Error      string  `json:"error,omitempty"`
	InputPath  string  `json:"input_path,omitempty"`
	OutputPath string  `json:"output_path,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}

// FromSession converts a stored session to its wire form
func FromSession(s *session.Session) SessionDTO {
	h := s.Handle()
	return SessionDTO{
		SessionID:  s.ID,
		Kind:       s.Kind,
		TaskID:     s.TaskID,
		State:      s.State,
		Progress:   s.Progress,
		Total:      s.Total,
		Percent:    h.Percent(),
		Error:      s.ErrorMessage,
		InputPath:  s.InputPath,
		OutputPath: s.OutputPath,
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  s.UpdatedAt.Format(time.RFC3339),
	}
}

type BulkInferenceResponse struct {
	Session   SessionDTO `json:"session"`
	KeyColumn string     `json:"key_column"`
	Template  string     `json:"input_text_template"`
}

type ActionDTO struct {
	Action       string `json:"action"`
	Label        string `json:"label"`
	Warning      string `json:"warning"`
	Button       string `json:"button"`
	Confirmation string `json:"confirmation"`
	Success      string `json:"success_message"`
	NeedsColumn  bool   `json:"needs_column"`
}

// FromAction renders the copy of a for count records
func FromAction(a workflow.Action, count int) ActionDTO {
	spec := a.Spec()
	return ActionDTO{
		Action:       string(a),
		Label:        spec.Label,
		Warning:      spec.Warning,
		Button:       spec.Button,
		Confirmation: spec.Confirmation(count),
		Success:      spec.Success(count),
		NeedsColumn:  spec.NeedsColumn,
	}
}

type ListActionsResponse struct {
	Actions []ActionDTO `json:"actions"`
}

type ManageResponse struct {
	Session SessionDTO `json:"session"`
	Records int        `json:"records"`
	Success string     `json:"success_message"`
}

type SearchRequest struct {
	Query            string   `json:"query" binding:"required"`
	NumCourses       int      `json:"num_courses"`
	Languages        []string `json:"languages"`
	RequireReasoning bool     `json:"require_reasoning"`
}
