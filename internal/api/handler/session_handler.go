package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/coursehub/internal/api/dto"
	"github.com/cuongbtq/coursehub/internal/domain"
	"github.com/cuongbtq/coursehub/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// sessionID validates the :session_id path parameter
func (h *Handler) sessionID(c *gin.Context) (string, bool) {
	id := c.Param("session_id")
	if _, err := uuid.Parse(id); err != nil {
		h.logger.Warn("Invalid session_id format",
			slog.String("session_id", id),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "session_id must be a valid UUID",
		})
		return "", false
	}
	return id, true
}

// ListSessions handles GET /api/v1/sessions
// Lists sessions newest first with cursor pagination
func (h *Handler) ListSessions(c *gin.Context) {
	var req dto.ListSessionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = h.pageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := session.DecodeCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	sessions, err := h.sessions.List(c.Request.Context(), session.Filter{
		Kind:     req.Kind,
		State:    req.State,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.fail(c, err, "Failed to list sessions")
		return
	}

	page, next := session.Page(sessions, req.PageSize)

	out := make([]dto.SessionDTO, len(page))
	for i := range page {
		out[i] = dto.FromSession(&page[i])
	}

	c.JSON(http.StatusOK, dto.ListSessionsResponse{
		Sessions:   out,
		NextCursor: next,
	})
}

// GetSession handles GET /api/v1/sessions/:session_id
func (h *Handler) GetSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	sess, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to get session")
		return
	}

	c.JSON(http.StatusOK, dto.FromSession(sess))
}

// CancelSession handles DELETE /api/v1/sessions/:session_id
// Stops polling the task. The backend task itself keeps running.
func (h *Handler) CancelSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	sess, err := h.manager.Cancel(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Failed to cancel session")
		return
	}

	h.logger.Info("Session canceled",
		slog.String("session_id", id),
		slog.String("state", sess.State),
	)

	c.JSON(http.StatusOK, dto.FromSession(sess))
}

// DownloadSession handles GET /api/v1/sessions/:session_id/download
// Streams the results CSV of a completed session
func (h *Handler) DownloadSession(c *gin.Context) {
	id, ok := h.sessionID(c)
	if !ok {
		return
	}

	sess, err := h.sessions.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, domain.MsgDownloadFailed)
		return
	}

	if sess.State != domain.PollStateCompleted {
		h.fail(c, domain.NewError(domain.ErrNotReady, "Task has not completed yet", nil), domain.MsgDownloadFailed)
		return
	}
	if sess.OutputPath == "" {
		h.fail(c, domain.NewError(domain.ErrNotFound, "Session has no results file", nil), domain.MsgDownloadFailed)
		return
	}

	h.stream(c, sess.OutputPath)
}
