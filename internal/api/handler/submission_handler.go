package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/cuongbtq/coursehub/internal/api/dto"
	"github.com/cuongbtq/coursehub/internal/domain"
	"github.com/cuongbtq/coursehub/internal/mapping"
	"github.com/cuongbtq/coursehub/internal/workflow"
	"github.com/gin-gonic/gin"
)

// PreviewMapping handles POST /api/v1/mappings/preview
// Builds the editable column mapping from the header of an uploaded CSV
func (h *Handler) PreviewMapping(c *gin.Context) {
	_, f, err := formFile(c)
	if err != nil {
		h.fail(c, err, "Failed to read CSV header")
		return
	}
	defer f.Close()

	preview, err := h.workflow.PreviewMapping(f)
	if err != nil {
		h.fail(c, err, "Failed to read CSV header")
		return
	}

	c.JSON(http.StatusOK, dto.PreviewResponse{
		Rows:         preview.Rows,
		Records:      preview.Records,
		QuotedHeader: preview.Quoted,
	})
}

// BulkInference handles POST /api/v1/bulk-inference
// Uploads the CSV, starts the bulk search and returns the watching session
func (h *Handler) BulkInference(c *gin.Context) {
	fh, f, err := formFile(c)
	if err != nil {
		h.fail(c, err, domain.MsgStartFailed)
		return
	}
	defer f.Close()

	m, err := parseMapping(c.PostForm("mapping"))
	if err != nil {
		h.fail(c, err, domain.MsgStartFailed)
		return
	}

	reasoning, err := parseBoolField(c, "require_reasoning")
	if err != nil {
		h.fail(c, err, domain.MsgStartFailed)
		return
	}

	idemKey := c.GetHeader(IdempotencyHeader)
	sub, err := h.workflow.SubmitBulkInference(c.Request.Context(), workflow.BulkRequest{
		File:             toWorkflowFile(fh, f),
		Mapping:          m,
		RequireReasoning: reasoning,
		IdempotencyKey:   idemKey,
	})
	if err != nil {
		h.fail(c, err, domain.MsgStartFailed)
		return
	}

	sess, err := h.tracker.Track(c.Request.Context(), sub, idemKey)
	if err != nil {
		h.fail(c, err, domain.MsgPollFailed)
		return
	}

	c.JSON(http.StatusAccepted, dto.BulkInferenceResponse{
		Session:   dto.FromSession(sess),
		KeyColumn: sub.KeyColumn,
		Template:  sub.Template,
	})
}

// ListActions handles GET /api/v1/courses/actions?count=
// Returns the warning, confirmation and button copy of every management action
func (h *Handler) ListActions(c *gin.Context) {
	count := 0
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "count must be a non-negative integer",
			})
			return
		}
		count = n
	}

	actions := make([]dto.ActionDTO, len(workflow.Actions))
	for i, a := range workflow.Actions {
		actions[i] = dto.FromAction(a, count)
	}

	c.JSON(http.StatusOK, dto.ListActionsResponse{Actions: actions})
}

// ManageCourses handles POST /api/v1/courses/:action
// Starts an add, update or delete task over the uploaded CSV
func (h *Handler) ManageCourses(c *gin.Context) {
	action, err := workflow.ParseAction(c.Param("action"))
	if err != nil {
		h.fail(c, err, domain.MsgStartFailed)
		return
	}

	fh, f, err := formFile(c)
	if err != nil {
		h.fail(c, err, domain.MsgStartFailed)
		return
	}
	defer f.Close()

	confirm, err := parseBoolField(c, "confirm")
	if err != nil {
		h.fail(c, err, domain.MsgStartFailed)
		return
	}

	idemKey := c.GetHeader(IdempotencyHeader)
	sub, err := h.workflow.SubmitManagement(c.Request.Context(), workflow.ManageRequest{
		Action:         action,
		File:           toWorkflowFile(fh, f),
		Confirm:        confirm,
		ColumnName:     c.PostForm("column_name"),
		IdempotencyKey: idemKey,
	})
	if err != nil {
		h.fail(c, err, domain.MsgStartFailed)
		return
	}

	sess, err := h.tracker.Track(c.Request.Context(), sub, idemKey)
	if err != nil {
		h.fail(c, err, domain.MsgPollFailed)
		return
	}

	c.JSON(http.StatusAccepted, dto.ManageResponse{
		Session: dto.FromSession(sess),
		Records: sub.Records,
		Success: action.Spec().Success(sub.Records),
	})
}

// Search handles POST /api/v1/search
func (h *Handler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "query is required",
		})
		return
	}

	resp, err := h.workflow.Search(c.Request.Context(), workflow.SearchRequest{
		Query:            req.Query,
		NumCourses:       req.NumCourses,
		Languages:        req.Languages,
		RequireReasoning: req.RequireReasoning,
	})
	if err != nil {
		h.fail(c, err, domain.MsgSearchFailed)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// parseMapping decodes the JSON rows of the "mapping" form field
func parseMapping(raw string) (*mapping.Mapping, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, domain.NewError(domain.ErrValidation, "column mapping is required", nil)
	}

	var rows []mapping.Row
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, domain.NewError(domain.ErrValidation, "column mapping must be a JSON array of rows", err)
	}
	return mapping.FromRows(rows)
}

// parseBoolField reads an optional boolean form field. Missing means false.
func parseBoolField(c *gin.Context, name string) (bool, error) {
	raw := strings.TrimSpace(c.PostForm(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, domain.NewError(domain.ErrValidation, name+" must be true or false", err)
	}
	return v, nil
}
