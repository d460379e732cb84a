package handler

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/coursehub/internal/backend"
	"github.com/cuongbtq/coursehub/internal/domain"
	"github.com/cuongbtq/coursehub/internal/filestore"
	"github.com/cuongbtq/coursehub/internal/session"
	"github.com/cuongbtq/coursehub/internal/workflow"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// IdempotencyHeader carries a client supplied submission key
	IdempotencyHeader = "X-Idempotency-Key"
)

// Workflow runs submissions and searches. *workflow.Service satisfies it.
type Workflow interface {
	PreviewMapping(content io.Reader) (*workflow.Preview, error)
	SubmitBulkInference(ctx context.Context, req workflow.BulkRequest) (*workflow.Submission, error)
	SubmitManagement(ctx context.Context, req workflow.ManageRequest) (*workflow.Submission, error)
	Search(ctx context.Context, req workflow.SearchRequest) (*backend.SearchResponse, error)
}

// Tracker turns a submission into a watched session. *workflow.Tracker satisfies it.
type Tracker interface {
	Track(ctx context.Context, sub *workflow.Submission, idempotencyKey string) (*session.Session, error)
}

// HealthChecker reports whether a dependency is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// PoolReporter is implemented by health checked dependencies that keep a
// connection pool. Its statistics are added to the health response.
type PoolReporter interface {
	Stats() sql.DBStats
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger       *slog.Logger
	ServiceName  string
	Workflow     Workflow
	Tracker      Tracker
	Sessions     session.Store
	Manager      session.Manager
	Files        filestore.Store
	PageSize     int
	HealthChecks map[string]HealthChecker
}

// Handler serves the gateway routes
type Handler struct {
	logger       *slog.Logger
	serviceName  string
	workflow     Workflow
	tracker      Tracker
	sessions     session.Store
	manager      session.Manager
	files        filestore.Store
	pageSize     int
	healthChecks map[string]HealthChecker
}

// NewHandler creates a new Handler instance
func NewHandler(deps *Dependencies) *Handler {
	pageSize := deps.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	return &Handler{
		logger:       deps.Logger,
		serviceName:  deps.ServiceName,
		workflow:     deps.Workflow,
		tracker:      deps.Tracker,
		sessions:     deps.Sessions,
		manager:      deps.Manager,
		files:        deps.Files,
		pageSize:     pageSize,
		healthChecks: deps.HealthChecks,
	}
}

// statusFor maps an error kind to its HTTP status
func statusFor(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrMalformedInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSubmissionInFlight), errors.Is(err, domain.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUpload),
		errors.Is(err, domain.ErrSubmission),
		errors.Is(err, domain.ErrPoll),
		errors.Is(err, domain.ErrSearch),
		errors.Is(err, domain.ErrDownload):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes an error response. Unclassified errors get the generic message.
func (h *Handler) fail(c *gin.Context, err error, generic string) {
	status := statusFor(err)

	msg := generic
	switch {
	case status == http.StatusRequestEntityTooLarge:
		msg = "File is too large"
	case status != http.StatusInternalServerError:
		msg = domain.Message(err)
	}

	attrs := []any{
		slog.Int("status", status),
		slog.String("path", c.Request.URL.Path),
		slog.Any("error", err),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error(generic, attrs...)
	} else {
		h.logger.Warn(generic, attrs...)
	}

	c.JSON(status, gin.H{
		"error": msg,
	})
}

// Health handles GET /health
func (h *Handler) Health(c *gin.Context) {
	checks := make(map[string]string, len(h.healthChecks))
	pools := make(map[string]gin.H)
	healthy := true

	for name, checker := range h.healthChecks {
		if reporter, ok := checker.(PoolReporter); ok {
			stats := reporter.Stats()
			pools[name] = gin.H{
				"max_open":         stats.MaxOpenConnections,
				"open":             stats.OpenConnections,
				"in_use":           stats.InUse,
				"idle":             stats.Idle,
				"wait_count":       stats.WaitCount,
				"wait_duration_ms": stats.WaitDuration.Milliseconds(),
			}
		}

		if err := checker.HealthCheck(c.Request.Context()); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status, state := http.StatusOK, "healthy"
	if !healthy {
		status, state = http.StatusServiceUnavailable, "unhealthy"
	}

	body := gin.H{
		"status":  state,
		"service": h.serviceName,
		"checks":  checks,
	}
	if len(pools) > 0 {
		body["pools"] = pools
	}
	c.JSON(status, body)
}
