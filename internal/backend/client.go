// Package backend is the HTTP client for the course search backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cuongbtq/coursehub/internal/domain"
)

const (
	pathUpload       = "/api/upload"
	pathDownload     = "/api/download"
	pathBulkSearch   = "/bulk_search_courses_using_csv"
	pathAddUpdate    = "/add_update_courses_using_csv"
	pathRemove       = "/remove_courses_using_csv"
	pathTaskStatus   = "/task_status/"
	pathCourseSearch = "/course_search"

	// maxErrorBody bounds how much of an error response is read
	maxErrorBody = 64 * 1024
)

// HTTPDoer executes HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds backend client configuration
type Config struct {
	BaseURL string
	// FilesURL serves /api/upload and /api/download. Defaults to BaseURL.
	FilesURL string
	Timeout  time.Duration
	// HTTPClient overrides the default client, mostly for tests
	HTTPClient HTTPDoer
}

// Client talks to the course backend
type Client struct {
	baseURL  *url.URL
	filesURL *url.URL
	http     HTTPDoer
	logger   *slog.Logger
}

// NewClient creates a new backend client
func NewClient(cfg *Config, logger *slog.Logger) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}

	files := base
	if cfg.FilesURL != "" {
		files, err = parseBaseURL(cfg.FilesURL)
		if err != nil {
			return nil, fmt.Errorf("invalid backend files url: %w", err)
		}
	}

	doer := cfg.HTTPClient
	if doer == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		doer = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:  base,
		filesURL: files,
		http:     doer,
		logger:   logger,
	}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("url %q must be absolute", raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	return u, nil
}

func (c *Client) endpoint(base *url.URL, path string, query url.Values) string {
	u := *base
	u.Path = base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// Upload sends a file as multipart field "file" and returns the server-side path
func (c *Client) Upload(ctx context.Context, filename string, content io.Reader) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", domain.NewError(domain.ErrUpload, domain.MsgUploadFailed, err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", domain.NewError(domain.ErrUpload, domain.MsgUploadFailed, err)
	}
	if err := mw.Close(); err != nil {
		return "", domain.NewError(domain.ErrUpload, domain.MsgUploadFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.filesURL, pathUpload, nil), &body)
	if err != nil {
		return "", domain.NewError(domain.ErrUpload, domain.MsgUploadFailed, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("Upload request failed",
			slog.String("filename", filename),
			slog.Any("error", err),
		)
		return "", domain.NewError(domain.ErrUpload, domain.MsgUploadFailed, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		drain(resp.Body)
		return "", domain.NewError(domain.ErrUpload, domain.MsgUploadFailed, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var out UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", domain.NewError(domain.ErrUpload, domain.MsgUploadFailed, fmt.Errorf("failed to decode upload response: %w", err))
	}
	if out.FilePath == "" {
		return "", domain.NewError(domain.ErrUpload, domain.MsgUploadFailed, fmt.Errorf("upload response has no filePath"))
	}

	c.logger.Debug("File uploaded",
		slog.String("filename", filename),
		slog.String("file_path", out.FilePath),
	)

	return out.FilePath, nil
}

// StartBulkSearch starts a bulk course search task
func (c *Client) StartBulkSearch(ctx context.Context, req BulkSearchRequest) (*TaskResponse, error) {
	return c.startTask(ctx, pathBulkSearch, req)
}

// AddUpdateCourses starts a task adding or updating the courses of a CSV
func (c *Client) AddUpdateCourses(ctx context.Context, req AddUpdateRequest) (*TaskResponse, error) {
	return c.startTask(ctx, pathAddUpdate, req)
}

// RemoveCourses starts a task deleting the courses of a CSV
func (c *Client) RemoveCourses(ctx context.Context, req RemoveRequest) (*TaskResponse, error) {
	return c.startTask(ctx, pathRemove, req)
}

func (c *Client) startTask(ctx context.Context, path string, payload any) (*TaskResponse, error) {
	resp, err := c.postJSON(ctx, path, payload)
	if err != nil {
		return nil, domain.NewError(domain.ErrSubmission, domain.MsgStartFailed, err)
	}
	defer resp.Body.Close()

	var out TaskResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBody)).Decode(&out)

	if !isSuccess(resp.StatusCode) {
		c.logger.Warn("Backend rejected task",
			slog.String("path", path),
			slog.Int("status_code", resp.StatusCode),
			slog.String("error", out.Error),
		)
		return nil, domain.NewError(domain.ErrSubmission, fallback(out.Error, domain.MsgStartFailed), nil)
	}
	if decodeErr != nil {
		return nil, domain.NewError(domain.ErrSubmission, domain.MsgStartFailed, fmt.Errorf("failed to decode task response: %w", decodeErr))
	}
	if out.Code != domain.BackendCodeOK {
		c.logger.Warn("Backend returned error code",
			slog.String("path", path),
			slog.Int("code", out.Code),
			slog.String("error", out.Error),
		)
		return nil, domain.NewError(domain.ErrSubmission, fallback(out.Error, domain.MsgStartFailed), nil)
	}
	if out.TaskID == "" {
		return nil, domain.NewError(domain.ErrSubmission, domain.MsgStartFailed, fmt.Errorf("backend returned no task id"))
	}

	c.logger.Info("Backend task started",
		slog.String("path", path),
		slog.String("task_id", out.TaskID),
	)

	return &out, nil
}

// TaskStatus fetches the current status of a task
func (c *Client) TaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(c.baseURL, pathTaskStatus+url.PathEscape(taskID), nil), nil)
	if err != nil {
		return nil, domain.NewError(domain.ErrPoll, domain.MsgPollFailed, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, domain.NewError(domain.ErrPoll, domain.MsgPollFailed, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		drain(resp.Body)
		return nil, domain.NewError(domain.ErrPoll, domain.MsgPollFailed, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var out TaskStatus
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, domain.NewError(domain.ErrPoll, domain.MsgPollFailed, fmt.Errorf("failed to decode task status: %w", err))
	}
	// a missing code is accepted, some task states omit it
	if out.Code != 0 && out.Code != domain.BackendCodeOK {
		c.logger.Warn("Backend returned error code for task status",
			slog.String("task_id", taskID),
			slog.Int("code", out.Code),
			slog.String("error", out.Error),
		)
		return nil, domain.NewError(domain.ErrPoll, fallback(out.Error, domain.MsgPollFailed), fmt.Errorf("task status code %d", out.Code))
	}

	return &out, nil
}

// Download streams the file at path into w and returns the number of bytes written
func (c *Client) Download(ctx context.Context, path string, w io.Writer) (int64, error) {
	if path == "" {
		return 0, domain.NewError(domain.ErrDownload, "no file to download", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(c.filesURL, pathDownload, url.Values{"path": {path}}), nil)
	if err != nil {
		return 0, domain.NewError(domain.ErrDownload, domain.MsgDownloadFailed, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, domain.NewError(domain.ErrDownload, domain.MsgDownloadFailed, err)
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		drain(resp.Body)
		return 0, domain.NewError(domain.ErrDownload, domain.MsgDownloadFailed, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, domain.NewError(domain.ErrDownload, domain.MsgDownloadFailed, err)
	}

	c.logger.Debug("File downloaded",
		slog.String("path", path),
		slog.Int64("bytes", n),
	)

	return n, nil
}

// SearchCourses runs a course search query
func (c *Client) SearchCourses(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	resp, err := c.postJSON(ctx, pathCourseSearch, req)
	if err != nil {
		return nil, domain.NewError(domain.ErrSearch, domain.MsgSearchFailed, err)
	}
	defer resp.Body.Close()

	var out SearchResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&out)

	if !isSuccess(resp.StatusCode) {
		c.logger.Warn("Backend rejected course search",
			slog.Int("status_code", resp.StatusCode),
			slog.String("error", out.Error),
		)
		return nil, domain.NewError(domain.ErrSearch, fallback(out.Error, domain.MsgSearchFailed), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if decodeErr != nil {
		return nil, domain.NewError(domain.ErrSearch, domain.MsgSearchFailed, fmt.Errorf("failed to decode search response: %w", decodeErr))
	}
	if out.Status != domain.BackendStatusSuccess || out.Code != domain.BackendCodeOK {
		c.logger.Warn("Backend returned error code for course search",
			slog.String("status", out.Status),
			slog.Int("code", out.Code),
			slog.String("error", out.Error),
		)
		return nil, domain.NewError(domain.ErrSearch, fallback(out.Error, domain.MsgSearchFailed), nil)
	}

	return &out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.baseURL, path, nil), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("Backend request failed",
			slog.String("path", path),
			slog.Any("error", err),
		)
		return nil, err
	}
	return resp, nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r, maxErrorBody))
}

func fallback(msg, def string) string {
	if strings.TrimSpace(msg) == "" {
		return def
	}
	return msg
}
