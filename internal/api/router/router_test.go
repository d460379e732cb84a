package router

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/coursehub/internal/api/dto"
	"github.com/cuongbtq/coursehub/internal/api/handler"
	"github.com/cuongbtq/coursehub/internal/backend"
	"github.com/cuongbtq/coursehub/internal/domain"
	"github.com/cuongbtq/coursehub/internal/filestore"
	"github.com/cuongbtq/coursehub/internal/session"
	"github.com/cuongbtq/coursehub/internal/workflow"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const coursesCSV = "course_id,title,description\n1,Go,Intro\n2,SQL,Joins\n"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBackend struct {
	mu     sync.Mutex
	bulk   []backend.BulkSearchRequest
	remove []backend.RemoveRequest
	upsert []backend.AddUpdateRequest
	search []backend.SearchRequest
	err    error
}

func (b *fakeBackend) StartBulkSearch(ctx context.Context, req backend.BulkSearchRequest) (*backend.TaskResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bulk = append(b.bulk, req)
	if b.err != nil {
		return nil, b.err
	}
	return &backend.TaskResponse{TaskID: "task-bulk", Code: 200}, nil
}

func (b *fakeBackend) AddUpdateCourses(ctx context.Context, req backend.AddUpdateRequest) (*backend.TaskResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.upsert = append(b.upsert, req)
	if b.err != nil {
		return nil, b.err
	}
	return &backend.TaskResponse{TaskID: "task-upsert", Code: 200}, nil
}

func (b *fakeBackend) RemoveCourses(ctx context.Context, req backend.RemoveRequest) (*backend.TaskResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.remove = append(b.remove, req)
	if b.err != nil {
		return nil, b.err
	}
	return &backend.TaskResponse{TaskID: "task-remove", Code: 200}, nil
}

func (b *fakeBackend) SearchCourses(ctx context.Context, req backend.SearchRequest) (*backend.SearchResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.search = append(b.search, req)
	if b.err != nil {
		return nil, b.err
	}
	return &backend.SearchResponse{
		Status: "success",
		Code:   200,
		Results: []backend.SearchResult{
			{Course: map[string]any{"title": "Go"}, Score: 0.9},
		},
	}, nil
}

// completingRunner reports one progress update and completes
type completingRunner struct{}

func (completingRunner) Run(ctx context.Context, taskID string, onUpdate func(domain.TaskHandle)) (domain.TaskHandle, error) {
	h := domain.TaskHandle{TaskID: taskID, State: domain.PollStateCompleted, Status: "completed", Progress: 2, Total: 2}
	onUpdate(h)
	return h, nil
}

type staticChecker struct{ err error }

func (s staticChecker) HealthCheck(ctx context.Context) error { return s.err }

// pooledChecker also reports connection pool statistics
type pooledChecker struct {
	staticChecker
	stats sql.DBStats
}

func (p pooledChecker) Stats() sql.DBStats { return p.stats }

type testEnv struct {
	router   *gin.Engine
	backend  *fakeBackend
	sessions *session.MemoryStore
	files    *filestore.LocalStore
	registry *session.Registry
}

func newTestEnv(t *testing.T, checks map[string]handler.HealthChecker) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	files, err := filestore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	logger := testLogger()
	fb := &fakeBackend{}
	store := session.NewMemoryStore()
	registry := session.NewRegistry(store, completingRunner{}, logger)
	t.Cleanup(func() { _ = registry.Shutdown(context.Background()) })

	h := handler.NewHandler(&handler.Dependencies{
		Logger:       logger,
		ServiceName:  "coursehub-api",
		Workflow:     workflow.NewService(workflow.StoreUploader{Store: files}, fb, nil, workflow.Config{}, logger),
		Tracker:      workflow.NewTracker(store, registry, logger),
		Sessions:     store,
		Manager:      registry,
		Files:        files,
		PageSize:     20,
		HealthChecks: checks,
	})

	return &testEnv{
		router:   SetupRouter(h, Options{Logger: logger, MaxUploadBytes: 1 << 20}),
		backend:  fb,
		sessions: store,
		files:    files,
		registry: registry,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func multipartRequest(t *testing.T, target string, fields map[string]string, filename, content string) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, w)["error"]
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]handler.HealthChecker
		wantStatus int
		wantState  string
	}{
		{
			name:       "no dependencies",
			wantStatus: http.StatusOK,
			wantState:  "healthy",
		},
		{
			name:       "all dependencies up",
			checks:     map[string]handler.HealthChecker{"postgres": staticChecker{}},
			wantStatus: http.StatusOK,
			wantState:  "healthy",
		},
		{
			name: "one dependency down",
			checks: map[string]handler.HealthChecker{
				"postgres": staticChecker{},
				"redis":    staticChecker{err: errors.New("connection refused")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.checks)

			w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
			assert.Equal(t, tt.wantStatus, w.Code)

			body := decode[map[string]any](t, w)
			assert.Equal(t, tt.wantState, body["status"])
			assert.Equal(t, "coursehub-api", body["service"])
			assert.NotContains(t, body, "pools")
		})
	}

	t.Run("pool statistics", func(t *testing.T) {
		env := newTestEnv(t, map[string]handler.HealthChecker{
			"database": pooledChecker{stats: sql.DBStats{MaxOpenConnections: 25, OpenConnections: 3, InUse: 1, Idle: 2}},
			"redis":    staticChecker{},
		})

		w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		require.Equal(t, http.StatusOK, w.Code)

		body := decode[map[string]any](t, w)
		pools, ok := body["pools"].(map[string]any)
		require.True(t, ok, w.Body.String())
		require.Contains(t, pools, "database")
		assert.NotContains(t, pools, "redis")

		db := pools["database"].(map[string]any)
		assert.Equal(t, float64(25), db["max_open"])
		assert.Equal(t, float64(3), db["open"])
		assert.Equal(t, float64(1), db["in_use"])
		assert.Equal(t, float64(2), db["idle"])
	})
}

func TestUploadAndDownload(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(multipartRequest(t, "/api/upload", nil, "courses.csv", coursesCSV))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	up := decode[dto.UploadResponse](t, w)
	assert.True(t, strings.HasSuffix(up.FilePath, "_courses.csv"))

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/download?path="+up.FilePath, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, coursesCSV, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "_courses.csv")

	t.Run("missing file field", func(t *testing.T) {
		w := env.do(multipartRequest(t, "/api/upload", map[string]string{"x": "y"}, "", ""))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "a CSV file is required", errorOf(t, w))
	})

	t.Run("missing path", func(t *testing.T) {
		w := env.do(httptest.NewRequest(http.MethodGet, "/api/download", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("path outside the store", func(t *testing.T) {
		w := env.do(httptest.NewRequest(http.MethodGet, "/api/download?path=/etc/passwd", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "file not found", errorOf(t, w))
	})
}

func TestPreviewMapping(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(multipartRequest(t, "/api/v1/mappings/preview", nil, "courses.csv", coursesCSV))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[dto.PreviewResponse](t, w)
	require.Len(t, resp.Rows, 3)
	assert.Equal(t, "title", resp.Rows[1].SourceColumn)
	assert.Equal(t, "title", resp.Rows[1].DisplayName)
	assert.False(t, resp.Rows[1].IsKey)
	assert.Equal(t, 2, resp.Records)

	w = env.do(multipartRequest(t, "/api/v1/mappings/preview", nil, "empty.csv", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkInference(t *testing.T) {
	withKey := `[{"id":1,"column_name":"course_id","custom_name":"id","is_primary_key":true},` +
		`{"id":2,"column_name":"title","custom_name":"Title","is_primary_key":false}]`
	noKey := `[{"id":1,"column_name":"course_id","custom_name":"id","is_primary_key":false}]`

	t.Run("missing key column", func(t *testing.T) {
		env := newTestEnv(t, nil)

		w := env.do(multipartRequest(t, "/api/v1/bulk-inference", map[string]string{"mapping": noKey}, "courses.csv", coursesCSV))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, domain.MsgMissingKeyColumn, errorOf(t, w))
		assert.Empty(t, env.backend.bulk)
	})

	t.Run("missing mapping", func(t *testing.T) {
		env := newTestEnv(t, nil)

		w := env.do(multipartRequest(t, "/api/v1/bulk-inference", nil, "courses.csv", coursesCSV))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "column mapping is required", errorOf(t, w))
	})

	t.Run("malformed mapping", func(t *testing.T) {
		env := newTestEnv(t, nil)

		w := env.do(multipartRequest(t, "/api/v1/bulk-inference", map[string]string{"mapping": "{"}, "courses.csv", coursesCSV))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("backend rejects the job", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.backend.err = domain.NewError(domain.ErrSubmission, "queue is full", nil)

		w := env.do(multipartRequest(t, "/api/v1/bulk-inference", map[string]string{"mapping": withKey}, "courses.csv", coursesCSV))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "queue is full", errorOf(t, w))
	})

	t.Run("submits, completes and downloads", func(t *testing.T) {
		env := newTestEnv(t, nil)

		req := multipartRequest(t, "/api/v1/bulk-inference", map[string]string{
			"mapping":           withKey,
			"require_reasoning": "true",
		}, "courses.csv", coursesCSV)
		req.Header.Set(handler.IdempotencyHeader, "idem-1")

		w := env.do(req)
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

		resp := decode[dto.BulkInferenceResponse](t, w)
		assert.Equal(t, "course_id", resp.KeyColumn)
		assert.Equal(t, "id: {course_id}\nTitle: {title}", resp.Template)
		assert.Equal(t, "task-bulk", resp.Session.TaskID)
		assert.True(t, strings.HasSuffix(resp.Session.OutputPath, "_courses_results.csv"))

		require.Len(t, env.backend.bulk, 1)
		sent := env.backend.bulk[0]
		assert.True(t, sent.RequireReasoning)
		assert.Equal(t, 100, sent.ChunkSize)
		assert.Equal(t, resp.Session.InputPath, sent.InputCSV)
		assert.Equal(t, resp.Session.OutputPath, sent.OutputCSV)

		id := resp.Session.SessionID
		require.Eventually(t, func() bool {
			s, err := env.sessions.Get(context.Background(), id)
			return err == nil && s.State == domain.PollStateCompleted
		}, time.Second, 5*time.Millisecond)

		w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id, nil))
		require.Equal(t, http.StatusOK, w.Code)
		got := decode[dto.SessionDTO](t, w)
		assert.Equal(t, 2, got.Progress)
		assert.Equal(t, float64(100), got.Percent)

		require.NoError(t, os.WriteFile(resp.Session.OutputPath, []byte("course_id,score\n1,0.9\n"), 0o644))

		w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/download", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "course_id,score\n1,0.9\n", w.Body.String())
	})
}

func TestCourseActions(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/courses/actions?count=5", nil))
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[dto.ListActionsResponse](t, w)
	require.Len(t, resp.Actions, 3)
	assert.Equal(t, `Are you sure you want to add "5 new items" ?`, resp.Actions[0].Confirmation)
	assert.Equal(t, "Existing Data Updated", resp.Actions[1].Success)
	assert.Equal(t, "5 Items Deleted Successfully", resp.Actions[2].Success)
	assert.True(t, resp.Actions[2].NeedsColumn)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/courses/actions?count=-1", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestManageCourses(t *testing.T) {
	tests := []struct {
		name       string
		action     string
		fields     map[string]string
		wantStatus int
		wantError  string
	}{
		{
			name:       "unknown action",
			action:     "archive",
			fields:     map[string]string{"confirm": "true"},
			wantStatus: http.StatusBadRequest,
			wantError:  `unknown action "archive"`,
		},
		{
			name:       "not confirmed",
			action:     "add",
			wantStatus: http.StatusBadRequest,
			wantError:  "Please confirm the action before proceeding",
		},
		{
			name:       "delete without column",
			action:     "delete",
			fields:     map[string]string{"confirm": "true"},
			wantStatus: http.StatusBadRequest,
			wantError:  "column_name is required to delete courses",
		},
		{
			name:       "bad confirm value",
			action:     "add",
			fields:     map[string]string{"confirm": "maybe"},
			wantStatus: http.StatusBadRequest,
			wantError:  "confirm must be true or false",
		},
		{
			name:       "add",
			action:     "add",
			fields:     map[string]string{"confirm": "true"},
			wantStatus: http.StatusAccepted,
		},
		{
			name:       "delete",
			action:     "DELETE",
			fields:     map[string]string{"confirm": "true", "column_name": "course_id"},
			wantStatus: http.StatusAccepted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)

			w := env.do(multipartRequest(t, "/api/v1/courses/"+tt.action, tt.fields, "courses.csv", coursesCSV))
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, errorOf(t, w))
				return
			}

			resp := decode[dto.ManageResponse](t, w)
			assert.Equal(t, 2, resp.Records)
			assert.Equal(t, 2, resp.Session.Total)
		})
	}

	t.Run("delete sends the column", func(t *testing.T) {
		env := newTestEnv(t, nil)

		w := env.do(multipartRequest(t, "/api/v1/courses/delete",
			map[string]string{"confirm": "true", "column_name": "course_id"}, "courses.csv", coursesCSV))
		require.Equal(t, http.StatusAccepted, w.Code)

		resp := decode[dto.ManageResponse](t, w)
		assert.Equal(t, "2 Items Deleted Successfully", resp.Success)
		assert.Equal(t, "DELETE_COURSES", resp.Session.Kind)

		require.Len(t, env.backend.remove, 1)
		assert.Equal(t, "course_id", env.backend.remove[0].ColumnName)
	})
}

func seedSessions(t *testing.T, store session.Store, n int, state string) []string {
	t.Helper()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = uuid.NewString()
		created := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Create(context.Background(), &session.Session{
			ID:        ids[i],
			Kind:      session.KindAddCourses,
			TaskID:    "task-" + ids[i][:8],
			State:     state,
			CreatedAt: created,
			UpdatedAt: created,
		}))
	}
	return ids
}

func TestListSessions(t *testing.T) {
	env := newTestEnv(t, nil)
	ids := seedSessions(t, env.sessions, 3, domain.PollStatePolling)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/sessions?page_size=2", nil))
	require.Equal(t, http.StatusOK, w.Code)

	first := decode[dto.ListSessionsResponse](t, w)
	require.Len(t, first.Sessions, 2)
	assert.Equal(t, ids[2], first.Sessions[0].SessionID)
	assert.Equal(t, ids[1], first.Sessions[1].SessionID)
	require.NotEmpty(t, first.NextCursor)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/sessions?page_size=2&cursor="+first.NextCursor, nil))
	require.Equal(t, http.StatusOK, w.Code)

	second := decode[dto.ListSessionsResponse](t, w)
	require.Len(t, second.Sessions, 1)
	assert.Equal(t, ids[0], second.Sessions[0].SessionID)
	assert.Empty(t, second.NextCursor)

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/sessions?cursor=not-base64!", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid cursor", errorOf(t, w))

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/sessions?state=COMPLETED", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[dto.ListSessionsResponse](t, w).Sessions)
}

func TestGetSession(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/sessions/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "session_id must be a valid UUID", errorOf(t, w))

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "session not found", errorOf(t, w))
}

func TestCancelSession(t *testing.T) {
	env := newTestEnv(t, nil)
	polling := seedSessions(t, env.sessions, 1, domain.PollStatePolling)[0]
	done := seedSessions(t, env.sessions, 1, domain.PollStateCompleted)[0]

	w := env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+polling, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.PollStateCanceled, decode[dto.SessionDTO](t, w).State)

	w = env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+done, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.PollStateCompleted, decode[dto.SessionDTO](t, w).State)

	w = env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadSession_NotReady(t *testing.T) {
	env := newTestEnv(t, nil)
	id := seedSessions(t, env.sessions, 1, domain.PollStatePolling)[0]

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+id+"/download", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Task has not completed yet", errorOf(t, w))
}

func TestSearch(t *testing.T) {
	t.Run("results", func(t *testing.T) {
		env := newTestEnv(t, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/search",
			strings.NewReader(`{"query":"golang","languages":["Spanish"]}`))
		req.Header.Set("Content-Type", "application/json")

		w := env.do(req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		resp := decode[backend.SearchResponse](t, w)
		require.Len(t, resp.Results, 1)
		assert.Equal(t, "Go", resp.Results[0].Course["title"])

		require.Len(t, env.backend.search, 1)
		assert.Equal(t, 10, env.backend.search[0].NumCourses)
		assert.Equal(t, []string{"Spanish"}, env.backend.search[0].Languages)
	})

	t.Run("empty query", func(t *testing.T) {
		env := newTestEnv(t, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")

		w := env.do(req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, env.backend.search)
	})

	t.Run("backend failure", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.backend.err = errors.New("dial tcp: connection refused")

		req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query":"golang"}`))
		req.Header.Set("Content-Type", "application/json")

		w := env.do(req)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Course search failed", errorOf(t, w))
	})

	t.Run("backend rejection", func(t *testing.T) {
		env := newTestEnv(t, nil)
		env.backend.err = domain.NewError(domain.ErrSearch, "index offline", nil)

		req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query":"golang"}`))
		req.Header.Set("Content-Type", "application/json")

		w := env.do(req)
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "index offline", errorOf(t, w))
	})
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		wantOrigin string
	}{
		{name: "any origin", origin: "http://a.test", wantOrigin: "*"},
		{name: "allowed origin", allowed: []string{"http://a.test"}, origin: "http://a.test", wantOrigin: "http://a.test"},
		{name: "other origin", allowed: []string{"http://a.test"}, origin: "http://b.test", wantOrigin: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(CORSMiddleware(tt.allowed))
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

			req := httptest.NewRequest(http.MethodOptions, "/x", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, http.StatusNoContent, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}
