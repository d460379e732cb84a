package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cuongbtq/coursehub/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(&Config{BaseURL: srv.URL}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return client
}

func TestNewClient(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewClient(&Config{BaseURL: ""}, logger)
	assert.Error(t, err)

	_, err = NewClient(&Config{BaseURL: "localhost:8000"}, logger)
	assert.Error(t, err)

	c, err := NewClient(&Config{BaseURL: "http://backend:8000/v1/", FilesURL: "http://gateway:8080"}, logger)
	require.NoError(t, err)
	assert.Equal(t, "http://backend:8000/v1/task_status/abc", c.endpoint(c.baseURL, pathTaskStatus+"abc", nil))
	assert.Equal(t, "http://gateway:8080/api/upload", c.endpoint(c.filesURL, pathUpload, nil))
}

func TestClient_Upload(t *testing.T) {
	t.Run("returns file path", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, pathUpload, r.URL.Path)

			file, header, err := r.FormFile("file")
			require.NoError(t, err)
			defer file.Close()
			data, _ := io.ReadAll(file)

			assert.Equal(t, "courses.csv", header.Filename)
			assert.Equal(t, "id,title\n", string(data))

			_ = json.NewEncoder(w).Encode(UploadResponse{FilePath: "/data/uploads/courses.csv"})
		}))

		path, err := client.Upload(context.Background(), "courses.csv", strings.NewReader("id,title\n"))
		require.NoError(t, err)
		assert.Equal(t, "/data/uploads/courses.csv", path)
	})

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "rejected",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
			},
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>oops</html>"))
			},
		},
		{
			name: "missing path",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)

			_, err := client.Upload(context.Background(), "a.csv", strings.NewReader("x"))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrUpload)
			assert.Equal(t, domain.MsgUploadFailed, domain.Message(err))
		})
	}
}

func TestClient_StartBulkSearch(t *testing.T) {
	t.Run("sends contract body", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, pathBulkSearch, r.URL.Path)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "/in.csv", body["input_csv"])
			assert.Equal(t, "/in_results.csv", body["output_csv"])
			assert.Equal(t, float64(100), body["chunk_size"])
			assert.Equal(t, "id", body["key_column"])
			assert.Equal(t, false, body["require_reasoning"])
			assert.Equal(t, "ID: {id}", body["input_text_template"])

			_, _ = w.Write([]byte(`{"task_id":"t-1","status":"queued","code":200}`))
		}))

		resp, err := client.StartBulkSearch(context.Background(), BulkSearchRequest{
			InputCSV:          "/in.csv",
			OutputCSV:         "/in_results.csv",
			ChunkSize:         100,
			KeyColumn:         "id",
			InputTextTemplate: "ID: {id}",
		})
		require.NoError(t, err)
		assert.Equal(t, "t-1", resp.TaskID)
	})

	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "http error with message", status: http.StatusBadRequest, body: `{"error":"key column missing"}`, wantMsg: "key column missing"},
		{name: "http error without body", status: http.StatusInternalServerError, body: ``, wantMsg: domain.MsgStartFailed},
		{name: "embedded error code", status: http.StatusOK, body: `{"code":500,"error":"queue full"}`, wantMsg: "queue full"},
		{name: "embedded code without message", status: http.StatusOK, body: `{"code":422}`, wantMsg: domain.MsgStartFailed},
		{name: "missing task id", status: http.StatusOK, body: `{"code":200}`, wantMsg: domain.MsgStartFailed},
		{name: "invalid json", status: http.StatusOK, body: `not json`, wantMsg: domain.MsgStartFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			_, err := client.StartBulkSearch(context.Background(), BulkSearchRequest{})
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrSubmission)
			assert.Equal(t, tt.wantMsg, domain.Message(err))
		})
	}
}

func TestClient_ManagementEndpoints(t *testing.T) {
	var paths []string
	var bodies []map[string]any

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bodies = append(bodies, body)
		_, _ = w.Write([]byte(`{"task_id":"t","code":200}`))
	}))

	_, err := client.AddUpdateCourses(context.Background(), AddUpdateRequest{CSVPath: "/a.csv"})
	require.NoError(t, err)
	_, err = client.RemoveCourses(context.Background(), RemoveRequest{CSVPath: "/b.csv", ColumnName: "course_id"})
	require.NoError(t, err)

	assert.Equal(t, []string{pathAddUpdate, pathRemove}, paths)
	assert.Equal(t, map[string]any{"csv_path": "/a.csv"}, bodies[0])
	assert.Equal(t, map[string]any{"csv_path": "/b.csv", "column_name": "course_id"}, bodies[1])
}

func TestClient_TaskStatus(t *testing.T) {
	t.Run("decodes status", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/task_status/abc-123", r.URL.Path)
			_, _ = w.Write([]byte(`{"status":"processing","progress":4,"total":10,"code":200}`))
		}))

		st, err := client.TaskStatus(context.Background(), "abc-123")
		require.NoError(t, err)
		assert.Equal(t, "processing", st.Status)
		assert.Equal(t, 4, st.Progress)
		assert.Equal(t, 10, st.Total)
	})

	t.Run("http error", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

		_, err := client.TaskStatus(context.Background(), "abc")
		assert.ErrorIs(t, err, domain.ErrPoll)
		assert.Equal(t, domain.MsgPollFailed, domain.Message(err))
	})

	t.Run("bad json", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":`))
		}))

		_, err := client.TaskStatus(context.Background(), "abc")
		assert.ErrorIs(t, err, domain.ErrPoll)
	})

	t.Run("embedded error code", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"error","code":404,"error":"task not found"}`))
		}))

		_, err := client.TaskStatus(context.Background(), "abc")
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrPoll)
		assert.Equal(t, "task not found", domain.Message(err))
	})

	t.Run("embedded error code without detail", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"error","code":500}`))
		}))

		_, err := client.TaskStatus(context.Background(), "abc")
		assert.ErrorIs(t, err, domain.ErrPoll)
		assert.Equal(t, domain.MsgPollFailed, domain.Message(err))
	})

	t.Run("missing code is accepted", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"completed","progress":10,"total":10}`))
		}))

		st, err := client.TaskStatus(context.Background(), "abc")
		require.NoError(t, err)
		assert.Equal(t, "completed", st.Status)
	})
}

func TestClient_Download(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, pathDownload, r.URL.Path)
		if r.URL.Query().Get("path") != "/out/results.csv" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("id,score\n1,0.9\n"))
	}))

	var buf bytes.Buffer
	n, err := client.Download(context.Background(), "/out/results.csv", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(15), n)
	assert.Equal(t, "id,score\n1,0.9\n", buf.String())

	_, err = client.Download(context.Background(), "/missing.csv", &buf)
	assert.ErrorIs(t, err, domain.ErrDownload)

	_, err = client.Download(context.Background(), "", &buf)
	assert.ErrorIs(t, err, domain.ErrDownload)
}

func TestClient_SearchCourses(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
		wantLen int
	}{
		{
			name:    "success",
			status:  http.StatusOK,
			body:    `{"results":[{"course":{"name":"Decision-making"},"score":8,"reasoning":"fits"}],"status":"success","code":200}`,
			wantLen: 1,
		},
		{
			name:    "embedded failure",
			status:  http.StatusOK,
			body:    `{"results":[],"status":"error","error":"index offline","code":500}`,
			wantErr: "index offline",
		},
		{
			name:    "http failure with detail",
			status:  http.StatusBadRequest,
			body:    `{"status":"error","error":"query too long","code":400}`,
			wantErr: "query too long",
		},
		{
			name:    "http failure",
			status:  http.StatusBadGateway,
			body:    ``,
			wantErr: "unexpected status 502",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req SearchRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				assert.Equal(t, "negotiation", req.Query)
				assert.Equal(t, []string{"Spanish"}, req.Languages)

				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))

			resp, err := client.SearchCourses(context.Background(), SearchRequest{
				Query:      "negotiation",
				NumCourses: 5,
				Languages:  []string{"Spanish"},
			})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrSearch)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}

			require.NoError(t, err)
			require.Len(t, resp.Results, tt.wantLen)
			assert.Equal(t, "Decision-making", resp.Results[0].Course["name"])
			assert.Equal(t, "fits", resp.Results[0].Reasoning)
		})
	}
}
