// Package workflow submits bulk jobs and searches to the course backend.
package workflow

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cuongbtq/coursehub/internal/backend"
	"github.com/cuongbtq/coursehub/internal/domain"
	"github.com/cuongbtq/coursehub/internal/guard"
	"github.com/cuongbtq/coursehub/internal/mapping"
	"github.com/cuongbtq/coursehub/internal/session"
)

const (
	DefaultChunkSize  = 100
	DefaultNumCourses = 10

	resultsSuffix = "_results.csv"
)

// Languages offered by the search filter
var Languages = []string{"American English", "Spanish"}

// Uploader stores a file where the backend can read it and returns its path
type Uploader interface {
	Upload(ctx context.Context, filename string, content io.Reader) (string, error)
}

// Backend starts tasks and runs searches. *backend.Client satisfies it.
type Backend interface {
	StartBulkSearch(ctx context.Context, req backend.BulkSearchRequest) (*backend.TaskResponse, error)
	AddUpdateCourses(ctx context.Context, req backend.AddUpdateRequest) (*backend.TaskResponse, error)
	RemoveCourses(ctx context.Context, req backend.RemoveRequest) (*backend.TaskResponse, error)
	SearchCourses(ctx context.Context, req backend.SearchRequest) (*backend.SearchResponse, error)
}

// Config holds submission defaults
type Config struct {
	ChunkSize   int
	HeaderSplit mapping.SplitStrategy
}

// Service runs the submission workflows
type Service struct {
	uploader  Uploader
	backend   Backend
	guard     guard.Guard
	logger    *slog.Logger
	chunkSize int
	split     mapping.SplitStrategy
}

// NewService creates a workflow service. A nil guard falls back to an in-process one.
func NewService(uploader Uploader, b Backend, g guard.Guard, cfg Config, logger *slog.Logger) *Service {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	split := cfg.HeaderSplit
	if split == "" {
		split = mapping.SplitNaive
	}
	if g == nil {
		g = guard.NewMemoryGuard()
	}

	return &Service{
		uploader:  uploader,
		backend:   b,
		guard:     g,
		logger:    logger,
		chunkSize: chunkSize,
		split:     split,
	}
}

// File is an uploaded CSV
type File struct {
	Name    string
	Size    int64
	Content io.Reader
}

// Submission describes a started backend task
type Submission struct {
	Kind       string
	TaskID     string
	InputPath  string
	OutputPath string
	KeyColumn  string
	Template   string
	Records    int
}

// Preview is the mapping built from a CSV header
type Preview struct {
	Rows    []mapping.Row
	Records int
	// Quoted warns that a quoted header may have been split at an embedded comma
	Quoted bool
}

// PreviewMapping parses the header of content into an editable mapping
func (s *Service) PreviewMapping(content io.Reader) (*Preview, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	m, h, err := mapping.Parse(bytes.NewReader(data), s.split)
	if err != nil {
		return nil, err
	}
	if h.Quoted {
		s.logger.Warn("Header row contains quotes; naive split may cut quoted column names",
			slog.Any("columns", h.Columns),
		)
	}

	records, err := mapping.RecordCount(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	return &Preview{Rows: m.Rows(), Records: records, Quoted: h.Quoted}, nil
}

// BulkRequest asks for a bulk inference run over a CSV
type BulkRequest struct {
	File             File
	Mapping          *mapping.Mapping
	RequireReasoning bool
	IdempotencyKey   string
}

// SubmitBulkInference validates the mapping, uploads the file and starts the
// bulk search task. A missing key column fails before any network call.
func (s *Service) SubmitBulkInference(ctx context.Context, req BulkRequest) (*Submission, error) {
	if req.Mapping == nil {
		return nil, domain.NewError(domain.ErrValidation, "column mapping is required", nil)
	}
	if err := req.Mapping.Validate(); err != nil {
		return nil, err
	}
	if err := validateFile(req.File); err != nil {
		return nil, err
	}

	key, _ := req.Mapping.KeyColumn()
	template := req.Mapping.Template()

	guardKey := guard.Key(req.IdempotencyKey, session.KindBulkInference, req.File.Name, req.File.Size)
	release, err := s.guard.Acquire(ctx, guardKey)
	if err != nil {
		return nil, err
	}
	defer release()

	inputPath, err := s.uploader.Upload(ctx, req.File.Name, req.File.Content)
	if err != nil {
		return nil, err
	}
	outputPath := OutputPath(inputPath)

	resp, err := s.backend.StartBulkSearch(ctx, backend.BulkSearchRequest{
		InputCSV:          inputPath,
		OutputCSV:         outputPath,
		ChunkSize:         s.chunkSize,
		KeyColumn:         key,
		RequireReasoning:  req.RequireReasoning,
		InputTextTemplate: template,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Bulk inference submitted",
		slog.String("task_id", resp.TaskID),
		slog.String("input_path", inputPath),
		slog.String("key_column", key),
	)

	return &Submission{
		Kind:       session.KindBulkInference,
		TaskID:     resp.TaskID,
		InputPath:  inputPath,
		OutputPath: outputPath,
		KeyColumn:  key,
		Template:   template,
	}, nil
}

// ManageRequest asks for a course management action over a CSV
type ManageRequest struct {
	Action         Action
	File           File
	Confirm        bool
	ColumnName     string
	IdempotencyKey string
}

// SubmitManagement uploads the file and starts the add, update or delete task
func (s *Service) SubmitManagement(ctx context.Context, req ManageRequest) (*Submission, error) {
	spec, ok := actionSpecs[req.Action]
	if !ok {
		return nil, domain.NewError(domain.ErrValidation, fmt.Sprintf("unknown action %q", req.Action), nil)
	}
	if !req.Confirm {
		return nil, domain.NewError(domain.ErrValidation, "Please confirm the action before proceeding", nil)
	}
	column := strings.TrimSpace(req.ColumnName)
	if spec.NeedsColumn && column == "" {
		return nil, domain.NewError(domain.ErrValidation, "column_name is required to delete courses", nil)
	}
	if err := validateFile(req.File); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(req.File.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	h, err := mapping.ParseHeader(bytes.NewReader(data), s.split)
	if err != nil {
		return nil, err
	}
	if spec.NeedsColumn && !contains(h.Columns, column) {
		return nil, domain.NewError(domain.ErrValidation, fmt.Sprintf("column %q is not in the file header", column), nil)
	}
	records, err := mapping.RecordCount(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	guardKey := guard.Key(req.IdempotencyKey, spec.Kind, req.File.Name, req.File.Size)
	release, err := s.guard.Acquire(ctx, guardKey)
	if err != nil {
		return nil, err
	}
	defer release()

	csvPath, err := s.uploader.Upload(ctx, req.File.Name, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	var resp *backend.TaskResponse
	if spec.NeedsColumn {
		resp, err = s.backend.RemoveCourses(ctx, backend.RemoveRequest{CSVPath: csvPath, ColumnName: column})
	} else {
		resp, err = s.backend.AddUpdateCourses(ctx, backend.AddUpdateRequest{CSVPath: csvPath})
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("Course management task submitted",
		slog.String("action", string(req.Action)),
		slog.String("task_id", resp.TaskID),
		slog.String("csv_path", csvPath),
		slog.Int("records", records),
	)

	return &Submission{
		Kind:      spec.Kind,
		TaskID:    resp.TaskID,
		InputPath: csvPath,
		KeyColumn: column,
		Records:   records,
	}, nil
}

// SearchRequest is a course search query
type SearchRequest struct {
	Query            string
	NumCourses       int
	Languages        []string
	RequireReasoning bool
}

// Search runs a course search
func (s *Service) Search(ctx context.Context, req SearchRequest) (*backend.SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.NewError(domain.ErrValidation, "query is required", nil)
	}
	num := req.NumCourses
	if num <= 0 {
		num = DefaultNumCourses
	}
	languages := req.Languages
	if languages == nil {
		languages = []string{}
	}

	resp, err := s.backend.SearchCourses(ctx, backend.SearchRequest{
		Query:            query,
		NumCourses:       num,
		Languages:        languages,
		RequireReasoning: req.RequireReasoning,
	})
	if err != nil {
		s.logger.Error("Course search failed",
			slog.String("query", query),
			slog.Any("error", err),
		)
		return nil, err
	}

	return resp, nil
}

// OutputPath derives the results path of a bulk run from its input path
func OutputPath(inputPath string) string {
	if n := len(inputPath); n >= 4 && strings.EqualFold(inputPath[n-4:], ".csv") {
		return inputPath[:n-4] + resultsSuffix
	}
	return inputPath + resultsSuffix
}

func validateFile(f File) error {
	if f.Content == nil || strings.TrimSpace(f.Name) == "" {
		return domain.NewError(domain.ErrValidation, "a CSV file is required", nil)
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
