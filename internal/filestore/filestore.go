// Package filestore keeps uploaded CSV files and serves them back by path.
package filestore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuongbtq/coursehub/internal/domain"
	"github.com/google/uuid"
)

// Store saves uploads and opens them again by the path Save returned
type Store interface {
	Save(ctx context.Context, filename string, content io.Reader) (string, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
}

// objectName returns a collision free name that keeps the original base name
func objectName(filename string) string {
	base := filepath.Base(filepath.Clean("/" + filename))
	if base == "/" || base == "." {
		base = "upload.csv"
	}
	return uuid.NewString() + "_" + base
}

// LocalStore keeps files in a directory on local disk
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed
func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upload dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

// Save implements Store
func (s *LocalStore) Save(ctx context.Context, filename string, content io.Reader) (string, error) {
	path := filepath.Join(s.root, objectName(filename))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	return path, nil
}

// Open implements Store. Paths outside the root are reported as not found.
func (s *LocalStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	clean := filepath.Clean(path)
	rel, err := filepath.Rel(s.root, clean)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
		return nil, domain.NewError(domain.ErrNotFound, "file not found", nil)
	}

	f, err := os.Open(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NewError(domain.ErrNotFound, "file not found", nil)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}
