// Package querysource stores and fetches bazel query outputs so a graph can
// be built without running bazel locally.
package querysource

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Store.Get when no query output exists at key.
var ErrNotFound = errors.New("query output not found")

// Store abstracts blob storage for query outputs.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	// Get returns an error wrapping ErrNotFound for missing keys.
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// LocalStore implements Store using the local filesystem.
type LocalStore struct {
	BaseDir string
}

// NewLocalStore creates a LocalStore rooted at the given directory.
func NewLocalStore(baseDir string) *LocalStore {
	return &LocalStore{BaseDir: baseDir}
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.BaseDir, filepath.FromSlash(strings.TrimPrefix(key, "/")))
}

// Put stores a query output.
func (s *LocalStore) Put(ctx context.Context, key string, data []byte) error {
	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating query output dir: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Get retrieves a query output.
func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path(key))
	}
	if err != nil {
		return nil, fmt.Errorf("reading query output %s: %w", key, err)
	}
	return data, nil
}

// Delete removes a query output. Missing outputs are not an error.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing query output %s: %w", key, err)
	}
	return nil
}
