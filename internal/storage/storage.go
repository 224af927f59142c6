// Package storage provides file-based JSON storage for server state.
//
// Keys are slices of path segments: []string{"permission", "gate"} is stored
// at <base>/permission/gate.json. Writes go through a lock file and an atomic
// rename so that a reader (or a file watcher) never sees a partial document.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var (
	ErrNotFound = errors.New("not found")
)

// Storage provides file-based JSON storage.
type Storage struct {
	basePath string
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
}

// New creates a new Storage instance.
func New(basePath string) *Storage {
	return &Storage{
		basePath: basePath,
		locks:    make(map[string]*sync.Mutex),
	}
}

// BasePath returns the storage root directory.
func (s *Storage) BasePath() string {
	return s.basePath
}

// FilePath returns the file backing the given key.
func (s *Storage) FilePath(path []string) string {
	parts := append([]string{s.basePath}, path...)
	return filepath.Join(parts...) + ".json"
}

// Get retrieves a value from storage.
func (s *Storage) Get(ctx context.Context, path []string, v any) error {
	return readJSON(s.FilePath(path), v)
}

// Put stores a value in storage with file locking.
func (s *Storage) Put(ctx context.Context, path []string, v any) error {
	filePath := s.FilePath(path)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	return s.withLock(filePath, func() error {
		return writeJSON(filePath, v)
	})
}

// Update performs a locked read-modify-write. fn receives v populated from
// the stored document, or left untouched when none exists yet.
func (s *Storage) Update(ctx context.Context, path []string, v any, fn func() error) error {
	filePath := s.FilePath(path)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	return s.withLock(filePath, func() error {
		if err := readJSON(filePath, v); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := fn(); err != nil {
			return err
		}
		return writeJSON(filePath, v)
	})
}

// Delete removes a value from storage.
func (s *Storage) Delete(ctx context.Context, path []string) error {
	filePath := s.FilePath(path)

	if _, err := os.Stat(filepath.Dir(filePath)); os.IsNotExist(err) {
		return nil
	}
	return s.withLock(filePath, func() error {
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		return nil
	})
}

// Exists checks if a path exists.
func (s *Storage) Exists(ctx context.Context, path []string) bool {
	_, err := os.Stat(s.FilePath(path))
	return err == nil
}

// withLock runs fn while holding both the in-process mutex for filePath
// and a flock on filePath+".lock". The lock file is never removed: deleting
// it would let another process lock a fresh inode while this one still
// holds the old.
func (s *Storage) withLock(filePath string, fn func() error) error {
	s.mu.Lock()
	mu, ok := s.locks[filePath]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[filePath] = mu
	}
	s.mu.Unlock()

	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(filePath+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer f.Close()
	if err := flock(f); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer funlock(f)

	return fn()
}

func readJSON(filePath string, v any) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read file: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal: %w", err)
	}
	return nil
}

// writeJSON writes to a temp file first, then renames over the target.
func writeJSON(filePath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
