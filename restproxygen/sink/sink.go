// Package sink provides output destinations for generated clients.
package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// GeneratedMarker is the header line that identifies generated Go files.
// FilesystemSink only replaces files that start with a line matching it.
const GeneratedMarker = "// Code generated by restproxy; DO NOT EDIT."

// ErrNotGenerated is returned when a write would replace a file that was not
// produced by the generator.
var ErrNotGenerated = errors.New("existing file is not generated by restproxy")

// OutputSink receives generated file content.
// Implementations must be safe for concurrent calls.
type OutputSink interface {
	// WriteFile writes content to path, which is relative to the sink.
	// It reports whether the stored content changed.
	WriteFile(ctx context.Context, path string, content []byte) (changed bool, err error)
}

// FilesystemSink writes into a package directory on the local filesystem.
type FilesystemSink struct {
	// Root is the base directory for all writes.
	Root string

	// Mode is the file permission mode (default: 0644).
	Mode os.FileMode
}

// NewFilesystemSink creates a FilesystemSink writing to root.
func NewFilesystemSink(root string) *FilesystemSink {
	return &FilesystemSink{Root: root, Mode: 0644}
}

// WriteFile writes content to path within the root directory through a temp
// file and rename. A file whose content already equals content is left
// untouched, so watchers do not see a write. Existing files without
// GeneratedMarker are never replaced.
func (s *FilesystemSink) WriteFile(ctx context.Context, path string, content []byte) (bool, error) {
	if err := ValidatePath(path); err != nil {
		return false, fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fullPath := filepath.Join(s.Root, filepath.FromSlash(path))

	existing, err := os.ReadFile(fullPath)
	switch {
	case err == nil:
		if bytes.Equal(existing, content) {
			return false, nil
		}
		if !isGenerated(existing) {
			return false, fmt.Errorf("%s: %w", fullPath, ErrNotGenerated)
		}
	case !errors.Is(err, os.ErrNotExist):
		return false, fmt.Errorf("failed to read existing file: %w", err)
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("failed to create directories: %w", err)
	}

	mode := s.Mode
	if mode == 0 {
		mode = 0644
	}

	tempFile, err := os.CreateTemp(dir, ".restproxy-*.tmp")
	if err != nil {
		return false, fmt.Errorf("failed to create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := func() {
		_ = os.Remove(tempPath)
	}

	_, writeErr := tempFile.Write(content)
	closeErr := tempFile.Close()
	if writeErr != nil {
		cleanup()
		return false, fmt.Errorf("failed to write temp file: %w", writeErr)
	}
	if closeErr != nil {
		cleanup()
		return false, fmt.Errorf("failed to close temp file: %w", closeErr)
	}
	if err := os.Chmod(tempPath, mode); err != nil {
		cleanup()
		return false, fmt.Errorf("failed to set file mode: %w", err)
	}

	if err := ctx.Err(); err != nil {
		cleanup()
		return false, err
	}
	if err := os.Rename(tempPath, fullPath); err != nil {
		cleanup()
		return false, fmt.Errorf("failed to rename temp file: %w", err)
	}
	return true, nil
}

func isGenerated(content []byte) bool {
	first, _, _ := bytes.Cut(content, []byte("\n"))
	return string(bytes.TrimSpace(first)) == GeneratedMarker
}

// MemorySink stores generated files in memory.
type MemorySink struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewMemorySink creates a new MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{files: make(map[string][]byte)}
}

// WriteFile stores a copy of content under path.
func (s *MemorySink) WriteFile(ctx context.Context, path string, content []byte) (bool, error) {
	if err := ValidatePath(path); err != nil {
		return false, fmt.Errorf("invalid path %q: %w", path, err)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if bytes.Equal(s.files[path], content) {
		return false, nil
	}
	s.files[path] = bytes.Clone(content)
	return true, nil
}

// Get returns the content of a single file, or nil if not found.
func (s *MemorySink) Get(path string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return bytes.Clone(s.files[path])
}

// Len returns the number of stored files.
func (s *MemorySink) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// ValidatePath checks that path is a clean relative slash-separated path
// naming a Go source file inside the sink.
func ValidatePath(path string) error {
	if path == "" {
		return errors.New("path is empty")
	}
	if filepath.IsAbs(path) || strings.HasPrefix(path, "/") {
		return errors.New("absolute paths not allowed")
	}
	if len(path) >= 2 && path[1] == ':' && ((path[0] >= 'A' && path[0] <= 'Z') || (path[0] >= 'a' && path[0] <= 'z')) {
		return errors.New("absolute paths not allowed")
	}
	for _, part := range strings.Split(path, "/") {
		if part == ".." {
			return errors.New("path traversal not allowed")
		}
	}
	if cleaned := filepath.ToSlash(filepath.Clean(path)); cleaned != path {
		return fmt.Errorf("path is not clean (expected %q, got %q)", cleaned, path)
	}
	if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
		return errors.New("output must be a non-test .go file")
	}
	return nil
}
