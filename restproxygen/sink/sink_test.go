package sink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const generated = GeneratedMarker + "\n\npackage p\n"

func TestValidatePath(t *testing.T) {
	tests := []struct {
		path   string
		errMsg string
	}{
		{"client_restproxy.go", ""},
		{"sub/client_restproxy.go", ""},
		{"", "empty"},
		{"/abs/client.go", "absolute paths not allowed"},
		{"C:/client.go", "absolute paths not allowed"},
		{"../client.go", "path traversal not allowed"},
		{"a/../client.go", "path traversal not allowed"},
		{"./client.go", "not clean"},
		{"a//client.go", "not clean"},
		{"client.txt", "non-test .go file"},
		{"client_test.go", "non-test .go file"},
		{"my..file.go", ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestMemorySink(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySink()

	content := []byte(generated)
	changed, err := s.WriteFile(ctx, "a.go", content)
	if err != nil || !changed {
		t.Fatalf("first write: changed=%v err=%v", changed, err)
	}
	content[0] = 'X'
	if got := s.Get("a.go"); string(got) != generated {
		t.Errorf("stored content must not alias the input, got %q", got)
	}

	changed, err = s.WriteFile(ctx, "a.go", []byte(generated))
	if err != nil || changed {
		t.Errorf("identical write: changed=%v err=%v", changed, err)
	}
	if s.Get("missing.go") != nil {
		t.Error("expected nil for missing file")
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.WriteFile(canceled, "b.go", content); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("expected 1 file, got %d", s.Len())
	}
}

func TestMemorySink_Concurrent(t *testing.T) {
	s := NewMemorySink()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := string(rune('a'+i)) + ".go"
			if _, err := s.WriteFile(context.Background(), name, []byte(generated)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	if s.Len() != 20 {
		t.Errorf("expected 20 files, got %d", s.Len())
	}
}

func TestFilesystemSink(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s := NewFilesystemSink(root)
	full := filepath.Join(root, "client_restproxy.go")

	changed, err := s.WriteFile(ctx, "client_restproxy.go", []byte(generated))
	if err != nil || !changed {
		t.Fatalf("first write: changed=%v err=%v", changed, err)
	}
	info, err := os.Stat(full)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("expected mode 0644, got %v", info.Mode().Perm())
	}

	changed, err = s.WriteFile(ctx, "client_restproxy.go", []byte(generated))
	if err != nil || changed {
		t.Errorf("identical write: changed=%v err=%v", changed, err)
	}

	updated := generated + "\nvar x = 1\n"
	changed, err = s.WriteFile(ctx, "client_restproxy.go", []byte(updated))
	if err != nil || !changed {
		t.Fatalf("update: changed=%v err=%v", changed, err)
	}
	got, _ := os.ReadFile(full)
	if string(got) != updated {
		t.Errorf("unexpected content %q", got)
	}

	entries, _ := os.ReadDir(root)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".restproxy-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestFilesystemSink_RefusesHandWrittenFile(t *testing.T) {
	root := t.TempDir()
	handWritten := "package p\n\nfunc keep() {}\n"
	if err := os.WriteFile(filepath.Join(root, "client.go"), []byte(handWritten), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewFilesystemSink(root).WriteFile(context.Background(), "client.go", []byte(generated))
	if !errors.Is(err, ErrNotGenerated) {
		t.Fatalf("expected ErrNotGenerated, got %v", err)
	}
	got, _ := os.ReadFile(filepath.Join(root, "client.go"))
	if string(got) != handWritten {
		t.Error("hand-written file was modified")
	}
}

func TestFilesystemSink_CreatesDirectories(t *testing.T) {
	root := t.TempDir()
	s := &FilesystemSink{Root: root}
	if _, err := s.WriteFile(context.Background(), "nested/dir/c.go", []byte(generated)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "nested", "dir", "c.go")); err != nil {
		t.Errorf("expected file to exist: %v", err)
	}
}
