package repo

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"repovoice/internal/errs"
)

func init() {
	// Suppress logs during testing
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

// newTestService creates a Service rooted in a temp directory.
func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(filepath.Join(t.TempDir(), "uploads"), filepath.Join(t.TempDir(), "temp"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

// seedRepo writes the given relative path -> content files under a repository id.
func seedRepo(t *testing.T, s *Service, id string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		full := filepath.Join(s.Dir(id), filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func TestListFiles(t *testing.T) {
	s := newTestService(t)
	seedRepo(t, s, "r1", map[string]string{
		"README.md":       "# readme",
		"src/main.py":     "print('hi')",
		"src/util/x.PY":   "pass",
		"Makefile":        "all:",
		"docs/guide.md":   "guide",
		"assets/logo.png": "\x89PNG",
	})

	entries, err := s.ListFiles("r1", "")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(entries) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(entries))
	}

	byPath := map[string]bool{}
	for _, e := range entries {
		byPath[e.Path] = true
		if filepath.Separator != '/' && filepath.ToSlash(e.Path) != e.Path {
			t.Errorf("path %q not forward-slash separated", e.Path)
		}
		if e.Name != filepath.Base(e.Path) {
			t.Errorf("name %q does not match path %q", e.Name, e.Path)
		}
	}
	for _, want := range []string{"README.md", "src/main.py", "src/util/x.PY", "Makefile", "docs/guide.md"} {
		if !byPath[want] {
			t.Errorf("missing entry %q", want)
		}
	}

	// Extensions are lower-cased without the dot
	for _, e := range entries {
		if e.Path == "src/util/x.PY" && e.Extension != "py" {
			t.Errorf("expected lower-cased extension py, got %q", e.Extension)
		}
		if e.Path == "Makefile" && e.Extension != "" {
			t.Errorf("expected empty extension for Makefile, got %q", e.Extension)
		}
	}
}

func TestListFilesFilter(t *testing.T) {
	s := newTestService(t)
	seedRepo(t, s, "r1", map[string]string{
		"a.py":     "",
		"b.PY":     "",
		"c.go":     "",
		"Makefile": "",
	})

	tests := []struct {
		filter string
		want   int
	}{
		{"py", 2},  // case-insensitive match
		{".py", 2}, // leading dot accepted
		{"PY", 2},
		{"go", 1},
		{"rs", 0},
	}
	for _, tc := range tests {
		entries, err := s.ListFiles("r1", tc.filter)
		if err != nil {
			t.Fatalf("ListFiles(%q): %v", tc.filter, err)
		}
		if len(entries) != tc.want {
			t.Errorf("filter %q: expected %d entries, got %d", tc.filter, tc.want, len(entries))
		}
	}
}

func TestListFilesMissingRepo(t *testing.T) {
	s := newTestService(t)
	_, err := s.ListFiles("nope", "")
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListFilesIdempotent(t *testing.T) {
	s := newTestService(t)
	seedRepo(t, s, "r1", map[string]string{
		"a.py":      "x",
		"dir/b.py":  "y",
		"dir/c.txt": "z",
	})

	first, err := s.ListFiles("r1", "")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	second, err := s.ListFiles("r1", "")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated listing differs:\n%v\n%v", first, second)
	}
}

func TestDeleteThenList(t *testing.T) {
	s := newTestService(t)
	seedRepo(t, s, "r1", map[string]string{"a.py": "x"})

	if err := s.Delete("r1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.ListFiles("r1", ""); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete("r1"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
