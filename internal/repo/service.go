// Package repo implements the repository ingestion and file-selection pipeline:
// acquiring repository trees (git clone or ZIP upload), walking them, profiling
// file types, and selecting a bounded subset of file contents for prompting.
package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"repovoice/internal/errs"
)

// Service manages repository directories under a single uploads root. Each
// repository lives in a directory named by its identifier; directory existence
// is the only persistent state.
type Service struct {
	UploadDir string
	TempDir   string
}

// NewService creates a Service and ensures its directories exist.
func NewService(uploadDir, tempDir string) (*Service, error) {
	for _, d := range []string{uploadDir, tempDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	log.Info().Str("upload_dir", uploadDir).Msg("repository service initialized")
	return &Service{UploadDir: uploadDir, TempDir: tempDir}, nil
}

// Dir returns the on-disk root for a repository identifier.
func (s *Service) Dir(id string) string {
	return filepath.Join(s.UploadDir, id)
}

// Exists reports whether a repository directory is present on disk.
func (s *Service) Exists(id string) bool {
	fi, err := os.Stat(s.Dir(id))
	return err == nil && fi.IsDir()
}

// Analyze walks a repository and returns its file count and language stats.
func (s *Service) Analyze(id string) (int, map[string]int, error) {
	files, err := s.ListFiles(id, "")
	if err != nil {
		return 0, nil, err
	}
	return len(files), LanguageStats(files), nil
}

// FileContent reads one file from a repository, decoded as text with invalid
// byte sequences replaced. The path must stay inside the repository root.
func (s *Service) FileContent(id, relPath string) (string, error) {
	root := s.Dir(id)
	if _, err := os.Stat(root); err != nil {
		return "", fmt.Errorf("repository %s: %w", id, errs.ErrNotFound)
	}

	full, err := containedPath(root, relPath)
	if err != nil {
		return "", err
	}

	b, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("file %s in repository %s: %w", relPath, id, errs.ErrNotFound)
		}
		return "", fmt.Errorf("read %s: %w", relPath, err)
	}
	return strings.ToValidUTF8(string(b), "�"), nil
}

// Delete removes a repository's directory tree.
func (s *Service) Delete(id string) error {
	root := s.Dir(id)
	if _, err := os.Stat(root); err != nil {
		return fmt.Errorf("repository %s: %w", id, errs.ErrNotFound)
	}
	if err := os.RemoveAll(root); err != nil {
		return fmt.Errorf("delete repository %s: %w", id, err)
	}
	log.Info().Str("repository", id).Msg("deleted repository")
	return nil
}

// containedPath resolves rel against root and rejects paths that escape it.
func containedPath(root, rel string) (string, error) {
	full := filepath.Join(root, filepath.FromSlash(rel))
	r, err := filepath.Rel(root, full)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes repository root: %w", rel, errs.ErrValidation)
	}
	return full, nil
}
