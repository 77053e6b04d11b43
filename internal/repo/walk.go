package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"

	"repovoice/internal/errs"
	"repovoice/pkg/models"
)

// ListFiles enumerates every regular file under a repository root, in
// traversal order, recording relative forward-slash paths. filter, when
// non-empty, keeps only files with that extension (case-insensitive, leading
// dot optional).
func (s *Service) ListFiles(id, filter string) ([]models.FileEntry, error) {
	root := s.Dir(id)
	if fi, err := os.Stat(root); err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("repository %s: %w", id, errs.ErrNotFound)
	}

	filter = strings.ToLower(strings.TrimPrefix(filter, "."))

	entries := []models.FileEntry{}
	err := godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			if !de.IsRegular() {
				// symlinks and other irregular entries are ignored
				return nil
			}

			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			name := filepath.Base(path)
			ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))

			if filter != "" && ext != filter {
				return nil
			}

			fi, err := os.Stat(path)
			if err != nil {
				return err
			}

			entries = append(entries, models.FileEntry{
				Path:      filepath.ToSlash(rel),
				Name:      name,
				Size:      fi.Size(),
				Extension: ext,
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("walk repository %s: %w", id, err)
	}
	return entries, nil
}
