package repo

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"repovoice/internal/errs"
)

// CloneGit clones a remote repository into a fresh directory named by the
// repository identifier. Depth-1 clone; the remote's history is not needed.
func (s *Service) CloneGit(ctx context.Context, url, id string) error {
	dir := s.Dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create repository directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", url, dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git clone %s: %v: %s", url, err, strings.TrimSpace(string(out)))
	}

	log.Info().Str("repository", id).Str("url", url).Msg("cloned repository")
	return nil
}

// ExtractArchive unpacks an uploaded ZIP file into the repository directory.
// The uploaded temp file is removed afterward regardless of outcome. Entries
// whose paths would escape the target directory are rejected.
func (s *Service) ExtractArchive(zipPath, id string) error {
	defer func() {
		if err := os.Remove(zipPath); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", zipPath).Msg("failed to remove uploaded archive")
		}
	}()

	dir := s.Dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create repository directory: %w", err)
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		if errors.Is(err, zip.ErrInsecurePath) {
			return fmt.Errorf("archive contains non-local entry paths: %w", errs.ErrValidation)
		}
		return fmt.Errorf("open archive: %w", err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		if err := extractEntry(dir, entry); err != nil {
			return err
		}
	}

	log.Info().Str("repository", id).Int("entries", len(zr.File)).Msg("extracted archive")
	return nil
}

func extractEntry(dir string, entry *zip.File) error {
	name := entry.Name
	if filepath.IsAbs(name) {
		return fmt.Errorf("archive entry %q has an absolute path: %w", name, errs.ErrValidation)
	}
	dest, err := containedPath(dir, name)
	if err != nil {
		return fmt.Errorf("archive entry %q escapes target directory: %w", name, errs.ErrValidation)
	}

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(dest, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create entry directory: %w", err)
	}

	rc, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %q: %w", name, err)
	}
	defer rc.Close()

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode().Perm()|0o200)
	if err != nil {
		return fmt.Errorf("create %q: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, rc); err != nil {
		return fmt.Errorf("extract %q: %w", name, err)
	}
	return nil
}
