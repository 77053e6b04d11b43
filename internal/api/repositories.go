package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"repovoice/pkg/models"
)

// CreateRepository handles POST /repositories. Multipart form: name
// (required), description, source (required), source_url for git sources,
// file for ZIP uploads. Acquisition runs in the background; the caller polls
// the repository's status.
func (h *Handler) CreateRepository(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		validationError(w, fmt.Sprintf("failed to parse multipart form: %s", err))
		return
	}

	name := r.FormValue("name")
	if name == "" {
		validationError(w, "name is required")
		return
	}
	source := models.RepositorySource(r.FormValue("source"))
	if !models.ValidSource(source) {
		validationError(w, fmt.Sprintf("unsupported repository source: %s", r.FormValue("source")))
		return
	}

	now := time.Now()
	rec := models.Repository{
		ID:            uuid.NewString(),
		Name:          name,
		Description:   r.FormValue("description"),
		Source:        source,
		SourceURL:     r.FormValue("source_url"),
		CreatedAt:     now,
		UpdatedAt:     now,
		LanguageStats: map[string]int{},
		Status:        models.StatusProcessing,
	}

	switch source {
	case models.SourceGithub, models.SourceGit:
		if rec.SourceURL == "" {
			validationError(w, "source URL is required for git repositories")
			return
		}
		if err := h.store.PutRepository(r.Context(), rec); err != nil {
			writeError(w, r, err)
			return
		}
		go h.ingestGit(rec.ID, rec.SourceURL)

	case models.SourceZip:
		file, _, err := r.FormFile("file")
		if err != nil {
			validationError(w, "file upload is required for ZIP repositories")
			return
		}
		defer file.Close()

		zipPath := filepath.Join(h.cfg.TempDir, rec.ID+".zip")
		dst, err := os.Create(zipPath)
		if err != nil {
			writeError(w, r, fmt.Errorf("save uploaded archive: %w", err))
			return
		}
		if _, err := io.Copy(dst, file); err != nil {
			dst.Close()
			os.Remove(zipPath)
			writeError(w, r, fmt.Errorf("save uploaded archive: %w", err))
			return
		}
		dst.Close()

		if err := h.store.PutRepository(r.Context(), rec); err != nil {
			writeError(w, r, err)
			return
		}
		go h.ingestZip(rec.ID, zipPath)

	default:
		validationError(w, fmt.Sprintf("unsupported repository source: %s", source))
		return
	}

	writeJSON(w, http.StatusCreated, rec)
}

// ingestGit clones and analyzes a repository, updating store status as it goes.
func (h *Handler) ingestGit(id, url string) {
	ctx := context.Background()
	if err := h.repos.CloneGit(ctx, url, id); err != nil {
		log.Error().Err(err).Str("repository", id).Msg("clone failed")
		_ = h.store.SetStatus(ctx, id, models.StatusError)
		return
	}
	h.finishIngest(ctx, id)
}

// ingestZip extracts an uploaded archive and analyzes it.
func (h *Handler) ingestZip(id, zipPath string) {
	ctx := context.Background()
	if err := h.repos.ExtractArchive(zipPath, id); err != nil {
		log.Error().Err(err).Str("repository", id).Msg("archive extraction failed")
		_ = h.store.SetStatus(ctx, id, models.StatusError)
		return
	}
	h.finishIngest(ctx, id)
}

func (h *Handler) finishIngest(ctx context.Context, id string) {
	count, stats, err := h.repos.Analyze(id)
	if err != nil {
		log.Error().Err(err).Str("repository", id).Msg("repository analysis failed")
		_ = h.store.SetStatus(ctx, id, models.StatusError)
		return
	}
	if err := h.store.SetAnalysis(ctx, id, count, stats); err != nil {
		log.Error().Err(err).Str("repository", id).Msg("failed to record analysis")
		return
	}
	log.Info().Str("repository", id).Int("files", count).Msg("repository ready")
}

// ListRepositories handles GET /repositories.
func (h *Handler) ListRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := h.store.ListRepositories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, repos)
}

// GetRepository handles GET /repositories/{id}. Falls back to re-deriving a
// minimal record from the on-disk directory when the store has no entry.
func (h *Handler) GetRepository(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	rec, ok, err := h.store.GetRepository(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ok {
		writeJSON(w, http.StatusOK, rec)
		return
	}

	if !h.repos.Exists(id) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "repository not found"})
		return
	}

	count, stats, err := h.repos.Analyze(id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.Repository{
		ID:            id,
		Name:          "Repository",
		Source:        models.SourceGithub,
		FileCount:     count,
		LanguageStats: stats,
		Status:        models.StatusReady,
	})
}

// ListRepositoryFiles handles GET /repositories/{id}/files?filter=ext.
func (h *Handler) ListRepositoryFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.repos.ListFiles(r.PathValue("id"), r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// GetFileContent handles GET /repositories/{id}/files/{path...}. The path
// segment may contain slashes.
func (h *Handler) GetFileContent(w http.ResponseWriter, r *http.Request) {
	content, err := h.repos.FileContent(r.PathValue("id"), r.PathValue("path"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"content": content})
}

// DeleteRepository handles DELETE /repositories/{id}: removes the directory
// tree and the store record.
func (h *Handler) DeleteRepository(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.repos.Delete(id); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.store.DeleteRepository(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Repository deleted successfully"})
}
