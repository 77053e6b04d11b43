package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"repovoice/internal/voice"
	"repovoice/pkg/models"
)

type audioRequest struct {
	Text   string             `json:"text"`
	Format models.AudioFormat `json:"format,omitempty"`
}

// GenerateAudio handles POST /audio/generate.
func (h *Handler) GenerateAudio(w http.ResponseWriter, r *http.Request) {
	var req audioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		validationError(w, "invalid request body")
		return
	}
	if req.Format == "" {
		req.Format = models.AudioFormat(h.cfg.AudioFormat)
	}

	artifact, err := h.voice.Generate(r.Context(), req.Text, req.Format)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

// GetAudioFile handles GET /audio/files/{name}. The content type is derived
// from the file extension.
func (h *Handler) GetAudioFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	path, err := h.voice.FilePath(name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", voice.ContentType(name))
	http.ServeFile(w, r, path)
}

// DeleteAudioFile handles DELETE /audio/files/{name}. Deletion is scheduled
// asynchronously; the response does not wait for it.
func (h *Handler) DeleteAudioFile(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	go func() {
		if err := h.voice.Delete(name); err != nil {
			log.Warn().Err(err).Str("filename", name).Msg("scheduled audio deletion failed")
		}
	}()
	writeJSON(w, http.StatusOK, map[string]string{"detail": "Audio file deletion scheduled"})
}
