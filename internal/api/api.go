// Package api exposes the HTTP surface: repositories, questions, code
// explanation, audio, and phone calls.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"repovoice/internal/ai"
	"repovoice/internal/config"
	"repovoice/internal/errs"
	"repovoice/internal/repo"
	"repovoice/internal/store"
	"repovoice/internal/telephony"
	"repovoice/internal/voice"
)

// Handler carries every service the HTTP surface needs. All dependencies are
// injected; there is no process-wide state.
type Handler struct {
	cfg   *config.Specification
	store store.Store
	repos *repo.Service
	ai    ai.Client
	voice *voice.Service
	tel   *telephony.Client
}

// NewHandler wires the HTTP surface to its services.
func NewHandler(cfg *config.Specification, st store.Store, repos *repo.Service, aiClient ai.Client, voiceSvc *voice.Service, tel *telephony.Client) *Handler {
	return &Handler{
		cfg:   cfg,
		store: st,
		repos: repos,
		ai:    aiClient,
		voice: voiceSvc,
		tel:   tel,
	}
}

// Routes registers every endpoint on a fresh mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	mux.HandleFunc("POST /repositories", h.CreateRepository)
	mux.HandleFunc("GET /repositories", h.ListRepositories)
	mux.HandleFunc("GET /repositories/{id}", h.GetRepository)
	mux.HandleFunc("GET /repositories/{id}/files", h.ListRepositoryFiles)
	mux.HandleFunc("GET /repositories/{id}/files/{path...}", h.GetFileContent)
	mux.HandleFunc("DELETE /repositories/{id}", h.DeleteRepository)

	mux.HandleFunc("POST /questions", h.CreateQuestion)
	mux.HandleFunc("GET /questions/{id}", h.GetQuestion)
	mux.HandleFunc("GET /questions/repository/{id}", h.ListRepositoryQuestions)

	mux.HandleFunc("POST /gemini/explain", h.ExplainCode)

	mux.HandleFunc("POST /audio/generate", h.GenerateAudio)
	mux.HandleFunc("GET /audio/files/{name}", h.GetAudioFile)
	mux.HandleFunc("DELETE /audio/files/{name}", h.DeleteAudioFile)

	mux.HandleFunc("POST /calls", h.MakeCall)
	mux.HandleFunc("GET /calls/{id}", h.GetCallStatus)

	return mux
}

// writeJSON encodes v with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy to HTTP statuses: not-found 404,
// validation 400, upstream 502, anything else 500 with the raw message as
// diagnostic text.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrUpstream):
		status = http.StatusBadGateway
	}
	if status >= 500 {
		hlog.FromRequest(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}

// validationError reports a request-shape problem with a plain message.
func validationError(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"detail": msg})
}
