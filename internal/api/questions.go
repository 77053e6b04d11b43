package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"repovoice/internal/ai"
	"repovoice/internal/repo"
	"repovoice/pkg/models"
)

type questionRequest struct {
	RepositoryID string `json:"repository_id"`
	Question     string `json:"question"`
	Context      string `json:"context,omitempty"`
}

// CreateQuestion handles POST /questions. The question is answered
// synchronously: optional context file, model call, audio narration.
func (h *Handler) CreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req questionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		validationError(w, "invalid request body")
		return
	}
	if req.RepositoryID == "" {
		validationError(w, "repository_id is required")
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		validationError(w, "question is required")
		return
	}
	if !h.repos.Exists(req.RepositoryID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "repository not found"})
		return
	}

	q := models.Question{
		ID:           uuid.NewString(),
		RepositoryID: req.RepositoryID,
		Question:     req.Question,
		Context:      req.Context,
		CreatedAt:    time.Now(),
	}

	logger := hlog.FromRequest(r)

	var contextCode string
	if q.Context != "" {
		content, err := h.repos.FileContent(q.RepositoryID, q.Context)
		if err != nil {
			logger.Warn().Err(err).Str("context", q.Context).Msg("could not read context file")
		} else {
			contextCode = content
		}
	}

	repoName := "Repository " + q.RepositoryID
	repoDescription := ""
	if rec, ok, err := h.store.GetRepository(r.Context(), q.RepositoryID); err == nil && ok {
		repoName = rec.Name
		repoDescription = rec.Description
	}

	prompt := ai.QuestionPrompt(repoName, repoDescription, contextCode, q.Question)
	raw, err := h.ai.Generate(r.Context(), prompt)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := ai.ParseResponse(raw)

	// Narration is best effort: a TTS failure never loses the text answer.
	artifact, err := h.voice.Generate(r.Context(), resp.TextResponse, models.AudioFormat(h.cfg.AudioFormat))
	if err != nil {
		logger.Warn().Err(err).Str("question", q.ID).Msg("audio narration failed")
	} else {
		resp.AudioURL = artifact.URL
	}

	q.Response = &resp
	if err := h.store.PutQuestion(r.Context(), q); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, q)
}

// GetQuestion handles GET /questions/{id}.
func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	q, ok, err := h.store.GetQuestion(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "question not found"})
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// ListRepositoryQuestions handles GET /questions/repository/{id}.
func (h *Handler) ListRepositoryQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := h.store.ListQuestions(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

type explainRequest struct {
	Code         string `json:"code"`
	RepositoryID string `json:"repository_id,omitempty"`
}

// entireCodebase switches ExplainCode to whole-repository mode.
const entireCodebase = "ENTIRE_CODEBASE"

// ExplainCode handles POST /gemini/explain. A code payload is analyzed
// directly; the ENTIRE_CODEBASE sentinel selects files from the named
// repository and asks for an onboarding walkthrough instead.
func (h *Handler) ExplainCode(w http.ResponseWriter, r *http.Request) {
	var req explainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		validationError(w, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		validationError(w, "No code provided.")
		return
	}

	var prompt string
	var skipped []repo.SkippedFile

	if req.Code == entireCodebase {
		if req.RepositoryID == "" {
			validationError(w, "repository_id is required when explaining the entire codebase")
			return
		}
		files, err := h.repos.ListFiles(req.RepositoryID, "")
		if err != nil {
			writeError(w, r, err)
			return
		}
		sel := repo.SelectRelevant(files, func(path string) (string, error) {
			return h.repos.FileContent(req.RepositoryID, path)
		})
		skipped = sel.Skipped
		prompt = ai.OnboardingPrompt(ai.AssembleContext(sel.Files))
	} else {
		prompt = ai.AnalyzePrompt(req.Code)
	}

	raw, err := h.ai.Generate(r.Context(), prompt)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := map[string]any{"explanation": raw}
	if len(skipped) > 0 {
		out["skipped_files"] = skipped
	}
	writeJSON(w, http.StatusOK, out)
}
