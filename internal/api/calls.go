package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"repovoice/internal/telephony"
)

type callRequest struct {
	PhoneNumber        string `json:"phone_number"`
	CallInstructions   string `json:"call_instructions,omitempty"`
	VoiceID            string `json:"voice_id,omitempty"`
	BackgroundTrack    string `json:"background_track,omitempty"`
	FirstSentence      string `json:"first_sentence,omitempty"`
	WaitForGreeting    bool   `json:"wait_for_greeting,omitempty"`
	BlockInterruptions bool   `json:"block_interruptions,omitempty"`
	Language           string `json:"language,omitempty"`
	Record             bool   `json:"record,omitempty"`

	KnowledgeBaseID          string `json:"knowledge_base_id,omitempty"`
	KnowledgeBaseName        string `json:"knowledge_base_name,omitempty"`
	KnowledgeBaseDescription string `json:"knowledge_base_description,omitempty"`
	KnowledgeBaseText        string `json:"knowledge_base_text,omitempty"`
}

type callResponse struct {
	CallID          string `json:"call_id"`
	Status          string `json:"status"`
	PhoneNumber     string `json:"phone_number"`
	KnowledgeBaseID string `json:"knowledge_base_id,omitempty"`
}

// kbPreviewChars bounds the content preview embedded in the task text when
// knowledge base creation fails.
const kbPreviewChars = 5000

// MakeCall handles POST /calls. A knowledge base can be created inline from
// text; if that fails, a content preview is folded into the call instructions
// instead and the call proceeds.
func (h *Handler) MakeCall(w http.ResponseWriter, r *http.Request) {
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		validationError(w, "invalid request body")
		return
	}
	if req.PhoneNumber == "" {
		validationError(w, "phone_number is required")
		return
	}

	logger := hlog.FromRequest(r)

	kbID := req.KnowledgeBaseID
	if kbID == "" && req.KnowledgeBaseText != "" {
		if req.KnowledgeBaseName == "" || req.KnowledgeBaseDescription == "" {
			validationError(w, "When providing knowledge_base_text, both knowledge_base_name and knowledge_base_description are required")
			return
		}
		id, err := h.tel.CreateKnowledgeBase(r.Context(), req.KnowledgeBaseName, req.KnowledgeBaseDescription, req.KnowledgeBaseText)
		if err != nil {
			logger.Warn().Err(err).Msg("knowledge base creation failed, continuing with direct instructions")
		} else {
			kbID = id
		}
	}

	task := req.CallInstructions
	if kbID == "" && req.KnowledgeBaseText != "" {
		if task == "" {
			task = "You are a senior developer helping explain code to the user."
		}
		preview := req.KnowledgeBaseText
		if len(preview) > kbPreviewChars {
			preview = preview[:kbPreviewChars]
		}
		task += "\n\nHere's a preview of the code to reference:\n\n" + preview + "\n\n..."
	}

	if task == "" && kbID == "" {
		validationError(w, "Either call_instructions or a knowledge base (existing or new) is required")
		return
	}

	var tools []string
	if kbID != "" {
		tools = []string{kbID}
	}

	result, err := h.tel.StartCall(r.Context(), telephony.CallParams{
		PhoneNumber:        req.PhoneNumber,
		Task:               task,
		Voice:              req.VoiceID,
		BackgroundTrack:    req.BackgroundTrack,
		FirstSentence:      req.FirstSentence,
		WaitForGreeting:    req.WaitForGreeting,
		BlockInterruptions: req.BlockInterruptions,
		Language:           req.Language,
		Record:             req.Record,
		Tools:              tools,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, callResponse{
		CallID:          result.CallID,
		Status:          result.Status,
		PhoneNumber:     req.PhoneNumber,
		KnowledgeBaseID: kbID,
	})
}

// configStatusID returns a local configuration report instead of querying the
// provider.
const configStatusID = "config-status"

// GetCallStatus handles GET /calls/{id}.
func (h *Handler) GetCallStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == configStatusID {
		writeJSON(w, http.StatusOK, h.tel.ConfigStatus())
		return
	}

	status, err := h.tel.CallStatus(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
