package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repovoice/internal/ai"
	"repovoice/internal/config"
	"repovoice/internal/repo"
	"repovoice/internal/store"
	"repovoice/internal/telephony"
	"repovoice/internal/voice"
	"repovoice/pkg/models"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

type testEnv struct {
	handler *Handler
	mux     *http.ServeMux
	store   *store.MemoryStore
	repos   *repo.Service
	ai      *ai.StubClient
}

func newTestEnv(t *testing.T, telURL string) *testEnv {
	t.Helper()

	dir := t.TempDir()
	cfg := &config.Specification{
		UploadDir:       filepath.Join(dir, "uploads"),
		TempDir:         filepath.Join(dir, "temp"),
		AudioDir:        filepath.Join(dir, "audio"),
		MaxUploadSizeMB: 80,
		AudioFormat:     "mp3",
	}

	repos, err := repo.NewService(cfg.UploadDir, cfg.TempDir)
	require.NoError(t, err)

	voiceSvc, err := voice.NewService(cfg.AudioDir, &voice.StubSynthesizer{Audio: []byte("fake-mp3")})
	require.NoError(t, err)

	stub := &ai.StubClient{
		Response: `{"text_response": "It routes requests.", "code_snippets": [], "references": []}`,
	}

	st := store.NewMemoryStore()
	h := NewHandler(cfg, st, repos, stub, voiceSvc, telephony.NewClient("test-key", telURL))
	return &testEnv{handler: h, mux: h.Routes(), store: st, repos: repos, ai: stub}
}

// seedRepo creates a repository on disk plus its store record and returns the id.
func (e *testEnv) seedRepo(t *testing.T, id string, files map[string]string) {
	t.Helper()
	root := e.repos.Dir(id)
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	require.NoError(t, e.store.PutRepository(t.Context(), models.Repository{
		ID:        id,
		Name:      "test-repo",
		Source:    models.SourceZip,
		Status:    models.StatusReady,
		CreatedAt: time.Now(),
	}))
}

func (e *testEnv) do(t *testing.T, method, target string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into))
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, "http://unused")
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListRepositoryFiles(t *testing.T) {
	env := newTestEnv(t, "http://unused")
	env.seedRepo(t, "r1", map[string]string{
		"main.go":   "package main",
		"docs/a.md": "# a",
	})

	rec := env.do(t, http.MethodGet, "/repositories/r1/files", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Files []models.FileEntry `json:"files"`
	}
	decodeJSON(t, rec, &body)
	require.Len(t, body.Files, 2)

	rec = env.do(t, http.MethodGet, "/repositories/r1/files?filter=go", nil)
	decodeJSON(t, rec, &body)
	require.Len(t, body.Files, 1)
	assert.Equal(t, "main.go", body.Files[0].Path)

	rec = env.do(t, http.MethodGet, "/repositories/missing/files", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetFileContent(t *testing.T) {
	env := newTestEnv(t, "http://unused")
	env.seedRepo(t, "r1", map[string]string{"src/app.py": "print('hi')"})

	rec := env.do(t, http.MethodGet, "/repositories/r1/files/src/app.py", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeJSON(t, rec, &body)
	assert.Equal(t, "print('hi')", body["content"])

	rec = env.do(t, http.MethodGet, "/repositories/r1/files/src/missing.py", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRepository(t *testing.T) {
	env := newTestEnv(t, "http://unused")
	env.seedRepo(t, "r1", map[string]string{"main.go": "package main"})

	rec := env.do(t, http.MethodGet, "/repositories/r1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Repository
	decodeJSON(t, rec, &got)
	assert.Equal(t, "test-repo", got.Name)

	rec = env.do(t, http.MethodGet, "/repositories/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRepositoryDiskFallback(t *testing.T) {
	env := newTestEnv(t, "http://unused")

	// Directory exists on disk but the store has no record of it.
	root := env.repos.Dir("orphan")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main"), 0o644))

	rec := env.do(t, http.MethodGet, "/repositories/orphan", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Repository
	decodeJSON(t, rec, &got)
	assert.Equal(t, "orphan", got.ID)
	assert.Equal(t, models.StatusReady, got.Status)
	assert.Equal(t, 1, got.FileCount)
}

func TestDeleteRepository(t *testing.T) {
	env := newTestEnv(t, "http://unused")
	env.seedRepo(t, "r1", map[string]string{"main.go": "package main"})

	rec := env.do(t, http.MethodDelete, "/repositories/r1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeJSON(t, rec, &body)
	assert.Equal(t, "Repository deleted successfully", body["detail"])

	rec = env.do(t, http.MethodGet, "/repositories/r1/files", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/repositories/r1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRepositoryValidation(t *testing.T) {
	env := newTestEnv(t, "http://unused")

	var buf bytes.Buffer
	mw := newMultipart(t, &buf, map[string]string{"source": "zip"})
	req := httptest.NewRequest(http.MethodPost, "/repositories", &buf)
	req.Header.Set("Content-Type", mw)
	rec := httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	buf.Reset()
	mw = newMultipart(t, &buf, map[string]string{"name": "x", "source": "svn"})
	req = httptest.NewRequest(http.MethodPost, "/repositories", &buf)
	req.Header.Set("Content-Type", mw)
	rec = httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// git source without a URL
	buf.Reset()
	mw = newMultipart(t, &buf, map[string]string{"name": "x", "source": "git"})
	req = httptest.NewRequest(http.MethodPost, "/repositories", &buf)
	req.Header.Set("Content-Type", mw)
	rec = httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// zip source without a file
	buf.Reset()
	mw = newMultipart(t, &buf, map[string]string{"name": "x", "source": "zip"})
	req = httptest.NewRequest(http.MethodPost, "/repositories", &buf)
	req.Header.Set("Content-Type", mw)
	rec = httptest.NewRecorder()
	env.mux.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateQuestion(t *testing.T) {
	env := newTestEnv(t, "http://unused")
	env.seedRepo(t, "r1", map[string]string{"main.go": "package main"})

	rec := env.do(t, http.MethodPost, "/questions", map[string]string{
		"repository_id": "r1",
		"question":      "What does main do?",
		"context":       "main.go",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var q models.Question
	decodeJSON(t, rec, &q)
	assert.NotEmpty(t, q.ID)
	require.NotNil(t, q.Response)
	assert.Equal(t, "It routes requests.", q.Response.TextResponse)
	assert.True(t, strings.HasPrefix(q.Response.AudioURL, voice.BaseURL+"/"), q.Response.AudioURL)

	// The stored question is retrievable afterwards
	rec = env.do(t, http.MethodGet, "/questions/"+q.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/questions/repository/r1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var qs []models.Question
	decodeJSON(t, rec, &qs)
	assert.Len(t, qs, 1)
}

func TestCreateQuestionValidation(t *testing.T) {
	env := newTestEnv(t, "http://unused")
	env.seedRepo(t, "r1", map[string]string{"main.go": "package main"})

	rec := env.do(t, http.MethodPost, "/questions", map[string]string{"question": "hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/questions", map[string]string{"repository_id": "r1", "question": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/questions", map[string]string{"repository_id": "missing", "question": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateQuestionNarrationFailureKeepsAnswer(t *testing.T) {
	env := newTestEnv(t, "http://unused")
	env.seedRepo(t, "r1", map[string]string{"main.go": "package main"})
	env.handler.voice.Synth = &voice.StubSynthesizer{Err: assert.AnError}

	rec := env.do(t, http.MethodPost, "/questions", map[string]string{
		"repository_id": "r1",
		"question":      "What does main do?",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var q models.Question
	decodeJSON(t, rec, &q)
	require.NotNil(t, q.Response)
	assert.Equal(t, "It routes requests.", q.Response.TextResponse)
	assert.Empty(t, q.Response.AudioURL)
}

func TestExplainCode(t *testing.T) {
	env := newTestEnv(t, "http://unused")
	env.ai.Response = "This snippet parses flags."

	rec := env.do(t, http.MethodPost, "/gemini/explain", map[string]string{
		"code": "flag.Parse()",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.Equal(t, "This snippet parses flags.", body["explanation"])
	assert.NotContains(t, body, "skipped_files")
}

func TestExplainCodeValidation(t *testing.T) {
	env := newTestEnv(t, "http://unused")

	rec := env.do(t, http.MethodPost, "/gemini/explain", map[string]string{"code": "  "})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]string
	decodeJSON(t, rec, &body)
	assert.Equal(t, "No code provided.", body["detail"])

	rec = env.do(t, http.MethodPost, "/gemini/explain", map[string]string{"code": "ENTIRE_CODEBASE"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExplainEntireCodebase(t *testing.T) {
	env := newTestEnv(t, "http://unused")
	env.seedRepo(t, "r1", map[string]string{
		"main.go":     "package main",
		"config.yaml": "port: 8000",
		"README.md":   "# readme",
	})
	env.ai.Response = "Architecture overview."

	rec := env.do(t, http.MethodPost, "/gemini/explain", map[string]string{
		"code":          "ENTIRE_CODEBASE",
		"repository_id": "r1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.Equal(t, "Architecture overview.", body["explanation"])

	rec = env.do(t, http.MethodPost, "/gemini/explain", map[string]string{
		"code":          "ENTIRE_CODEBASE",
		"repository_id": "missing",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateAudio(t *testing.T) {
	env := newTestEnv(t, "http://unused")

	rec := env.do(t, http.MethodPost, "/audio/generate", map[string]string{"text": "hello world"})
	require.Equal(t, http.StatusOK, rec.Code)

	var artifact models.AudioArtifact
	decodeJSON(t, rec, &artifact)
	assert.Equal(t, models.FormatMP3, artifact.Format)
	assert.True(t, strings.HasSuffix(artifact.Filename, ".mp3"))

	// The generated file round-trips through the download endpoint
	rec = env.do(t, http.MethodGet, "/audio/files/"+artifact.Filename, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "fake-mp3", rec.Body.String())
}

func TestGenerateAudioValidation(t *testing.T) {
	env := newTestEnv(t, "http://unused")

	rec := env.do(t, http.MethodPost, "/audio/generate", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/audio/generate", map[string]string{"text": "hi", "format": "flac"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAudioFileMissing(t *testing.T) {
	env := newTestEnv(t, "http://unused")
	rec := env.do(t, http.MethodGet, "/audio/files/nope.mp3", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMakeCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/knowledgebases":
			json.NewEncoder(w).Encode(map[string]string{"vector_id": "kb-1"})
		case "/calls":
			var params telephony.CallParams
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&params))
			assert.Equal(t, []string{"kb-1"}, params.Tools)
			json.NewEncoder(w).Encode(map[string]string{"call_id": "call-1", "status": "queued"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	env := newTestEnv(t, srv.URL)
	rec := env.do(t, http.MethodPost, "/calls", map[string]string{
		"phone_number":               "+1 555 0100",
		"knowledge_base_name":        "repo",
		"knowledge_base_description": "code overview",
		"knowledge_base_text":        "package main",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp callResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "call-1", resp.CallID)
	assert.Equal(t, "kb-1", resp.KnowledgeBaseID)
}

func TestMakeCallKnowledgeBaseFallback(t *testing.T) {
	var callTask string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/knowledgebases":
			http.Error(w, "nope", http.StatusInternalServerError)
		case "/calls":
			var params telephony.CallParams
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&params))
			callTask = params.Task
			json.NewEncoder(w).Encode(map[string]string{"call_id": "call-2", "status": "queued"})
		}
	}))
	defer srv.Close()

	env := newTestEnv(t, srv.URL)
	rec := env.do(t, http.MethodPost, "/calls", map[string]string{
		"phone_number":               "+15550100",
		"knowledge_base_name":        "repo",
		"knowledge_base_description": "code overview",
		"knowledge_base_text":        "package main",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp callResponse
	decodeJSON(t, rec, &resp)
	assert.Equal(t, "call-2", resp.CallID)
	assert.Empty(t, resp.KnowledgeBaseID)
	assert.Contains(t, callTask, "package main")
}

func TestMakeCallValidation(t *testing.T) {
	env := newTestEnv(t, "http://unused")

	rec := env.do(t, http.MethodPost, "/calls", map[string]string{"call_instructions": "say hi"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// kb text without name/description
	rec = env.do(t, http.MethodPost, "/calls", map[string]string{
		"phone_number":        "+15550100",
		"knowledge_base_text": "package main",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// nothing to say at all
	rec = env.do(t, http.MethodPost, "/calls", map[string]string{"phone_number": "+15550100"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCallConfigStatus(t *testing.T) {
	env := newTestEnv(t, "http://unused")

	rec := env.do(t, http.MethodGet, "/calls/config-status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeJSON(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	cfg, ok := body["config"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, cfg["api_key_set"])
}

func newMultipart(t *testing.T, buf *bytes.Buffer, fields map[string]string) string {
	t.Helper()
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return w.FormDataContentType()
}
