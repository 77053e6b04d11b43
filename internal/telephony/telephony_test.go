package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repovoice/internal/errs"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

func TestCreateKnowledgeBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/knowledgebases", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("authorization"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "kb-name", payload["name"])
		assert.Equal(t, "kb text", payload["text"])

		_ = json.NewEncoder(w).Encode(map[string]string{"vector_id": "vec-123"})
	}))
	defer srv.Close()

	c := NewClient("test-key", srv.URL)
	id, err := c.CreateKnowledgeBase(context.Background(), "kb-name", "desc", "kb text")
	require.NoError(t, err)
	assert.Equal(t, "vec-123", id)
}

func TestCreateKnowledgeBaseIDFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "kb-9"})
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL)
	id, err := c.CreateKnowledgeBase(context.Background(), "n", "d", "t")
	require.NoError(t, err)
	assert.Equal(t, "kb-9", id)
}

func TestCreateKnowledgeBaseMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"unrelated": "x"})
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL)
	_, err := c.CreateKnowledgeBase(context.Background(), "n", "d", "t")
	assert.ErrorIs(t, err, errs.ErrUpstream)
}

func TestCreateKnowledgeBaseUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL)
	_, err := c.CreateKnowledgeBase(context.Background(), "n", "d", "t")
	assert.ErrorIs(t, err, errs.ErrUpstream)
	assert.Contains(t, err.Error(), "401")
}

func TestStartCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calls", r.URL.Path)

		var params CallParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&params))
		assert.Equal(t, "+15551234567", params.PhoneNumber, "spaces must be stripped")
		assert.Equal(t, []string{"kb-1"}, params.Tools)

		_ = json.NewEncoder(w).Encode(CallResult{CallID: "call-1", Status: "queued"})
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL)
	res, err := c.StartCall(context.Background(), CallParams{
		PhoneNumber: "+1 555 123 4567",
		Task:        "explain the repo",
		Tools:       []string{"kb-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "call-1", res.CallID)
	assert.Equal(t, "queued", res.Status)
}

func TestCallStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/calls/call-7", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"call_id": "call-7", "status": "completed"})
	}))
	defer srv.Close()

	c := NewClient("k", srv.URL)
	status, err := c.CallStatus(context.Background(), "call-7")
	require.NoError(t, err)
	assert.Equal(t, "completed", status["status"])
}

func TestConfigStatus(t *testing.T) {
	c := NewClient("secret-key-12345", "https://api.example.com/v1")
	status := c.ConfigStatus()
	assert.Equal(t, "ok", status["status"])

	cfg := status["config"].(map[string]any)
	assert.Equal(t, "secre...", cfg["api_key_preview"], "key must be masked")
	assert.Equal(t, true, cfg["api_key_set"])

	missing := NewClient("", "https://api.example.com/v1")
	assert.Equal(t, "error", missing.ConfigStatus()["status"])
}
