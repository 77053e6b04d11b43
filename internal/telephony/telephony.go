// Package telephony wraps the Bland AI calling API: knowledge bases, outbound
// phone calls, and call status.
package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"repovoice/internal/errs"
)

type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a telephony client for the given API base URL.
func NewClient(apiKey, baseURL string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// CallParams describes an outbound phone call.
type CallParams struct {
	PhoneNumber        string   `json:"phone_number"`
	Task               string   `json:"task,omitempty"`
	Voice              string   `json:"voice,omitempty"`
	BackgroundTrack    string   `json:"background_track,omitempty"`
	FirstSentence      string   `json:"first_sentence,omitempty"`
	WaitForGreeting    bool     `json:"wait_for_greeting,omitempty"`
	BlockInterruptions bool     `json:"block_interruptions,omitempty"`
	Language           string   `json:"language,omitempty"`
	Record             bool     `json:"record,omitempty"`
	Tools              []string `json:"tools,omitempty"`
}

// CallResult is the provider's reply to a started call.
type CallResult struct {
	CallID string `json:"call_id"`
	Status string `json:"status"`
}

// CreateKnowledgeBase stores and vectorizes a text corpus with the provider
// and returns its identifier. Some API versions return the identifier as
// vector_id, others as id.
func (c *Client) CreateKnowledgeBase(ctx context.Context, name, description, text string) (string, error) {
	log.Info().Str("name", name).Int("text_len", len(text)).Msg("creating knowledge base")

	payload := map[string]string{
		"name":        name,
		"description": description,
		"text":        text,
	}

	var resp struct {
		VectorID string `json:"vector_id"`
		ID       string `json:"id"`
	}
	if err := c.post(ctx, "/knowledgebases", payload, &resp); err != nil {
		return "", err
	}
	if resp.VectorID != "" {
		return resp.VectorID, nil
	}
	if resp.ID != "" {
		log.Info().Str("id", resp.ID).Msg("knowledge base response missing vector_id, using id")
		return resp.ID, nil
	}
	return "", fmt.Errorf("knowledge base response contains neither vector_id nor id: %w", errs.ErrUpstream)
}

// StartCall initiates an outbound phone call.
func (c *Client) StartCall(ctx context.Context, params CallParams) (CallResult, error) {
	params.PhoneNumber = strings.ReplaceAll(params.PhoneNumber, " ", "")
	log.Info().Str("phone_number", params.PhoneNumber).Msg("starting phone call")

	var result CallResult
	if err := c.post(ctx, "/calls", params, &result); err != nil {
		return CallResult{}, err
	}
	return result, nil
}

// CallStatus fetches the provider's current view of a call.
func (c *Client) CallStatus(ctx context.Context, callID string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/calls/"+callID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call status request failed: %v: %w", err, errs.ErrUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("telephony error (status %d): %s: %w", resp.StatusCode, string(body), errs.ErrUpstream)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v: %w", err, errs.ErrUpstream)
	}
	return out, nil
}

// ConfigStatus reports whether the client has a usable configuration, with a
// masked preview of the API key.
func (c *Client) ConfigStatus() map[string]any {
	if c.apiKey == "" {
		return map[string]any{"status": "error", "message": "telephony API key not set"}
	}
	if c.baseURL == "" {
		return map[string]any{"status": "error", "message": "telephony API URL not set"}
	}

	preview := ""
	if len(c.apiKey) > 5 {
		preview = c.apiKey[:5] + "..."
	}
	return map[string]any{
		"status": "ok",
		"config": map[string]any{
			"api_url":         c.baseURL,
			"api_key_set":     true,
			"api_key_preview": preview,
		},
	}
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telephony request failed: %v: %w", err, errs.ErrUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telephony error (status %d): %s: %w", resp.StatusCode, string(b), errs.ErrUpstream)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %v: %w", err, errs.ErrUpstream)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("authorization", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}
