package ai

import (
	"context"
	"errors"
	"strings"
)

// Client generates text from a prompt.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config holds configuration for AI clients.
type Config struct {
	APIKey string
	Model  string
}

// NewClient creates a Gemini-backed client, or a stub when no API key is set.
func NewClient(ctx context.Context, cfg *Config) (Client, error) {
	if cfg == nil {
		return nil, errors.New("client config is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return NewStubClient(), nil
	}
	return NewGeminiClient(ctx, cfg)
}

// StubClient is a canned implementation of Client for tests and keyless runs.
type StubClient struct {
	Response string
	Err      error
}

// NewStubClient creates a StubClient with a minimal canned answer.
func NewStubClient() *StubClient {
	return &StubClient{
		Response: `{"text_response": "No model configured.", "code_snippets": [], "references": []}`,
	}
}

func (s *StubClient) Generate(ctx context.Context, prompt string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	return s.Response, nil
}
