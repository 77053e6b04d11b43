package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"repovoice/internal/errs"
)

const generateTimeout = 60 * time.Second

type GeminiClient struct {
	config *Config
	client *genai.Client
}

// NewGeminiClient creates a client for the Google Gemini API.
func NewGeminiClient(ctx context.Context, config *Config) (*GeminiClient, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}
	if config.Model == "" {
		config.Model = "gemini-2.0-flash"
	}

	cc := genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  config.APIKey,
	}
	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{config: config, client: client}, nil
}

// Generate sends one prompt and returns the model's text reply.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	temp := float32(0.2)
	cfg := genai.GenerateContentConfig{
		Temperature: &temp,
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, genai.Text(prompt), &cfg)
	if err != nil {
		return "", fmt.Errorf("generation failed: %v: %w", err, errs.ErrUpstream)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no candidates returned: %w", errs.ErrUpstream)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String()), nil
}
