// Package voice turns text into audio artifacts stored on local disk.
package voice

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"repovoice/internal/errs"
)

// Synthesizer converts text to speech audio bytes (MP3-encoded).
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ttsChunkChars is the per-request text limit of the translate endpoint.
const ttsChunkChars = 200

// GoogleSynthesizer calls the public Google Translate TTS endpoint. Long text
// is split on whitespace into bounded chunks; the returned MP3 frames are
// concatenated.
type GoogleSynthesizer struct {
	BaseURL    string
	Language   string
	httpClient *http.Client
}

// NewGoogleSynthesizer creates a synthesizer for English speech.
func NewGoogleSynthesizer() *GoogleSynthesizer {
	return &GoogleSynthesizer{
		BaseURL:  "https://translate.google.com/translate_tts",
		Language: "en",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (g *GoogleSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	var audio []byte
	for _, chunk := range splitChunks(text, ttsChunkChars) {
		b, err := g.fetchChunk(ctx, chunk)
		if err != nil {
			return nil, err
		}
		audio = append(audio, b...)
	}
	return audio, nil
}

func (g *GoogleSynthesizer) fetchChunk(ctx context.Context, text string) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", g.Language)
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request failed: %v: %w", err, errs.ErrUpstream)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts error (status %d): %s: %w", resp.StatusCode, string(body), errs.ErrUpstream)
	}

	return io.ReadAll(resp.Body)
}

// splitChunks breaks text into pieces of at most limit characters, preferring
// whitespace boundaries. Words longer than the limit are split mid-word.
func splitChunks(text string, limit int) []string {
	var chunks []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
	}

	for _, word := range strings.Fields(text) {
		for len([]rune(word)) > limit {
			flush()
			r := []rune(word)
			chunks = append(chunks, string(r[:limit]))
			word = string(r[limit:])
		}
		if cur.Len() > 0 && len([]rune(cur.String()))+1+len([]rune(word)) > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	flush()
	return chunks
}

// StubSynthesizer returns canned bytes, for tests and keyless runs.
type StubSynthesizer struct {
	Audio []byte
	Err   error
}

func (s *StubSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Audio != nil {
		return s.Audio, nil
	}
	return []byte("audio:" + text), nil
}
