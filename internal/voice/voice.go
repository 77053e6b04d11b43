package voice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"repovoice/internal/errs"
	"repovoice/pkg/models"
)

// BaseURL is the path prefix under which audio files are served.
const BaseURL = "/audio/files"

// Approximate audio bitrates in bits per second, used to estimate duration
// from payload size. The synthesizer emits 32 kbit/s MP3.
var formatBitrate = map[models.AudioFormat]int{
	models.FormatMP3: 32_000,
	models.FormatWAV: 256_000,
	models.FormatOGG: 96_000,
}

// Service generates, serves, and deletes audio artifacts under AudioDir.
// Files are named by a fresh token plus the requested format's extension.
type Service struct {
	AudioDir string
	Synth    Synthesizer
}

// NewService creates a Service and ensures the audio directory exists.
func NewService(audioDir string, synth Synthesizer) (*Service, error) {
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio directory: %w", err)
	}
	log.Info().Str("audio_dir", audioDir).Msg("voice service initialized")
	return &Service{AudioDir: audioDir, Synth: synth}, nil
}

// Generate synthesizes speech for text and stores it as a new audio file.
// Empty or whitespace-only text is a validation error.
func (s *Service) Generate(ctx context.Context, text string, format models.AudioFormat) (models.AudioArtifact, error) {
	if strings.TrimSpace(text) == "" {
		return models.AudioArtifact{}, fmt.Errorf("text is required: %w", errs.ErrValidation)
	}
	if !models.ValidAudioFormat(format) {
		return models.AudioArtifact{}, fmt.Errorf("unsupported audio format %q: %w", format, errs.ErrValidation)
	}

	audio, err := s.Synth.Synthesize(ctx, text)
	if err != nil {
		return models.AudioArtifact{}, fmt.Errorf("synthesize: %w", err)
	}

	filename := uuid.NewString() + "." + string(format)
	path := filepath.Join(s.AudioDir, filename)
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return models.AudioArtifact{}, fmt.Errorf("write audio file: %w", err)
	}

	artifact := models.AudioArtifact{
		Filename:        filename,
		URL:             BaseURL + "/" + filename,
		DurationSeconds: estimateDuration(len(audio), format),
		Format:          format,
	}
	log.Info().Str("filename", filename).Float64("duration_s", artifact.DurationSeconds).Msg("generated audio")
	return artifact, nil
}

// FilePath resolves an audio filename to its on-disk path. The name must be a
// bare filename; anything resembling a path is rejected.
func (s *Service) FilePath(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid audio filename %q: %w", name, errs.ErrValidation)
	}
	path := filepath.Join(s.AudioDir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("audio file %s: %w", name, errs.ErrNotFound)
		}
		return "", err
	}
	return path, nil
}

// Delete removes an audio file by name.
func (s *Service) Delete(name string) error {
	path, err := s.FilePath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete audio file %s: %w", name, err)
	}
	log.Info().Str("filename", name).Msg("deleted audio file")
	return nil
}

// ContentType maps an audio filename to its media type by extension.
func ContentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	default:
		return "application/octet-stream"
	}
}

// estimateDuration derives playback seconds from byte size at the format's
// nominal bitrate. Zero-length payloads report zero duration.
func estimateDuration(sizeBytes int, format models.AudioFormat) float64 {
	bitrate := formatBitrate[format]
	if bitrate == 0 {
		bitrate = formatBitrate[models.FormatMP3]
	}
	return float64(sizeBytes*8) / float64(bitrate)
}
