package models

import "time"

// RepositorySource identifies where a repository's files came from.
type RepositorySource string

const (
	SourceGithub RepositorySource = "github"
	SourceLocal  RepositorySource = "local"
	SourceZip    RepositorySource = "zip"
	SourceGit    RepositorySource = "git"
)

// ValidSource reports whether s is a known repository source.
func ValidSource(s RepositorySource) bool {
	switch s {
	case SourceGithub, SourceLocal, SourceZip, SourceGit:
		return true
	}
	return false
}

// RepositoryStatus tracks a repository through ingestion.
type RepositoryStatus string

const (
	StatusPending    RepositoryStatus = "pending"
	StatusProcessing RepositoryStatus = "processing"
	StatusReady      RepositoryStatus = "ready"
	StatusError      RepositoryStatus = "error"
)

// Repository is a user-supplied code tree ingested into local storage.
type Repository struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	Source        RepositorySource `json:"source"`
	SourceURL     string           `json:"source_url,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	FileCount     int              `json:"file_count"`
	LanguageStats map[string]int   `json:"language_stats"`
	Status        RepositoryStatus `json:"status"`
}

// FileEntry describes one regular file under a repository root. Paths are
// repository-root-relative and always forward-slash separated.
type FileEntry struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
}

// CodeSnippet is one code excerpt in a model answer.
type CodeSnippet struct {
	Language    string `json:"language"`
	Code        string `json:"code"`
	Explanation string `json:"explanation"`
}

// Reference points at documentation, a pattern, or a library mentioned in an answer.
type Reference struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// QuestionResponse is the structured answer to a question.
type QuestionResponse struct {
	TextResponse string        `json:"text_response"`
	AudioURL     string        `json:"audio_url,omitempty"`
	CodeSnippets []CodeSnippet `json:"code_snippets"`
	References   []Reference   `json:"references"`
}

// Question is a natural-language question about a repository. Context, when
// set, is the repository-relative path of a file to include in the prompt.
type Question struct {
	ID           string            `json:"id"`
	RepositoryID string            `json:"repository_id"`
	Question     string            `json:"question"`
	Context      string            `json:"context,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	Response     *QuestionResponse `json:"response,omitempty"`
}

// AudioFormat is a supported audio container type.
type AudioFormat string

const (
	FormatMP3 AudioFormat = "mp3"
	FormatWAV AudioFormat = "wav"
	FormatOGG AudioFormat = "ogg"
)

// ValidAudioFormat reports whether f is a supported audio format.
func ValidAudioFormat(f AudioFormat) bool {
	switch f {
	case FormatMP3, FormatWAV, FormatOGG:
		return true
	}
	return false
}

// AudioArtifact describes one generated audio file.
type AudioArtifact struct {
	Filename        string      `json:"filename"`
	URL             string      `json:"audio_url"`
	DurationSeconds float64     `json:"duration_seconds"`
	Format          AudioFormat `json:"format"`
}
