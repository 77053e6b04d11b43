package repo

import (
	"strings"

	"github.com/rs/zerolog/log"

	"repovoice/pkg/models"
)

const (
	maxKeyFiles     = 5
	maxOtherFiles   = 5
	maxContentChars = 1500
)

// keyPathKeywords marks files a human reviewer would check first: entry
// points, configuration, auth, persistence, routing, environment, containers.
var keyPathKeywords = []string{
	"main", "app", "index", "server",
	"config", "settings", "env",
	"auth", "security", "token",
	"database", "db", "model",
	"route", "docker",
}

// SelectedFile is one file chosen to accompany a prompt, content already
// truncated to the per-file limit.
type SelectedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SkippedFile records a file that could not be read during selection.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Selection is the bounded result of relevance selection, including a
// structured report of files skipped along the way.
type Selection struct {
	Files   []SelectedFile `json:"files"`
	Skipped []SkippedFile  `json:"skipped,omitempty"`
}

// SelectRelevant partitions files into key files (path contains a keyword,
// case-insensitive) and others, preserving input order within each partition,
// and reads at most maxKeyFiles of the former followed by at most
// maxOtherFiles of the latter. Each file's content is truncated to its first
// maxContentChars characters. Unreadable files are skipped and reported; this
// is a static heuristic, not a ranking algorithm.
func SelectRelevant(files []models.FileEntry, read func(path string) (string, error)) Selection {
	var key, other []models.FileEntry
	for _, f := range files {
		if isKeyPath(f.Path) {
			key = append(key, f)
		} else {
			other = append(other, f)
		}
	}

	if len(key) > maxKeyFiles {
		key = key[:maxKeyFiles]
	}
	if len(other) > maxOtherFiles {
		other = other[:maxOtherFiles]
	}

	sel := Selection{}
	for _, f := range append(key, other...) {
		content, err := read(f.Path)
		if err != nil {
			log.Warn().Err(err).Str("path", f.Path).Msg("skipping unreadable file")
			sel.Skipped = append(sel.Skipped, SkippedFile{Path: f.Path, Reason: err.Error()})
			continue
		}
		sel.Files = append(sel.Files, SelectedFile{
			Path:    f.Path,
			Content: truncateChars(content, maxContentChars),
		})
	}
	return sel
}

func isKeyPath(path string) bool {
	p := strings.ToLower(path)
	for _, kw := range keyPathKeywords {
		if strings.Contains(p, kw) {
			return true
		}
	}
	return false
}

// truncateChars keeps the first n characters of s, counting runes so a
// multi-byte character is never split.
func truncateChars(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
