package repo

import "repovoice/pkg/models"

// LanguageStats aggregates file extensions into a frequency table. Files
// without an extension are excluded.
func LanguageStats(files []models.FileEntry) map[string]int {
	stats := make(map[string]int)
	for _, f := range files {
		if f.Extension == "" {
			continue
		}
		stats[f.Extension]++
	}
	return stats
}
