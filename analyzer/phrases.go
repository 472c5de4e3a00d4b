package analyzer

import (
	"sort"
	"strings"

	"nlpservice/models"
)

// extractKeyPhrases ranks noun chunks and entity texts, deduplicates them
// case-insensitively (first occurrence wins), and keeps the top ten.
// Entities outrank chunks unless the same phrase already appeared as a
// chunk.
func extractKeyPhrases(ann Annotation) []models.KeyPhrase {
	phrases := make([]models.KeyPhrase, 0, len(ann.NounChunks)+len(ann.Entities))
	seen := make(map[string]bool)

	for _, chunk := range ann.NounChunks {
		phrase := strings.TrimSpace(chunk)
		if len(phrase) <= 2 {
			continue
		}
		key := strings.ToLower(phrase)
		if seen[key] {
			continue
		}
		seen[key] = true
		phrases = append(phrases, models.KeyPhrase{Phrase: phrase, Score: 0.8})
	}

	for _, ent := range ann.Entities {
		key := strings.ToLower(ent.Text)
		if seen[key] {
			continue
		}
		seen[key] = true
		phrases = append(phrases, models.KeyPhrase{Phrase: ent.Text, Score: 0.9})
	}

	sort.SliceStable(phrases, func(i, j int) bool {
		return phrases[i].Score > phrases[j].Score
	})

	if len(phrases) > 10 {
		phrases = phrases[:10]
	}
	return phrases
}
