package retrieval

import "github.com/studyloop-ai/studyloop-engine/pkg/models"

// Dedup merges ordered result sets into one list, keeping the first
// occurrence of each source id. Set order encodes strategy precedence, so
// the caller passes semantic results before full-text before page lookups.
// Pure and idempotent: deduplicating a deduplicated list is a no-op.
func Dedup(resultSets [][]models.DocumentSource) []models.DocumentSource {
	seen := make(map[string]struct{})
	merged := make([]models.DocumentSource, 0)

	for _, set := range resultSets {
		for _, source := range set {
			if _, ok := seen[source.ID]; ok {
				continue
			}
			seen[source.ID] = struct{}{}
			merged = append(merged, source)
		}
	}

	return merged
}
