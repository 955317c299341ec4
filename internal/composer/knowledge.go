package composer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kalambet/simkit/internal/retrieval"
)

// DefaultMaxContextTokens is the knowledge budget used when none is configured.
const DefaultMaxContextTokens = 2000

// FormatKnowledge renders retrieved chunks as the knowledge context of a
// prompt. Chunks are taken highest score first; any chunk that would push the
// total past maxTokens is skipped so smaller, lower-ranked chunks can still
// fit. Returns "" when nothing fits.
func FormatKnowledge(chunks []retrieval.ContextChunk, maxTokens int) string {
	if len(chunks) == 0 {
		return ""
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}

	sorted := make([]retrieval.ContextChunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	var sb strings.Builder
	remaining := maxTokens
	for _, ch := range sorted {
		entry := formatChunk(ch)
		tokens := EstimateTokens(entry)
		if tokens > remaining {
			continue
		}
		sb.WriteString(entry)
		remaining -= tokens
	}
	return strings.TrimSpace(sb.String())
}

func formatChunk(ch retrieval.ContextChunk) string {
	title := ch.DocumentTitle
	if title == "" {
		title = "untitled"
	}
	return fmt.Sprintf("[%s] (relevance %.2f)\n%s\n\n", title, ch.Score, strings.TrimSpace(ch.Text))
}

// EstimateTokens provides a rough token count using 4 chars per token heuristic.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
