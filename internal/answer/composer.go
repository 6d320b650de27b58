// Package answer composes replies to questions from retrieved chunks.
package answer

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/pkg/utils"
)

// NoAnswerMessage is returned when retrieval finds nothing in any tier.
const NoAnswerMessage = "Sorry, I couldn't find a confident answer to your question. Try rephrasing or check that the relevant documents are loaded."

// Composer turns a question and its retrieved chunks into answer text.
type Composer interface {
	Compose(ctx context.Context, question string, chunks []*models.SearchResult) (string, error)
}

// SourceNames returns the base names of the chunks' sources, de-duplicated
// in order of first appearance.
func SourceNames(chunks []*models.SearchResult) []string {
	seen := make(map[string]struct{}, len(chunks))
	names := make([]string, 0, len(chunks))
	for _, c := range chunks {
		src := c.Metadata.Source
		if src == "" {
			src = "unknown.txt"
		}
		name := filepath.Base(src)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// withSources appends the source line to text.
func withSources(text string, sources []string) string {
	if len(sources) == 0 {
		return text
	}
	return text + "\n\nSources: " + strings.Join(sources, ", ")
}

// joinContext concatenates chunk texts with blank lines between them.
func joinContext(chunks []*models.SearchResult) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = strings.TrimSpace(c.Text)
	}
	return strings.Join(parts, "\n\n")
}

// excerpt returns the first n runes of s, marking a cut with "...".
func excerpt(s string, n int) string {
	return utils.Truncate(strings.TrimSpace(s), n)
}
