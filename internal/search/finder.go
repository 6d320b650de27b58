package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
)

const defaultFindLimit = 10

// ChunkGetter resolves a store position to its chunk. *store.Store satisfies it.
type ChunkGetter interface {
	Get(position int) (*models.SearchResult, bool)
}

// Finder runs keyword lookups and resolves hits against the vector store.
// It never feeds retrieval tiers.
type Finder struct {
	index  keyword.Index
	chunks ChunkGetter
	logger *zap.Logger
}

// NewFinder creates a finder. A nil logger is replaced by a no-op logger.
func NewFinder(index keyword.Index, chunks ChunkGetter, logger *zap.Logger) *Finder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{index: index, chunks: chunks, logger: logger}
}

// Find returns up to limit chunks matching terms, best first. Hits whose
// position is no longer in the store are dropped.
func (f *Finder) Find(ctx context.Context, terms string, limit int, fuzzy bool) ([]*models.KeywordHit, error) {
	if limit <= 0 {
		limit = defaultFindLimit
	}
	opts := &keyword.SearchOptions{FuzzyEnabled: fuzzy, Fuzziness: 1}
	results, err := f.index.Search(ctx, terms, limit, opts)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	hits := make([]*models.KeywordHit, 0, len(results))
	for _, r := range results {
		chunk, ok := f.chunks.Get(r.Position)
		if !ok {
			f.logger.Debug("keyword hit outside store", zap.Int("position", r.Position))
			continue
		}
		hits = append(hits, &models.KeywordHit{
			Position: r.Position,
			Text:     chunk.Text,
			Metadata: chunk.Metadata,
			Score:    r.Score,
		})
	}
	return hits, nil
}
