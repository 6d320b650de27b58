// Package keyword provides a full-text index over stored chunks, used for
// exact term lookup alongside semantic retrieval.
package keyword

import (
	"context"

	"github.com/hyperjump/tanya/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true.
	Fuzziness int
}

// Index defines keyword search operations over chunks keyed by store position.
type Index interface {
	Index(ctx context.Context, position int, text string, meta models.ChunkMetadata) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error)
	// Clear drops every indexed chunk.
	Clear(ctx context.Context) error
	Close() error
	// DocCount returns the number of indexed chunks.
	DocCount() (uint64, error)
}

// Result is a single keyword search hit.
type Result struct {
	Position int
	Score    float64
}
