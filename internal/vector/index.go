// Package vector provides the similarity index used by the chunk store.
package vector

import (
	"context"
	"errors"
)

// ErrCorrupt is returned by Load when a saved index cannot be decoded.
var ErrCorrupt = errors.New("vector index file corrupt")

// ErrDimensionMismatch is returned when a vector does not match the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// ErrNonFinite is returned for vectors holding NaN or infinite components.
var ErrNonFinite = errors.New("vector has non-finite components")

// NoLabel marks a result slot for which the index had no candidate.
const NoLabel int64 = -1

// VectorIndex is an append-only inner-product index. A vector's label is its
// insertion position, starting at 0.
type VectorIndex interface {
	Add(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Reset() error
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Type() string
	Close() error
}

// VectorResult is a single search hit. Label is NoLabel for padding slots.
type VectorResult struct {
	Label int64
	Score float64 // inner product; cosine similarity for normalized vectors
}
