package embedding

import (
	"context"
	"strings"
	"unicode"

	"github.com/hyperjump/tanya/pkg/utils"
)

// MockEmbedder is a deterministic bag-of-words embedder. Each lower-cased word
// hashes into a bucket, so texts sharing vocabulary score higher against each
// other. Used in tests and as the fallback when no model is available.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder that produces deterministic embeddings of the given dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns the normalized word-bucket histogram of text.
func (e *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	emb := make([]float32, e.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := HashString(w)
		emb[h%e.dimensions] += 1
		// second bucket with opposite sign keeps unrelated words from colliding fully
		emb[(h/7+1)%e.dimensions] -= 0.25
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
