// Package embedding turns text into fixed-dimension vectors via ONNX, OpenAI,
// Ollama or a deterministic mock, with caching and timeout decorators.
package embedding

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmbeddingProvider marks any failure of the embedding backend.
var ErrEmbeddingProvider = errors.New("embedding provider error")

// ErrEmbeddingTimeout is returned when a provider call exceeds its deadline.
var ErrEmbeddingTimeout = fmt.Errorf("%w: timed out", ErrEmbeddingProvider)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// providerError wraps err with ErrEmbeddingProvider unless it already carries it.
func providerError(op string, err error) error {
	if errors.Is(err, ErrEmbeddingProvider) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrEmbeddingProvider, op, err)
}

func checkDimensions(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("%w: got %d dimensions, want %d", ErrEmbeddingProvider, len(vec), want)
	}
	return nil
}
