package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"
)

func errBatchLength(got, want int) error {
	return fmt.Errorf("provider returned %d vectors for %d texts", got, want)
}

// TimeoutEmbedder bounds every provider call with a deadline and normalizes
// failures: errors wrap ErrEmbeddingProvider, deadlines surface as
// ErrEmbeddingTimeout and vectors of the wrong size are rejected.
type TimeoutEmbedder struct {
	inner   Embedder
	timeout time.Duration
}

// NewTimeoutEmbedder wraps inner. A zero timeout disables the deadline but
// keeps error normalization.
func NewTimeoutEmbedder(inner Embedder, timeout time.Duration) *TimeoutEmbedder {
	return &TimeoutEmbedder{inner: inner, timeout: timeout}
}

type embedResult struct {
	vecs [][]float32
	err  error
}

// run calls fn in a goroutine so providers that ignore ctx still honor the deadline.
func (t *TimeoutEmbedder) run(ctx context.Context, op string, fn func(context.Context) ([][]float32, error)) ([][]float32, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	done := make(chan embedResult, 1)
	go func() {
		vecs, err := fn(ctx)
		done <- embedResult{vecs: vecs, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s after %s", ErrEmbeddingTimeout, op, t.timeout)
			}
			return nil, providerError(op, res.err)
		}
		for _, v := range res.vecs {
			if err := checkDimensions(v, t.inner.Dimensions()); err != nil {
				return nil, err
			}
		}
		return res.vecs, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrEmbeddingTimeout, op, t.timeout)
		}
		return nil, providerError(op, ctx.Err())
	}
}

// Embed embeds one text under the deadline.
func (t *TimeoutEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := t.run(ctx, "embed", func(ctx context.Context) ([][]float32, error) {
		v, err := t.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		return [][]float32{v}, nil
	})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts under one deadline.
func (t *TimeoutEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := t.run(ctx, "embed batch", func(ctx context.Context) ([][]float32, error) {
		return t.inner.EmbedBatch(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, providerError("embed batch", errBatchLength(len(vecs), len(texts)))
	}
	return vecs, nil
}

// Dimensions returns the inner embedder's dimension.
func (t *TimeoutEmbedder) Dimensions() int { return t.inner.Dimensions() }

// Close closes the inner embedder.
func (t *TimeoutEmbedder) Close() error { return t.inner.Close() }
