package embedding

import (
	"context"
	"errors"
	"testing"
	"time"
)

type slowEmbedder struct {
	*MockEmbedder
	delay time.Duration
}

func (s *slowEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	time.Sleep(s.delay) // ignores ctx on purpose
	return s.MockEmbedder.Embed(context.Background(), text)
}

func (s *slowEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	time.Sleep(s.delay)
	return s.MockEmbedder.EmbedBatch(context.Background(), texts)
}

type failingEmbedder struct {
	*MockEmbedder
	err error
}

func (f *failingEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, f.err }
func (f *failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, f.err
}

type wrongSizeEmbedder struct{ *MockEmbedder }

func (w *wrongSizeEmbedder) Embed(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func TestTimeoutEmbedder_Deadline(t *testing.T) {
	e := NewTimeoutEmbedder(&slowEmbedder{MockEmbedder: NewMockEmbedder(4), delay: 200 * time.Millisecond}, 20*time.Millisecond)
	_, err := e.Embed(context.Background(), "slow")
	if !errors.Is(err, ErrEmbeddingTimeout) {
		t.Fatalf("expected ErrEmbeddingTimeout, got %v", err)
	}
	if !errors.Is(err, ErrEmbeddingProvider) {
		t.Error("timeout should also match ErrEmbeddingProvider")
	}
	if _, err := e.EmbedBatch(context.Background(), []string{"a"}); !errors.Is(err, ErrEmbeddingTimeout) {
		t.Errorf("batch: expected ErrEmbeddingTimeout, got %v", err)
	}
}

func TestTimeoutEmbedder_PassesThrough(t *testing.T) {
	e := NewTimeoutEmbedder(NewMockEmbedder(4), time.Second)
	v, err := e.Embed(context.Background(), "fast")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 4 {
		t.Errorf("len=%d", len(v))
	}
}

func TestTimeoutEmbedder_WrapsProviderErrors(t *testing.T) {
	e := NewTimeoutEmbedder(&failingEmbedder{MockEmbedder: NewMockEmbedder(4), err: errors.New("connection refused")}, 0)
	_, err := e.Embed(context.Background(), "x")
	if !errors.Is(err, ErrEmbeddingProvider) {
		t.Fatalf("expected ErrEmbeddingProvider, got %v", err)
	}
	if errors.Is(err, ErrEmbeddingTimeout) {
		t.Error("plain failure must not look like a timeout")
	}
}

func TestTimeoutEmbedder_RejectsWrongDimension(t *testing.T) {
	e := NewTimeoutEmbedder(&wrongSizeEmbedder{NewMockEmbedder(4)}, time.Second)
	if _, err := e.Embed(context.Background(), "x"); !errors.Is(err, ErrEmbeddingProvider) {
		t.Errorf("expected ErrEmbeddingProvider for wrong dimension, got %v", err)
	}
}
