package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hyperjump/tanya/internal/config"
)

func TestNew_Mock(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: ProviderMock, Dimensions: 16, CacheSize: 4, Timeout: time.Second}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if e.Dimensions() != 16 {
		t.Errorf("Dimensions=%d", e.Dimensions())
	}
	if _, ok := e.(*TimeoutEmbedder); !ok {
		t.Errorf("expected TimeoutEmbedder at the top, got %T", e)
	}
	if _, err := e.Embed(context.Background(), "hello"); err != nil {
		t.Fatal(err)
	}
}

func TestNew_ONNXFallsBackToMock(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Provider: ProviderONNX, ModelPath: "/nonexistent/model.onnx", Dimensions: 32}, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()
	if e.Dimensions() != 32 {
		t.Errorf("Dimensions=%d", e.Dimensions())
	}
}

func TestNew_DimensionMismatch(t *testing.T) {
	_, err := New(config.EmbeddingConfig{Provider: ProviderOllama, Model: "all-minilm", Dimensions: 0}, nil)
	if !errors.Is(err, ErrEmbeddingProvider) {
		t.Errorf("expected ErrEmbeddingProvider for dimension mismatch, got %v", err)
	}
}

func TestNew_Unknown(t *testing.T) {
	if _, err := New(config.EmbeddingConfig{Provider: "magic", Dimensions: 8}, nil); err == nil {
		t.Error("expected error for unknown provider")
	}
}
