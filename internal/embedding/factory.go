package embedding

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/config"
)

// Provider names accepted by New.
const (
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// New builds the configured provider and wraps it with the cache and timeout
// decorators. An ONNX model that cannot be loaded falls back to the mock
// embedder so the tool stays usable without a model file.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var base Embedder
	switch cfg.Provider {
	case ProviderONNX, "":
		onnx, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			logger.Warn("onnx embedder unavailable, using mock embedder",
				zap.String("model_path", cfg.ModelPath), zap.Error(err))
			base = NewMockEmbedder(cfg.Dimensions)
		} else {
			base = onnx
		}
	case ProviderOpenAI:
		keyEnv := cfg.APIKeyEnv
		if keyEnv == "" {
			keyEnv = "OPENAI_API_KEY"
		}
		oa, err := NewOpenAIEmbedder(OpenAIConfig{
			APIKey:     os.Getenv(keyEnv),
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			return nil, err
		}
		base = oa
	case ProviderOllama:
		base = NewOllamaEmbedder(OllamaConfig{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
	case ProviderMock:
		base = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}

	if base.Dimensions() != cfg.Dimensions {
		_ = base.Close()
		return nil, fmt.Errorf("%w: provider %s produces %d dimensions, config expects %d",
			ErrEmbeddingProvider, cfg.Provider, base.Dimensions(), cfg.Dimensions)
	}

	logger.Info("embedder initialized",
		zap.String("provider", cfg.Provider),
		zap.Int("dimensions", base.Dimensions()))

	var e Embedder = base
	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	return NewTimeoutEmbedder(e, cfg.Timeout), nil
}
