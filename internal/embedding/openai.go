package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hyperjump/tanya/pkg/utils"
)

// OpenAIConfig configures the OpenAI-compatible embedder.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

// openAIModelDimensions maps known models to their native embedding size.
var openAIModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIEmbedder calls the embeddings endpoint of any OpenAI-compatible API.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	// reduce asks the API to shorten vectors; only text-embedding-3 models accept it.
	reduce bool
}

// NewOpenAIEmbedder creates an OpenAI embedder. Dimensions defaults to the
// model's native size.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai embedder: API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	native, known := openAIModelDimensions[cfg.Model]
	dims := cfg.Dimensions
	if dims == 0 {
		dims = native
	}
	if dims == 0 {
		return nil, fmt.Errorf("openai embedder: dimensions required for model %q", cfg.Model)
	}
	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: dims,
		reduce:     known && dims != native,
	}, nil
}

// Embed generates an embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends all texts in one request and returns vectors in input order.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	}
	if e.reduce {
		req.Dimensions = e.dimensions
	}
	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, providerError("openai embeddings", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, providerError("openai embeddings", errBatchLength(len(resp.Data), len(texts)))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, providerError("openai embeddings", fmt.Errorf("index %d out of range", d.Index))
		}
		v := make([]float32, len(d.Embedding))
		copy(v, d.Embedding)
		utils.NormalizeL2(v)
		out[d.Index] = v
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the HTTP client has no resources to release.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
