package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperjump/tanya/pkg/utils"
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// BaseURL is the Ollama API base URL (default: http://localhost:11434).
	BaseURL string
	// Model is the embedding model to use (default: nomic-embed-text).
	Model string
	// Dimensions overrides the known size of Model.
	Dimensions int
	// Timeout is the HTTP request timeout (default: 30s).
	Timeout time.Duration
}

// ollamaModelDimensions maps known models to their embedding dimensions.
var ollamaModelDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"bge-m3":                 1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
}

// OllamaEmbedder generates embeddings using Ollama's API.
type OllamaEmbedder struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

// NewOllamaEmbedder creates a new Ollama embedder.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 768
		if d, ok := ollamaModelDimensions[cfg.Model]; ok {
			dimensions = d
		}
	}
	return &OllamaEmbedder{
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float64 `json:"embedding"`
}

// Embed generates an embedding for a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, providerError("ollama request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, providerError("ollama", fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody)))
	}

	var embedResp ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embedResp); err != nil {
		return nil, providerError("ollama decode", err)
	}
	if len(embedResp.Embedding) == 0 {
		return nil, providerError("ollama", fmt.Errorf("empty embedding for model %s", e.model))
	}

	embedding := make([]float32, len(embedResp.Embedding))
	for i, v := range embedResp.Embedding {
		embedding[i] = float32(v)
	}
	utils.NormalizeL2(embedding)
	return embedding, nil
}

// EmbedBatch generates embeddings for multiple texts.
// Ollama doesn't have a native batch API, so we call Embed for each text.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimensionality.
func (e *OllamaEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *OllamaEmbedder) Close() error {
	return nil
}
