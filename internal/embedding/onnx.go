//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/hyperjump/tanya/pkg/utils"
)

// ONNXEmbedder uses ONNX Runtime to produce embeddings. It requires CGO and the onnxruntime shared library.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int
	tokenizer  Tokenizer
	// Pre-allocated tensors for Run(); we update input data and read output.
	inputIDsTensor      *ort.Tensor[int64]
	attentionMaskTensor *ort.Tensor[int64]
	tokenTypeIDsTensor  *ort.Tensor[int64]
	outputTensor        *ort.Tensor[float32]
	mu                  sync.Mutex
}

// NewONNXEmbedder creates an ONNX embedder. InitializeEnvironment is called if not already done.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens int) (*ONNXEmbedder, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX runtime: %w", err)
		}
	}

	tokenizer := &SimpleTokenizer{}
	inputIDs, attentionMask, tokenTypeIDs := tokenizer.Tokenize("", maxTokens)
	shape := ort.NewShape(1, int64(maxTokens))

	e := &ONNXEmbedder{dimensions: dimensions, maxTokens: maxTokens, tokenizer: tokenizer}
	var err error
	if e.inputIDsTensor, err = ort.NewTensor(shape, inputIDs); err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	if e.attentionMaskTensor, err = ort.NewTensor(shape, attentionMask); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	if e.tokenTypeIDsTensor, err = ort.NewTensor(shape, tokenTypeIDs); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create token_type_ids tensor: %w", err)
	}
	if e.outputTensor, err = ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions)); err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	e.session, err = ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{e.inputIDsTensor, e.attentionMaskTensor, e.tokenTypeIDsTensor},
		[]ort.ArbitraryTensor{e.outputTensor},
		nil,
	)
	if err != nil {
		e.Close()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return e, nil
}

// Embed runs the model on text and returns a unit-norm vector.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	inputIDs, attentionMask, tokenTypeIDs := e.tokenizer.Tokenize(text, e.maxTokens)

	copy(e.inputIDsTensor.GetData(), inputIDs)
	copy(e.attentionMaskTensor.GetData(), attentionMask)
	copy(e.tokenTypeIDsTensor.GetData(), tokenTypeIDs)

	if err := e.session.Run(); err != nil {
		return nil, providerError("onnx inference", err)
	}

	embedding := make([]float32, e.dimensions)
	copy(embedding, e.outputTensor.GetData()[:e.dimensions])
	utils.NormalizeL2(embedding)
	return embedding, nil
}

// EmbedBatch calls Embed for each text; the session is single-input.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
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
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.inputIDsTensor != nil {
		_ = e.inputIDsTensor.Destroy()
		e.inputIDsTensor = nil
	}
	if e.attentionMaskTensor != nil {
		_ = e.attentionMaskTensor.Destroy()
		e.attentionMaskTensor = nil
	}
	if e.tokenTypeIDsTensor != nil {
		_ = e.tokenTypeIDsTensor.Destroy()
		e.tokenTypeIDsTensor = nil
	}
	if e.outputTensor != nil {
		_ = e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	return err
}
