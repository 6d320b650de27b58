package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/models"
)

// minGeneratedLen is the shortest model reply accepted before falling back.
const minGeneratedLen = 10

// ChatClient is the chat completion call the generative composer needs.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// GenerativeConfig configures the generative composer.
type GenerativeConfig struct {
	APIKey           string
	BaseURL          string
	Model            string
	MaxContextChunks int
	// Timeout bounds one model call; zero means no limit beyond the caller's context.
	Timeout time.Duration
}

// GenerativeComposer asks a chat model to answer from the top retrieved
// chunks. Failed or too-short replies fall back to the template composer.
type GenerativeComposer struct {
	client    ChatClient
	model     string
	maxChunks int
	timeout   time.Duration
	fallback  *TemplateComposer
	logger    *zap.Logger
}

// NewGenerativeComposer creates a composer backed by an OpenAI-compatible API.
func NewGenerativeComposer(cfg GenerativeConfig, logger *zap.Logger) (*GenerativeComposer, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("generative composer: API key not set")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return NewGenerativeComposerWithClient(openai.NewClientWithConfig(clientCfg), cfg, logger), nil
}

// NewGenerativeComposerWithClient creates a composer around an existing client.
func NewGenerativeComposerWithClient(client ChatClient, cfg GenerativeConfig, logger *zap.Logger) *GenerativeComposer {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}
	if cfg.MaxContextChunks < 1 {
		cfg.MaxContextChunks = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerativeComposer{
		client:    client,
		model:     cfg.Model,
		maxChunks: cfg.MaxContextChunks,
		timeout:   cfg.Timeout,
		fallback:  NewTemplateComposer(),
		logger:    logger,
	}
}

// Compose implements Composer.
func (g *GenerativeComposer) Compose(ctx context.Context, question string, chunks []*models.SearchResult) (string, error) {
	if len(chunks) == 0 {
		return NoAnswerMessage, nil
	}
	top := chunks
	if len(top) > g.maxChunks {
		top = top[:g.maxChunks]
	}

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := g.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(question, top)},
		},
		Temperature: 0.2,
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("generate answer: %w", ctx.Err())
		}
		g.logger.Warn("answer generation failed, using template", zap.Error(err))
		return g.fallback.compose(question, chunks), nil
	}

	text := extractAnswer(resp)
	if len([]rune(text)) < minGeneratedLen {
		g.logger.Info("generated answer too short, using template", zap.String("answer", text))
		return g.fallback.compose(question, chunks), nil
	}
	return withSources(text, SourceNames(chunks)), nil
}

const systemPrompt = "You are an assistant answering questions based on the provided company documentation. " +
	"Answer only from the context. If the context does not contain the answer, say so."

func buildPrompt(question string, chunks []*models.SearchResult) string {
	var sb strings.Builder
	sb.WriteString("Context:\n")
	sb.WriteString(joinContext(chunks))
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(question)
	sb.WriteString("\nAnswer:")
	return sb.String()
}

// extractAnswer returns the first choice's content, keeping only the text
// after the last "Answer:" marker when the model echoes the prompt.
func extractAnswer(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return ""
	}
	text := resp.Choices[0].Message.Content
	if i := strings.LastIndex(text, "Answer:"); i >= 0 {
		text = text[i+len("Answer:"):]
	}
	return strings.TrimSpace(text)
}
