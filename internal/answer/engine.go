package answer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/search"
)

// Retriever finds the chunks for a question.
type Retriever interface {
	Retrieve(ctx context.Context, question string) (*search.Outcome, error)
}

// Engine answers questions: retrieve, then compose in the requested mode.
type Engine struct {
	retriever   Retriever
	template    Composer
	generative  Composer
	defaultMode string
	logger      *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithGenerative enables the generative mode.
func WithGenerative(c Composer) EngineOption {
	return func(e *Engine) { e.generative = c }
}

// WithDefaultMode sets the mode used when a request names none.
func WithDefaultMode(mode string) EngineOption {
	return func(e *Engine) { e.defaultMode = mode }
}

// NewEngine creates an answer engine using the template composer by default.
func NewEngine(r Retriever, opts ...EngineOption) *Engine {
	e := &Engine{
		retriever:   r,
		template:    NewTemplateComposer(),
		defaultMode: models.ModeTemplate,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// Ask answers req. No retrieved chunks is a normal outcome answered with
// NoAnswerMessage; retrieval failures are returned as errors. Generative
// requests without a configured model are answered by the template composer.
func (e *Engine) Ask(ctx context.Context, req *models.AskRequest) (*models.Answer, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	mode := req.Mode
	if mode == "" {
		mode = e.defaultMode
	}

	out, err := e.retriever.Retrieve(ctx, req.Question)
	if err != nil {
		return nil, err
	}

	ans := &models.Answer{
		Question:  req.Question,
		Sources:   SourceNames(out.Results),
		Chunks:    out.Results,
		Category:  search.Categorize(req.Question),
		Tier:      out.Tier,
		Confident: out.Confident(),
		LowScore:  out.LowScore,
	}
	if !out.Confident() {
		ans.Text = NoAnswerMessage
		ans.Sources = []string{}
		ans.Mode = mode
		ans.QueryTime = time.Since(start).Milliseconds()
		return ans, nil
	}

	composer := e.template
	if mode == models.ModeGenerative {
		if e.generative != nil {
			composer = e.generative
		} else {
			e.logger.Info("generative mode not configured, using template")
			mode = models.ModeTemplate
		}
	}
	text, err := composer.Compose(ctx, req.Question, out.Results)
	if err != nil {
		return nil, err
	}
	ans.Text = text
	ans.Mode = mode
	ans.QueryTime = time.Since(start).Milliseconds()

	e.logger.Debug("question answered",
		zap.String("category", ans.Category),
		zap.String("mode", mode),
		zap.Int("tier", out.Tier),
		zap.Int("chunks", len(out.Results)))
	return ans, nil
}
