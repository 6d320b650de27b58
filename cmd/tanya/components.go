package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/answer"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/search"
	"github.com/hyperjump/tanya/internal/server"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/store"
	"github.com/hyperjump/tanya/internal/vector"
)

// Components holds initialized services.
type Components struct {
	Config    *config.Config
	Embedder  embedding.Embedder
	Store     *store.Store
	Registry  *storage.SQLiteRegistry
	Keyword   *keyword.BleveIndex
	Indexer   *indexer.Indexer
	Retriever *search.Retriever
	Finder    *search.Finder
	Engine    *answer.Engine
}

// Close releases every component that holds files or sessions.
func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
	if c.Keyword != nil {
		_ = c.Keyword.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

// ServerDeps returns the API dependencies backed by these components.
func (c *Components) ServerDeps() server.Deps {
	return server.Deps{
		Engine:    c.Engine,
		Retriever: c.Retriever,
		Finder:    c.Finder,
		Indexer:   c.Indexer,
		Registry:  c.Registry,
		Keyword:   c.Keyword,
		Store:     c.Store,
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	var err error
	c.Embedder, err = embedding.New(cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	indexType, fellBack, err := vector.ResolveIndexType(cfg.Vector.IndexType)
	if err != nil {
		return nil, err
	}
	if fellBack {
		logger.Warn("faiss not compiled in, falling back to memory index")
	}
	c.Store, err = store.Open(cfg.Storage.StorePath, c.Embedder.Dimensions(),
		store.WithEmbedder(c.Embedder),
		store.WithIndexType(string(indexType)),
		store.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	c.Registry, err = storage.NewSQLiteRegistry(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize registry: %w", err)
	}

	c.Keyword, err = keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}

	c.Indexer = indexer.NewIndexer(c.Store, c.Registry, cfg.Chunking,
		indexer.WithLogger(logger),
		indexer.WithKeywordIndex(c.Keyword),
	)

	c.Retriever, err = search.NewRetriever(c.Store, search.PolicyFromConfig(cfg.Retrieval.Tiers),
		search.WithLogger(logger),
		search.WithExpander(search.NewExpander(cfg.Retrieval.Abbreviations)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize retriever: %w", err)
	}
	c.Finder = search.NewFinder(c.Keyword, c.Store, logger)

	engineOpts := []answer.EngineOption{
		answer.WithLogger(logger),
		answer.WithDefaultMode(cfg.Answer.Mode),
	}
	if gen := generativeComposer(cfg.Answer, logger); gen != nil {
		engineOpts = append(engineOpts, answer.WithGenerative(gen))
	}
	c.Engine = answer.NewEngine(c.Retriever, engineOpts...)

	ok = true
	return c, nil
}

// generativeComposer returns nil when no credentials are configured, which
// leaves generative requests answered by the template composer.
func generativeComposer(cfg config.AnswerConfig, logger *zap.Logger) *answer.GenerativeComposer {
	apiKey := ""
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
	}
	gen, err := answer.NewGenerativeComposer(answer.GenerativeConfig{
		APIKey:           apiKey,
		BaseURL:          cfg.BaseURL,
		Model:            cfg.Model,
		MaxContextChunks: cfg.MaxContextChunks,
		Timeout:          cfg.Timeout,
	}, logger)
	if err != nil {
		logger.Debug("generative answers disabled", zap.String("api_key_env", cfg.APIKeyEnv), zap.Error(err))
		return nil
	}
	return gen
}
