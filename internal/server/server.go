// Package server provides the HTTP API for tanya.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/answer"
	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/search"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/store"
)

// maxUploadBytes caps multipart uploads.
const maxUploadBytes = 32 << 20

// WatchService manages watched directories. *watcher.Watcher satisfies it.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Deps are the components the API serves from.
type Deps struct {
	Engine    *answer.Engine
	Retriever *search.Retriever
	Finder    *search.Finder
	Indexer   *indexer.Indexer
	Registry  storage.Registry
	Keyword   keyword.Index
	Store     *store.Store
}

// Server is the HTTP server for the tanya API.
type Server struct {
	deps       Deps
	config     *config.Config
	configPath string
	configMu   sync.Mutex
	watch      WatchService
	logger     *zap.Logger
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithWatch enables the watch directory endpoints. When configPath is set,
// directory changes are saved back to that config file.
func WithWatch(ws WatchService, configPath string) Option {
	return func(s *Server) {
		s.watch = ws
		s.configPath = configPath
	}
}

// NewServer creates a server with the given dependencies.
func NewServer(deps Deps, cfg *config.Config, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		deps:   deps,
		config: cfg,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the HTTP handler with every route mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/ask", s.handleAsk)
		r.Post("/search", s.handleSearch)
		r.Get("/find", s.handleFind)
		r.Get("/stats", s.handleStats)
		r.Delete("/store", s.handleClear)

		r.Get("/documents", s.handleListDocuments)
		r.Post("/documents", s.handleIndexDocument)
		r.Post("/documents/upload", s.handleUpload)
		r.Get("/documents/{id}", s.handleGetDocument)

		r.Get("/watch/directories", s.handleWatchDirectoriesList)
		r.Post("/watch/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/watch/directories", s.handleWatchDirectoriesRemove)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
