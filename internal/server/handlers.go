package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/store"
	"github.com/hyperjump/tanya/pkg/utils"
)

// statusFor maps a component error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidRequest),
		errors.Is(err, extract.ErrUnsupported),
		errors.Is(err, extract.ErrNoText),
		errors.Is(err, indexer.ErrEmptyDocument),
		errors.Is(err, store.ErrIndexInsertion):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, embedding.ErrEmbeddingProvider):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, zap.Error(err))
	} else {
		s.logger.Debug(msg, zap.Error(err))
	}
	s.respondError(w, status, err.Error())
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("ask request", zap.String("question", req.Question), zap.String("mode", req.Mode))
	ans, err := s.deps.Engine.Ask(r.Context(), &req)
	if err != nil {
		s.fail(w, "ask failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, ans)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("k", query.K))
	response, err := s.deps.Retriever.Search(r.Context(), &query)
	if err != nil {
		s.fail(w, "search failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, ok := s.intParam(w, r, "limit", 10)
	if !ok {
		return
	}
	fuzzy := r.URL.Query().Get("fuzzy") == "true"
	hits, err := s.deps.Finder.Find(r.Context(), q, limit, fuzzy)
	if err != nil {
		s.fail(w, "find failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": q, "hits": hits})
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("index document request", zap.String("id", input.ID), zap.String("title", input.Title))
	res, err := s.deps.Indexer.IndexText(r.Context(), &input)
	if err != nil {
		s.fail(w, "indexing failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) || strings.HasPrefix(name, ".") {
		s.respondError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	if !extract.IsSupported(name) {
		s.respondError(w, http.StatusBadRequest, "unsupported file type: "+filepath.Ext(name))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	dir := s.config.Storage.DocumentsDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.fail(w, "upload failed", err)
		return
	}
	path := filepath.Join(dir, name)
	// identical content keeps its mtime so the indexer can skip it
	if existing, err := os.ReadFile(path); err != nil || !bytes.Equal(existing, data) {
		if err := utils.WriteFileAtomic(path, data); err != nil {
			s.fail(w, "upload failed", err)
			return
		}
		s.logger.Info("file uploaded", zap.String("path", path), zap.Int("bytes", len(data)))
	}
	res, err := s.deps.Indexer.IndexFile(r.Context(), path)
	if err != nil {
		s.fail(w, "indexing upload failed", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	offset, ok := s.intParam(w, r, "offset", 0)
	if !ok {
		return
	}
	limit, ok := s.intParam(w, r, "limit", 50)
	if !ok {
		return
	}
	ctx := r.Context()
	docs, err := s.deps.Registry.ListDocuments(ctx, offset, limit)
	if err != nil {
		s.fail(w, "list documents failed", err)
		return
	}
	total, err := s.deps.Registry.CountDocuments(ctx)
	if err != nil {
		s.fail(w, "count documents failed", err)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"total":     total,
		"offset":    offset,
		"limit":     limit,
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.deps.Registry.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return
		}
		s.fail(w, "get document failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("clear store request")
	if err := s.deps.Indexer.Clear(r.Context()); err != nil {
		s.fail(w, "clear failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := s.deps.Store.Stats()
	resp := map[string]interface{}{
		"total_documents": stats.TotalDocuments,
		"index_size":      stats.IndexSize,
		"dimension":       stats.Dimension,
		"load_state":      s.deps.Store.LoadState().String(),
	}
	if s.deps.Registry != nil {
		docCount, err := s.deps.Registry.CountDocuments(ctx)
		if err != nil {
			s.fail(w, "stats: count documents failed", err)
			return
		}
		chunkCount, err := s.deps.Registry.CountChunks(ctx)
		if err != nil {
			s.fail(w, "stats: count chunks failed", err)
			return
		}
		resp["documents"] = docCount
		resp["registered_chunks"] = chunkCount
	}
	if s.deps.Keyword != nil {
		if n, err := s.deps.Keyword.DocCount(); err == nil {
			resp["keyword_chunks"] = n
		}
	}
	if s.deps.Retriever != nil {
		resp["tiers"] = s.deps.Retriever.Policy()
	}

	configInfo := map[string]interface{}{}
	if s.config != nil {
		configInfo["embedding_provider"] = s.config.Embedding.Provider
		configInfo["vector_index_type"] = s.config.Vector.IndexType
		configInfo["chunk_size"] = s.config.Chunking.ChunkSize
		configInfo["chunk_overlap"] = s.config.Chunking.ChunkOverlap
		configInfo["answer_mode"] = s.config.Answer.Mode
		configInfo["store_path"] = s.config.Storage.StorePath
		configInfo["database_path"] = s.config.Storage.DatabasePath
		configInfo["keyword_index_path"] = s.config.Storage.KeywordIndexPath

		usage, err := storage.MeasureDiskUsage(
			s.config.Storage.StorePath,
			s.config.Storage.DatabasePath,
			s.config.Storage.KeywordIndexPath,
		)
		if err == nil {
			resp["disk_usage_bytes"] = usage.Total()
			resp["disk_usage"] = usage
		} else {
			s.logger.Warn("measure disk usage", zap.Error(err))
		}
	}
	resp["config"] = configInfo
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.fail(w, "watch add directory failed", err)
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	if err := s.watch.AddDirectory(abs, syncExisting); err != nil {
		s.fail(w, "watch add directory failed", err)
		return
	}
	s.saveWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.watch.RemoveDirectory(abs); err != nil {
		s.fail(w, "watch remove directory failed", err)
		return
	}
	s.saveWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) saveWatchDirectories() {
	if s.configPath == "" || s.config == nil {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// intParam reads a non-negative integer query parameter. It writes a 400 and
// returns false when the value is malformed.
func (s *Server) intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		s.respondError(w, http.StatusBadRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
