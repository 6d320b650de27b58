package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/fileid"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/store"
)

// ErrEmptyDocument is returned when a document has no indexable text.
var ErrEmptyDocument = errors.New("document has no text")

// Result describes one ingested (or skipped) document.
type Result struct {
	DocumentID    string `json:"document_id"`
	Title         string `json:"title"`
	Source        string `json:"source"`
	FirstPosition int    `json:"first_position"`
	Chunks        int    `json:"chunks"`
	Skipped       bool   `json:"skipped,omitempty"`
}

// Summary counts the outcome of a directory ingest.
type Summary struct {
	Indexed int `json:"indexed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Chunks  int `json:"chunks"`
}

func (s *Summary) add(res *Result) {
	if res.Skipped {
		s.Skipped++
		return
	}
	s.Indexed++
	s.Chunks += res.Chunks
}

// Indexer ingests documents into the vector store, the document registry and
// the keyword index.
type Indexer struct {
	store     *store.Store
	registry  storage.Registry
	keyword   keyword.Index
	extractor *extract.Extractor
	chunker   *Chunker
	logger    *zap.Logger

	// fileMu serializes the unchanged-file check with the ingest that follows it.
	fileMu sync.Mutex
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithKeywordIndex also indexes every chunk for keyword lookup.
func WithKeywordIndex(k keyword.Index) IndexerOption {
	return func(idx *Indexer) { idx.keyword = k }
}

// NewIndexer creates an indexer. registry may be nil, in which case no
// document records are kept and unchanged files are never skipped.
func NewIndexer(st *store.Store, registry storage.Registry, cfg config.ChunkingConfig, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		store:     st,
		registry:  registry,
		extractor: extract.NewExtractor(),
		chunker:   NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	if idx.logger == nil {
		idx.logger = zap.NewNop()
	}
	return idx
}

type sourceInfo struct {
	size    int64
	modTime time.Time
}

// IndexText ingests raw text. The document ID defaults to a new UUID and the
// source to the ID.
func (idx *Indexer) IndexText(ctx context.Context, input *models.DocumentInput) (*Result, error) {
	return idx.ingest(ctx, input, nil)
}

func (idx *Indexer) ingest(ctx context.Context, input *models.DocumentInput, info *sourceInfo) (*Result, error) {
	content := Preprocess(input.Content)
	chunks := idx.chunker.Split(content)
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}

	id := input.ID
	if id == "" {
		id = uuid.New().String()
	}
	source := input.Source
	if source == "" {
		source = id
	}
	title := input.Title
	if title == "" {
		title = filepath.Base(source)
	}

	metas := make([]models.ChunkMetadata, len(chunks))
	for i := range chunks {
		extra := make(map[string]string, len(input.Metadata)+1)
		for k, v := range input.Metadata {
			extra[k] = v
		}
		extra["title"] = title
		metas[i] = models.ChunkMetadata{
			DocumentID: id,
			ChunkIndex: i,
			Source:     source,
			Extra:      extra,
		}
	}

	first, err := idx.store.Add(ctx, chunks, metas, nil)
	var persistErr error
	if err != nil {
		if !errors.Is(err, store.ErrPersist) {
			return nil, fmt.Errorf("failed to add chunks: %w", err)
		}
		// chunks are in memory; keep the bookkeeping in step with them
		persistErr = err
	}

	res := &Result{
		DocumentID:    id,
		Title:         title,
		Source:        source,
		FirstPosition: first,
		Chunks:        len(chunks),
	}

	if idx.registry != nil {
		doc := &models.Document{
			ID:            id,
			Title:         title,
			Source:        source,
			FirstPosition: first,
			ChunkCount:    len(chunks),
			SizeBytes:     int64(len(input.Content)),
		}
		if info != nil {
			doc.SizeBytes = info.size
			doc.ModifiedAt = info.modTime
		}
		if err := idx.registry.PutDocument(ctx, doc); err != nil {
			return res, fmt.Errorf("failed to register document: %w", err)
		}
	}

	if idx.keyword != nil {
		for i, chunk := range chunks {
			if err := idx.keyword.Index(ctx, first+i, chunk, metas[i]); err != nil {
				idx.logger.Warn("keyword indexing failed",
					zap.String("doc_id", id), zap.Int("position", first+i), zap.Error(err))
			}
		}
	}

	idx.logger.Debug("document indexed",
		zap.String("doc_id", id),
		zap.String("source", source),
		zap.Int("first_position", first),
		zap.Int("chunks", len(chunks)))
	return res, persistErr
}

// IndexFile extracts and ingests the file at path. Files already ingested
// with the same path, size and modification time are skipped.
func (idx *Indexer) IndexFile(ctx context.Context, path string) (*Result, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	return idx.indexFile(ctx, absPath, fileid.FileDocID(absPath))
}

func (idx *Indexer) indexFile(ctx context.Context, absPath, docID string) (*Result, error) {
	if !extract.IsSupported(absPath) {
		return nil, fmt.Errorf("%w: %s", extract.ErrUnsupported, filepath.Ext(absPath))
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	src := &sourceInfo{size: info.Size(), modTime: info.ModTime().UTC()}

	idx.fileMu.Lock()
	defer idx.fileMu.Unlock()

	if doc := idx.unchanged(ctx, absPath, src); doc != nil {
		idx.logger.Debug("skipping unchanged file", zap.String("path", absPath))
		return &Result{
			DocumentID:    doc.ID,
			Title:         doc.Title,
			Source:        doc.Source,
			FirstPosition: doc.FirstPosition,
			Chunks:        doc.ChunkCount,
			Skipped:       true,
		}, nil
	}

	text, err := idx.extractor.Extract(absPath)
	if err != nil {
		if errors.Is(err, extract.ErrNoText) {
			return nil, fmt.Errorf("%w: %s", ErrEmptyDocument, absPath)
		}
		return nil, fmt.Errorf("extract content: %w", err)
	}
	input := &models.DocumentInput{
		ID:      docID,
		Title:   filepath.Base(absPath),
		Source:  absPath,
		Content: text,
		Metadata: map[string]string{
			"file_type": strings.TrimPrefix(strings.ToLower(filepath.Ext(absPath)), "."),
		},
	}
	res, err := idx.ingest(ctx, input, src)
	if err != nil {
		return res, err
	}
	idx.logger.Info("file indexed",
		zap.String("path", absPath),
		zap.String("doc_id", res.DocumentID),
		zap.Int("chunks", res.Chunks))
	return res, nil
}

// unchanged returns the registry record for path when it matches src.
func (idx *Indexer) unchanged(ctx context.Context, path string, src *sourceInfo) *models.Document {
	if idx.registry == nil {
		return nil
	}
	doc, err := idx.registry.GetDocumentBySource(ctx, path)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			idx.logger.Warn("registry lookup failed", zap.String("path", path), zap.Error(err))
		}
		return nil
	}
	if doc.SizeBytes != src.size || !doc.ModifiedAt.Equal(src.modTime) {
		return nil
	}
	// the registry may outlive a cleared or replaced store
	if doc.FirstPosition+doc.ChunkCount > idx.store.Len() {
		return nil
	}
	return doc
}

// IndexDirectory ingests every supported file under dir whose extension is in
// exts (all supported extensions when exts is empty). Per-file failures are
// logged and counted; only directory and context errors are returned.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, exts []string, recursive bool) (Summary, error) {
	var sum Summary
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return sum, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return sum, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return sum, fmt.Errorf("not a directory: %s", absDir)
	}
	if len(exts) == 0 {
		exts = extract.SupportedExtensions()
	}

	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if path != absDir && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !ExtensionAllowed(filepath.Ext(path), exts) || !extract.IsSupported(path) {
			return nil
		}
		// resolve symlinks so only regular files are indexed
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		res, indexErr := idx.IndexFile(ctx, path)
		if res != nil {
			sum.add(res)
		}
		if indexErr != nil {
			if res == nil {
				sum.Failed++
			}
			idx.logger.Warn("failed to index file", zap.String("path", path), zap.Error(indexErr))
		}
		return nil
	})
	idx.logger.Info("directory indexed",
		zap.String("dir", absDir),
		zap.Int("indexed", sum.Indexed),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed))
	return sum, err
}

// ExtensionAllowed reports whether ext is in allowed, ignoring case and the leading dot.
func ExtensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	if extNorm == "" {
		return false
	}
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// Clear empties the vector store, the registry and the keyword index.
func (idx *Indexer) Clear(ctx context.Context) error {
	idx.fileMu.Lock()
	defer idx.fileMu.Unlock()

	if err := idx.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear store: %w", err)
	}
	if idx.registry != nil {
		if err := idx.registry.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear registry: %w", err)
		}
	}
	if idx.keyword != nil {
		if err := idx.keyword.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear keyword index: %w", err)
		}
	}
	idx.logger.Info("all documents cleared")
	return nil
}
