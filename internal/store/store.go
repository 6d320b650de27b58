// Package store is the persisted vector store: a similarity index plus the
// parallel texts and metadatas of every stored chunk. A chunk's identity is
// its insertion position.
package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/vector"
	"github.com/hyperjump/tanya/pkg/utils"
)

// Artifact names inside the store directory.
const (
	IndexFileName    = "docs.index"
	MetadataFileName = "metadata.pkl"
)

// LoadState tells how Open found the store directory.
type LoadState int

const (
	// LoadStateNotFound means no artifacts existed; the store started empty.
	LoadStateNotFound LoadState = iota
	// LoadStateLoaded means both artifacts were restored.
	LoadStateLoaded
)

func (s LoadState) String() string {
	switch s {
	case LoadStateNotFound:
		return "not_found"
	case LoadStateLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// Store holds the index and the parallel sequences. Readers (Search, Stats)
// run concurrently; Add, Clear and Persist hold the write lock across
// mutate-then-persist.
type Store struct {
	mu        sync.RWMutex
	dir       string
	dimension int
	indexType string
	index     vector.VectorIndex
	texts     []string
	metadatas []models.ChunkMetadata
	loadState LoadState

	embedder embedding.Embedder
	logger   *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithEmbedder injects the embedder used when Add gets no embeddings and by Search.
func WithEmbedder(e embedding.Embedder) Option {
	return func(s *Store) { s.embedder = e }
}

// WithIndexType selects the similarity index ("memory" or "faiss").
func WithIndexType(t string) Option {
	return func(s *Store) { s.indexType = t }
}

// Open creates a store of the given dimension backed by dir and restores any
// persisted state. Missing artifacts start an empty store; unreadable or
// inconsistent artifacts fail with ErrPersistenceCorruption.
func Open(dir string, dimension int, opts ...Option) (*Store, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	s := &Store{
		dir:       dir,
		dimension: dimension,
		indexType: string(vector.IndexTypeMemory),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	index, err := vector.NewVectorIndex(s.indexType, dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}
	s.index = index

	if err := s.Load(); err != nil {
		_ = s.index.Close()
		return nil, err
	}
	s.logger.Info("vector store opened",
		zap.String("dir", dir),
		zap.String("index_type", s.index.Type()),
		zap.String("load_state", s.loadState.String()),
		zap.Int("chunks", len(s.texts)),
		zap.Int("dimension", dimension))
	return s, nil
}

// Load replaces the in-memory state with the persisted artifacts. When
// neither artifact exists the store becomes empty. On any error the previous
// state, index included, is left untouched.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	indexPath := s.IndexPath()
	metaPath := s.MetadataPath()
	indexExists, err := fileExists(indexPath)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", ErrPersistenceCorruption, IndexFileName, err)
	}
	metaExists, err := fileExists(metaPath)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %v", ErrPersistenceCorruption, MetadataFileName, err)
	}

	switch {
	case !indexExists && !metaExists:
		if err := s.index.Reset(); err != nil {
			return fmt.Errorf("reset index: %w", err)
		}
		s.texts, s.metadatas = nil, nil
		s.loadState = LoadStateNotFound
		return nil
	case !indexExists:
		return fmt.Errorf("%w: %s present without %s", ErrPersistenceCorruption, MetadataFileName, IndexFileName)
	case !metaExists:
		return fmt.Errorf("%w: %s present without %s", ErrPersistenceCorruption, IndexFileName, MetadataFileName)
	}

	snap, err := readSnapshot(metaPath)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersistenceCorruption, MetadataFileName, err)
	}
	if snap.Dimension != s.dimension {
		return fmt.Errorf("%w: metadata dimension %d, store expects %d", ErrPersistenceCorruption, snap.Dimension, s.dimension)
	}

	// Decode into a scratch index so a bad docs.index cannot clobber the live one.
	scratch, err := vector.NewVectorIndex(s.indexType, s.dimension)
	if err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}
	if err := scratch.Load(indexPath); err != nil {
		_ = scratch.Close()
		return fmt.Errorf("%w: %s: %v", ErrPersistenceCorruption, IndexFileName, err)
	}
	if len(snap.Texts) != len(snap.Metadatas) || len(snap.Texts) != scratch.Size() {
		n := scratch.Size()
		_ = scratch.Close()
		return fmt.Errorf("%w: %d texts, %d metadatas, %d vectors",
			ErrPersistenceCorruption, len(snap.Texts), len(snap.Metadatas), n)
	}

	old := s.index
	s.index = scratch
	s.texts = snap.Texts
	s.metadatas = snap.Metadatas
	s.loadState = LoadStateLoaded
	if old != nil {
		if err := old.Close(); err != nil {
			s.logger.Warn("close replaced index", zap.Error(err))
		}
	}
	return nil
}

// Add appends chunks. When embeddings is nil every text is embedded with the
// injected embedder in one batch. Embeddings are normalized copies; caller
// slices are not modified. It returns the position of the first appended
// chunk. A persist failure is returned wrapped in ErrPersist and the append
// is kept.
func (s *Store) Add(ctx context.Context, texts []string, metadatas []models.ChunkMetadata, embeddings [][]float32) (int, error) {
	if len(texts) != len(metadatas) {
		return 0, fmt.Errorf("%w: %d texts but %d metadatas", ErrIndexInsertion, len(texts), len(metadatas))
	}
	if embeddings == nil && len(texts) > 0 {
		vecs, err := s.embedBatch(ctx, texts)
		if err != nil {
			return 0, err
		}
		embeddings = vecs
	}
	if len(embeddings) != len(texts) {
		return 0, fmt.Errorf("%w: %d texts but %d embeddings", ErrIndexInsertion, len(texts), len(embeddings))
	}

	vecs := make([][]float32, len(embeddings))
	for i, e := range embeddings {
		if len(e) != s.dimension {
			return 0, fmt.Errorf("%w: embedding %d has dimension %d, store expects %d",
				ErrIndexInsertion, i, len(e), s.dimension)
		}
		if !vector.IsFinite(e) {
			return 0, fmt.Errorf("%w: embedding %d: %w", ErrIndexInsertion, i, vector.ErrNonFinite)
		}
		vecs[i] = utils.NormalizedCopy(e)
	}
	metas := make([]models.ChunkMetadata, len(metadatas))
	for i, m := range metadatas {
		metas[i] = cloneMetadata(m)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	first := len(s.texts)
	if len(texts) == 0 {
		return first, nil
	}
	if err := s.index.Add(ctx, vecs); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrIndexInsertion, err)
	}
	s.texts = append(s.texts, texts...)
	s.metadatas = append(s.metadatas, metas...)
	if err := s.checkInvariantLocked(); err != nil {
		return 0, err
	}

	s.logger.Debug("chunks added",
		zap.Int("count", len(texts)),
		zap.Int("first_position", first),
		zap.Int("total", len(s.texts)))

	if err := s.persistLocked(); err != nil {
		s.logger.Warn("persist after add failed", zap.Error(err))
		return first, err
	}
	return first, nil
}

// Search embeds query and returns up to k chunks scoring at least threshold.
func (s *Store) Search(ctx context.Context, query string, k int, threshold float64) ([]*models.SearchResult, error) {
	if k < 1 || s.Len() == 0 {
		return []*models.SearchResult{}, nil
	}
	vec, err := s.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.SearchVector(ctx, vec, k, threshold)
}

// EmbedQuery embeds text with the injected embedder.
func (s *Store) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: %w", embedding.ErrEmbeddingProvider, ErrNoEmbedder)
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, asProviderError(err)
	}
	return vec, nil
}

// SearchVector returns up to k chunks whose similarity to vec is at least
// threshold, by descending score with ties in insertion order. k is capped
// at the store size; k < 1 or an empty store yields an empty slice.
func (s *Store) SearchVector(ctx context.Context, vec []float32, k int, threshold float64) ([]*models.SearchResult, error) {
	if len(vec) != s.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, store expects %d", vector.ErrDimensionMismatch, len(vec), s.dimension)
	}
	if !vector.IsFinite(vec) {
		return nil, fmt.Errorf("query: %w", vector.ErrNonFinite)
	}
	query := utils.NormalizedCopy(vec)

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.texts)
	results := []*models.SearchResult{}
	if k < 1 || n == 0 {
		return results, nil
	}
	if k > n {
		k = n
	}
	hits, err := s.index.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}
	for _, h := range hits {
		if h.Label < 0 || h.Label >= int64(n) {
			continue
		}
		// NaN fails every comparison, so test for inclusion rather than exclusion.
		if !(h.Score >= threshold) {
			continue
		}
		pos := int(h.Label)
		results = append(results, &models.SearchResult{
			Position: pos,
			Text:     s.texts[pos],
			Metadata: cloneMetadata(s.metadatas[pos]),
			Score:    h.Score,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Position < results[j].Position
	})
	return results, nil
}

// Get returns the chunk at position.
func (s *Store) Get(position int) (*models.SearchResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if position < 0 || position >= len(s.texts) {
		return nil, false
	}
	return &models.SearchResult{
		Position: position,
		Text:     s.texts[position],
		Metadata: cloneMetadata(s.metadatas[position]),
	}, true
}

// Persist writes docs.index and metadata.pkl atomically.
func (s *Store) Persist() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	if err := s.index.Save(s.IndexPath()); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersist, IndexFileName, err)
	}
	snap := &snapshot{Dimension: s.dimension, Texts: s.texts, Metadatas: s.metadatas}
	if err := writeSnapshot(s.MetadataPath(), snap); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrPersist, MetadataFileName, err)
	}
	return nil
}

// Clear removes every chunk, keeps the dimension and persists the empty state.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Reset(); err != nil {
		return fmt.Errorf("reset index: %w", err)
	}
	s.texts = nil
	s.metadatas = nil
	if err := s.checkInvariantLocked(); err != nil {
		return err
	}
	s.logger.Info("vector store cleared", zap.String("dir", s.dir))
	return s.persistLocked()
}

// Stats reports chunk count, index size and dimension.
func (s *Store) Stats() models.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return models.Stats{
		TotalDocuments: len(s.texts),
		IndexSize:      s.index.Size(),
		Dimension:      s.dimension,
	}
}

// Len returns the number of stored chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.texts)
}

// Dimension returns the fixed vector dimension.
func (s *Store) Dimension() int { return s.dimension }

// LoadState reports what Open found on disk.
func (s *Store) LoadState() LoadState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadState
}

// IndexPath is the location of docs.index.
func (s *Store) IndexPath() string { return filepath.Join(s.dir, IndexFileName) }

// MetadataPath is the location of metadata.pkl.
func (s *Store) MetadataPath() string { return filepath.Join(s.dir, MetadataFileName) }

// Close releases the index. The store must not be used afterwards.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

func (s *Store) checkInvariantLocked() error {
	if n := s.index.Size(); n != len(s.texts) || len(s.texts) != len(s.metadatas) {
		s.logger.Error("store invariant broken",
			zap.Int("texts", len(s.texts)),
			zap.Int("metadatas", len(s.metadatas)),
			zap.Int("index_size", n))
		return fmt.Errorf("%w: %d texts, %d metadatas, %d vectors", ErrInconsistent, len(s.texts), len(s.metadatas), n)
	}
	return nil
}

func (s *Store) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: %w", embedding.ErrEmbeddingProvider, ErrNoEmbedder)
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, asProviderError(err)
	}
	return vecs, nil
}

func asProviderError(err error) error {
	if errors.Is(err, embedding.ErrEmbeddingProvider) {
		return err
	}
	return fmt.Errorf("%w: %v", embedding.ErrEmbeddingProvider, err)
}

func cloneMetadata(m models.ChunkMetadata) models.ChunkMetadata {
	if m.Extra != nil {
		extra := make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			extra[k] = v
		}
		m.Extra = extra
	}
	return m
}
