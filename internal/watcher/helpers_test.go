package watcher

import (
	"path/filepath"
	"testing"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/store"
)

type testIndexer struct {
	*indexer.Indexer
	store *store.Store
}

func newTestIndexer(t *testing.T) *testIndexer {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "store"), 16, store.WithEmbedder(embedding.NewMockEmbedder(16)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	reg, err := storage.NewSQLiteRegistry(filepath.Join(dir, "documents.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	ix := indexer.NewIndexer(st, reg, config.ChunkingConfig{ChunkSize: 200, ChunkOverlap: 20})
	return &testIndexer{Indexer: ix, store: st}
}
