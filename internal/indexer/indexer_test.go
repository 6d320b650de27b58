package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/extract"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/store"
)

const testDims = 32

type fixture struct {
	idx      *Indexer
	store    *store.Store
	registry *storage.SQLiteRegistry
	keyword  *keyword.BleveIndex
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	return newFixtureAt(t, filepath.Join(dir, "documents.db"), filepath.Join(dir, "store"))
}

func newFixtureAt(t *testing.T, dbPath, storeDir string) *fixture {
	t.Helper()
	st, err := store.Open(storeDir, testDims, store.WithEmbedder(embedding.NewMockEmbedder(testDims)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = st.Close() })
	reg, err := storage.NewSQLiteRegistry(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = reg.Close() })
	kw, err := keyword.NewBleveIndex(filepath.Join(t.TempDir(), "keyword"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kw.Close() })

	idx := NewIndexer(st, reg, config.ChunkingConfig{ChunkSize: 200, ChunkOverlap: 40}, WithKeywordIndex(kw))
	return &fixture{idx: idx, store: st, registry: reg, keyword: kw}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{".txt"}, true},
		{"md", []string{".txt", ".md"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
	}
	for _, tt := range tests {
		got := ExtensionAllowed(tt.ext, tt.allowed)
		if got != tt.want {
			t.Errorf("ExtensionAllowed(%q, %v) = %v, want %v", tt.ext, tt.allowed, got, tt.want)
		}
	}
}

func TestIndexText(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.idx.IndexText(ctx, &models.DocumentInput{
		ID:       "handbook",
		Title:    "Employee Handbook",
		Content:  strings.Repeat("Employees must badge in at the front desk every morning. ", 10),
		Metadata: map[string]string{"department": "hr"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.FirstPosition != 0 || res.Chunks < 2 {
		t.Fatalf("result = %+v", res)
	}
	if f.store.Len() != res.Chunks {
		t.Errorf("store holds %d chunks, want %d", f.store.Len(), res.Chunks)
	}

	got, ok := f.store.Get(1)
	if !ok {
		t.Fatal("position 1 missing")
	}
	if got.Metadata.DocumentID != "handbook" || got.Metadata.ChunkIndex != 1 || got.Metadata.Source != "handbook" {
		t.Errorf("metadata = %+v", got.Metadata)
	}
	if got.Metadata.Title() != "Employee Handbook" || got.Metadata.Extra["department"] != "hr" {
		t.Errorf("extra = %v", got.Metadata.Extra)
	}

	doc, err := f.registry.GetDocument(ctx, "handbook")
	if err != nil {
		t.Fatal(err)
	}
	if doc.FirstPosition != 0 || doc.ChunkCount != res.Chunks {
		t.Errorf("registry record = %+v", doc)
	}

	hits, err := f.keyword.Search(ctx, "badge", 50, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != res.Chunks {
		t.Errorf("keyword hits = %d, want %d", len(hits), res.Chunks)
	}
}

func TestIndexText_AppendsAndGeneratesIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.idx.IndexText(ctx, &models.DocumentInput{Content: "Dress code is business casual."})
	if err != nil {
		t.Fatal(err)
	}
	if first.DocumentID == "" || first.Source != first.DocumentID {
		t.Errorf("generated id/source = %q/%q", first.DocumentID, first.Source)
	}
	second, err := f.idx.IndexText(ctx, &models.DocumentInput{ID: "holidays", Content: "The office closes on public holidays."})
	if err != nil {
		t.Fatal(err)
	}
	if second.FirstPosition != first.FirstPosition+first.Chunks {
		t.Errorf("second document starts at %d, want %d", second.FirstPosition, first.FirstPosition+first.Chunks)
	}
}

func TestIndexText_Empty(t *testing.T) {
	f := newFixture(t)
	_, err := f.idx.IndexText(context.Background(), &models.DocumentInput{ID: "blank", Content: " \n\t "})
	if !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("expected ErrEmptyDocument, got %v", err)
	}
	if f.store.Len() != 0 {
		t.Errorf("store should stay empty, has %d", f.store.Len())
	}
}

func TestIndexFile_SkipsUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "Sick Leave.txt")
	writeFile(t, path, "Sick leave requires a doctor's note after three days.")

	res, err := f.idx.IndexFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped || res.Title != "Sick Leave.txt" || !strings.HasPrefix(res.DocumentID, "sick_leave-") {
		t.Fatalf("first ingest = %+v", res)
	}
	before := f.store.Len()

	again, err := f.idx.IndexFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if !again.Skipped || again.DocumentID != res.DocumentID {
		t.Errorf("second ingest = %+v, want skipped", again)
	}
	if f.store.Len() != before {
		t.Errorf("store grew on skipped file: %d -> %d", before, f.store.Len())
	}

	writeFile(t, path, "Sick leave requires a doctor's note after two days.")
	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	changed, err := f.idx.IndexFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if changed.Skipped || changed.FirstPosition != before {
		t.Errorf("changed file = %+v, want appended at %d", changed, before)
	}
	n, _ := f.registry.CountDocuments(ctx)
	if n != 1 {
		t.Errorf("registry has %d documents, want 1", n)
	}
}

func TestIndexFile_RegistryOutlivesStore(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	path := filepath.Join(dir, "docs", "a.txt")
	writeFile(t, path, "alpha content")

	dbPath := filepath.Join(dir, "documents.db")
	f := newFixtureAt(t, dbPath, filepath.Join(dir, "store1"))
	if _, err := f.idx.IndexFile(ctx, path); err != nil {
		t.Fatal(err)
	}

	// same registry, fresh store: the file must be ingested again
	g := newFixtureAt(t, dbPath, filepath.Join(dir, "store2"))
	res, err := g.idx.IndexFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped {
		t.Error("file should not be skipped when the store lacks its chunks")
	}
}

func TestIndexFile_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := t.TempDir()

	png := filepath.Join(dir, "logo.png")
	writeFile(t, png, "binary")
	if _, err := f.idx.IndexFile(ctx, png); !errors.Is(err, extract.ErrUnsupported) {
		t.Errorf("png: expected ErrUnsupported, got %v", err)
	}

	empty := filepath.Join(dir, "empty.txt")
	writeFile(t, empty, "   ")
	if _, err := f.idx.IndexFile(ctx, empty); !errors.Is(err, ErrEmptyDocument) {
		t.Errorf("empty: expected ErrEmptyDocument, got %v", err)
	}

	if _, err := f.idx.IndexFile(ctx, filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}

	sub := filepath.Join(dir, "folder.txt")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := f.idx.IndexFile(ctx, sub); err == nil {
		t.Error("expected error for directory")
	}
}

func TestIndexDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "alpha")
	writeFile(t, filepath.Join(dir, "b.md"), "# bravo")
	writeFile(t, filepath.Join(dir, "c.png"), "not text")
	writeFile(t, filepath.Join(dir, "empty.txt"), "")
	writeFile(t, filepath.Join(dir, "sub", "d.txt"), "delta")
	writeFile(t, filepath.Join(dir, ".hidden", "e.txt"), "echo")
	ctx := context.Background()

	t.Run("recursive", func(t *testing.T) {
		f := newFixture(t)
		sum, err := f.idx.IndexDirectory(ctx, dir, nil, true)
		if err != nil {
			t.Fatal(err)
		}
		if sum.Indexed != 3 || sum.Failed != 1 || sum.Skipped != 0 {
			t.Errorf("summary = %+v", sum)
		}
		again, _ := f.idx.IndexDirectory(ctx, dir, nil, true)
		if again.Indexed != 0 || again.Skipped != 3 {
			t.Errorf("second pass = %+v", again)
		}
	})

	t.Run("flat", func(t *testing.T) {
		f := newFixture(t)
		sum, err := f.idx.IndexDirectory(ctx, dir, nil, false)
		if err != nil {
			t.Fatal(err)
		}
		if sum.Indexed != 2 {
			t.Errorf("summary = %+v", sum)
		}
	})

	t.Run("extension filter", func(t *testing.T) {
		f := newFixture(t)
		sum, err := f.idx.IndexDirectory(ctx, dir, []string{".md"}, true)
		if err != nil {
			t.Fatal(err)
		}
		if sum.Indexed != 1 || sum.Failed != 0 {
			t.Errorf("summary = %+v", sum)
		}
	})

	t.Run("not a directory", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.idx.IndexDirectory(ctx, filepath.Join(dir, "a.txt"), nil, true); err == nil {
			t.Error("expected error")
		}
	})
}

func TestLoadSamples(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "sample_docs")

	sum, err := f.idx.LoadSamples(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if sum.Indexed != len(SampleIDs()) || sum.Chunks != f.store.Len() {
		t.Fatalf("summary = %+v, store = %d", sum, f.store.Len())
	}
	for _, id := range SampleIDs() {
		if _, err := os.Stat(filepath.Join(dir, id+".txt")); err != nil {
			t.Errorf("sample file %s: %v", id, err)
		}
		if _, err := f.registry.GetDocument(ctx, id); err != nil {
			t.Errorf("registry %s: %v", id, err)
		}
	}

	again, err := f.idx.LoadSamples(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if again.Skipped != len(SampleIDs()) || again.Indexed != 0 {
		t.Errorf("second load = %+v", again)
	}

	hits, _ := f.keyword.Search(ctx, "reimbursed", 10, nil)
	if len(hits) == 0 {
		t.Error("expense policy should be keyword searchable")
	}
}

func TestClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.idx.LoadSamples(ctx, t.TempDir()); err != nil {
		t.Fatal(err)
	}
	if err := f.idx.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if f.store.Len() != 0 {
		t.Errorf("store has %d chunks after clear", f.store.Len())
	}
	if n, _ := f.registry.CountDocuments(ctx); n != 0 {
		t.Errorf("registry has %d documents after clear", n)
	}
	if n, _ := f.keyword.DocCount(); n != 0 {
		t.Errorf("keyword index has %d chunks after clear", n)
	}
}
