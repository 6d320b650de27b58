package search

import (
	"context"
	"errors"
	"testing"

	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
)

type fakeKeyword struct {
	results []*keyword.Result
	err     error
	opts    *keyword.SearchOptions
	limit   int
}

func (f *fakeKeyword) Index(context.Context, int, string, models.ChunkMetadata) error { return nil }
func (f *fakeKeyword) Clear(context.Context) error                                     { return nil }
func (f *fakeKeyword) Close() error                                                    { return nil }
func (f *fakeKeyword) DocCount() (uint64, error)                                       { return uint64(len(f.results)), nil }

func (f *fakeKeyword) Search(_ context.Context, _ string, limit int, opts *keyword.SearchOptions) ([]*keyword.Result, error) {
	f.limit = limit
	f.opts = opts
	return f.results, f.err
}

type mapChunks map[int]*models.SearchResult

func (m mapChunks) Get(position int) (*models.SearchResult, bool) {
	r, ok := m[position]
	return r, ok
}

func TestFinder_ResolvesPositions(t *testing.T) {
	kw := &fakeKeyword{results: []*keyword.Result{{Position: 2, Score: 1.5}, {Position: 9, Score: 1.1}, {Position: 0, Score: 0.7}}}
	chunks := mapChunks{
		0: {Position: 0, Text: "expense receipts", Metadata: models.ChunkMetadata{Source: "expense.txt"}},
		2: {Position: 2, Text: "vacation days", Metadata: models.ChunkMetadata{Source: "vacation.txt"}},
	}
	hits, err := NewFinder(kw, chunks, nil).Find(context.Background(), "vacation", 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits, want 2 (position 9 is not in the store)", len(hits))
	}
	if hits[0].Position != 2 || hits[0].Text != "vacation days" || hits[0].Score != 1.5 {
		t.Errorf("first hit = %+v", hits[0])
	}
	if hits[1].Metadata.Source != "expense.txt" {
		t.Errorf("second hit source = %q", hits[1].Metadata.Source)
	}
	if kw.limit != defaultFindLimit {
		t.Errorf("limit = %d, want default %d", kw.limit, defaultFindLimit)
	}
	if kw.opts == nil || !kw.opts.FuzzyEnabled {
		t.Error("fuzzy option not passed through")
	}
}

func TestFinder_Error(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewFinder(&fakeKeyword{err: boom}, mapChunks{}, nil).Find(context.Background(), "x", 3, false)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}
