package keyword

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/tanya/internal/models"
)

// chunkDoc is the document shape stored in Bleve.
type chunkDoc struct {
	Content    string `json:"content"`
	Title      string `json:"title"`
	Source     string `json:"source"`
	DocumentID string `json:"document_id"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	mu    sync.RWMutex
	path  string
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// An existing index is reopened so keyword lookup survives restarts.
func NewBleveIndex(path string) (*BleveIndex, error) {
	index, err := openOrCreate(path)
	if err != nil {
		return nil, err
	}
	return &BleveIndex{path: path, index: index}, nil
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// standard analyzer: lowercase + tokenize, no stemming, so "PTO" finds "pto" exactly
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	docMapping.AddFieldMappingsAt("source", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("document_id", keywordFieldMapping)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

func openOrCreate(path string) (bleve.Index, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return index, nil
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return index, nil
}

// Index stores a chunk under its store position.
func (b *BleveIndex) Index(ctx context.Context, position int, text string, meta models.ChunkMetadata) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	doc := chunkDoc{
		Content:    text,
		Title:      meta.Title(),
		Source:     meta.Source,
		DocumentID: meta.DocumentID,
	}
	return b.index.Index(strconv.Itoa(position), doc)
}

// Search runs a match query over title and content and returns up to limit hits.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error) {
	if strings.TrimSpace(query) == "" || limit < 1 {
		return []*Result{}, nil
	}
	fuzzyEnabled := false
	fuzziness := 2
	if opts != nil {
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	var q blevequery.Query
	if fuzzyEnabled {
		q = buildFuzzyQuery(query, fuzziness)
	} else {
		q = bleve.NewMatchQuery(query)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit

	b.mu.RLock()
	results, err := b.index.SearchInContext(ctx, req)
	b.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]*Result, 0, len(results.Hits))
	for _, hit := range results.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil {
			continue
		}
		out = append(out, &Result{Position: pos, Score: hit.Score})
	}
	return out, nil
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery creates a disjunction of FuzzyQueries, one per term.
func buildFuzzyQuery(queryStr string, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	if len(terms) == 1 {
		fq := bleve.NewFuzzyQuery(terms[0])
		fq.SetFuzziness(fuzziness)
		return fq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		queries = append(queries, fq)
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Clear drops the index directory and starts a fresh one at the same path.
func (b *BleveIndex) Clear(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.index.Close(); err != nil {
		return fmt.Errorf("failed to close Bleve index: %w", err)
	}
	if err := os.RemoveAll(b.path); err != nil {
		return fmt.Errorf("failed to remove Bleve index: %w", err)
	}
	index, err := bleve.New(b.path, newMapping())
	if err != nil {
		return fmt.Errorf("failed to create Bleve index: %w", err)
	}
	b.index = index
	return nil
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.DocCount()
}
