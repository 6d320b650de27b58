package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/models"
)

func sampleResult() *models.SearchResult {
	return &models.SearchResult{
		Position: 3,
		Text:     "Employees receive 15 days of paid vacation.",
		Score:    0.61,
		Metadata: models.ChunkMetadata{
			DocumentID: "vacation_policy",
			ChunkIndex: 0,
			Source:     "/docs/vacation_policy.txt",
			Extra:      map[string]string{"title": "Vacation Policy"},
		},
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"JSON", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	response := &models.SearchResponse{
		Query:     "vacation",
		QueryTime: 42,
		Results:   []*models.SearchResult{sampleResult()},
		Tier:      0,
		Threshold: 0.45,
		Confident: true,
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded models.SearchResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != "vacation" || decoded.QueryTime != 42 || len(decoded.Results) != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
	if decoded.Results[0].Metadata.DocumentID != "vacation_policy" {
		t.Errorf("result metadata lost: %+v", decoded.Results[0].Metadata)
	}
}

func TestWriteSearchResults_text(t *testing.T) {
	response := &models.SearchResponse{
		Query:         "PTO",
		ExpandedQuery: "paid time off vacation",
		QueryTime:     10,
		Results:       []*models.SearchResult{sampleResult()},
		Tier:          1,
		Threshold:     0.3,
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Found 1 results", "10ms", "tier 1", "threshold 0.30",
		"Expanded query: paid time off vacation", "Rank: 1", "Position: 3",
		"Title: Vacation Policy", "15 days"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteSearchResults_textEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, &models.SearchResponse{Query: "x", Tier: -1}, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `No results for "x"`) {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteAnswer(t *testing.T) {
	ans := &models.Answer{
		Question:  "How many vacation days?",
		Text:      "Vacation Policy:\n15 days\n\nSources: vacation_policy.txt",
		Sources:   []string{"vacation_policy.txt"},
		Chunks:    []*models.SearchResult{sampleResult()},
		Mode:      models.ModeTemplate,
		Category:  "hr_policy",
		LowScore:  true,
		QueryTime: 7,
	}

	var text bytes.Buffer
	if err := WriteAnswer(&text, ans, OutputText, true); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"Sources: vacation_policy.txt", "low confidence", "[template | hr_policy | 7ms]", "Position: 3"} {
		if !strings.Contains(text.String(), sub) {
			t.Errorf("text output missing %q:\n%s", sub, text.String())
		}
	}

	var brief bytes.Buffer
	_ = WriteAnswer(&brief, ans, OutputText, false)
	if strings.Contains(brief.String(), "Position: 3") {
		t.Error("chunks shown without showChunks")
	}

	var js bytes.Buffer
	if err := WriteAnswer(&js, ans, OutputJSON, false); err != nil {
		t.Fatal(err)
	}
	var decoded models.Answer
	if err := json.NewDecoder(&js).Decode(&decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Text != ans.Text || decoded.Category != "hr_policy" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteKeywordHits(t *testing.T) {
	hits := []*models.KeywordHit{{Position: 1, Text: "Submit receipts within 30 days.", Score: 1.2,
		Metadata: models.ChunkMetadata{Source: "expense.txt"}}}
	var buf bytes.Buffer
	if err := WriteKeywordHits(&buf, "receipts", hits, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `1 keyword matches for "receipts"`) || !strings.Contains(buf.String(), "expense.txt") {
		t.Errorf("got %q", buf.String())
	}

	buf.Reset()
	if err := WriteKeywordHits(&buf, "none", nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"hits": []`) {
		t.Errorf("nil hits should encode as empty list: %s", buf.String())
	}
}

func TestWriteStats(t *testing.T) {
	report := &StatsReport{
		Stats:            models.Stats{TotalDocuments: 12, IndexSize: 12, Dimension: 768},
		LoadState:        "loaded",
		Documents:        4,
		RegisteredChunks: 12,
		DiskUsageBytes:   2048,
	}
	var buf bytes.Buffer
	if err := WriteStats(&buf, report, OutputText); err != nil {
		t.Fatal(err)
	}
	for _, sub := range []string{"Chunks:        12", "Dimension:     768", "4 (12 chunks registered)", "2.0 KiB"} {
		if !strings.Contains(buf.String(), sub) {
			t.Errorf("missing %q:\n%s", sub, buf.String())
		}
	}

	buf.Reset()
	_ = WriteStats(&buf, report, OutputJSON)
	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["total_documents"] != float64(12) || decoded["load_state"] != "loaded" {
		t.Errorf("embedded stats not flattened: %v", decoded)
	}
}

func TestWriteSummaryAndResult(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteSummary(&buf, indexer.Summary{Indexed: 2, Skipped: 1, Failed: 0, Chunks: 9}, OutputText)
	if !strings.Contains(buf.String(), "Indexed 2 documents (9 chunks), skipped 1 unchanged, 0 failed") {
		t.Errorf("summary = %q", buf.String())
	}

	buf.Reset()
	_ = WriteResult(&buf, &indexer.Result{DocumentID: "a-1", Source: "a.txt", Skipped: true}, OutputText)
	if !strings.Contains(buf.String(), "Unchanged: a.txt") {
		t.Errorf("skipped result = %q", buf.String())
	}
}

func TestHumanBytes(t *testing.T) {
	tests := map[int64]string{
		0:       "0 B",
		1023:    "1023 B",
		1536:    "1.5 KiB",
		1 << 20: "1.0 MiB",
	}
	for n, want := range tests {
		if got := HumanBytes(n); got != want {
			t.Errorf("HumanBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestTruncateWords(t *testing.T) {
	tests := []struct {
		name     string
		s        string
		maxWords int
		want     string
	}{
		{"empty", "", 3, ""},
		{"few words", "one two", 3, "one two"},
		{"exact", "one two three", 3, "one two three"},
		{"more", "one two three four", 3, "one two three..."},
		{"single long", "word", 1, "word"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateWords(tt.s, tt.maxWords); got != tt.want {
				t.Errorf("TruncateWords(%q, %d) = %q, want %q", tt.s, tt.maxWords, got, tt.want)
			}
		})
	}
}
