// Package cli renders command output for the tanya CLI.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/tanya/internal/indexer"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/pkg/utils"
)

// OutputFormat selects how command results are written.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

const separator = "─────────────────────────────────────────────────────────"

// ParseOutputFormat accepts "text", "json" or "" (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(OutputText):
		return OutputText, nil
	case string(OutputJSON):
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text or json)", s)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer and, in text mode, its supporting chunks.
func WriteAnswer(w io.Writer, ans *models.Answer, format OutputFormat, showChunks bool) error {
	if format == OutputJSON {
		return writeJSON(w, ans)
	}
	fmt.Fprintf(w, "\n%s\n\n", ans.Text)
	if ans.LowScore {
		fmt.Fprintln(w, "(low confidence: only weak matches were found)")
	}
	fmt.Fprintf(w, "[%s | %s | %dms]\n", ans.Mode, ans.Category, ans.QueryTime)
	if showChunks && len(ans.Chunks) > 0 {
		fmt.Fprintln(w)
		for i, c := range ans.Chunks {
			writeOneResult(w, i+1, c)
		}
	}
	return nil
}

// WriteSearchResults writes a tiered search response.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	if len(response.Results) == 0 {
		fmt.Fprintf(w, "\nNo results for %q (%dms)\n", response.Query, response.QueryTime)
		return nil
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (tier %d, threshold %.2f)\n",
		len(response.Results), response.QueryTime, response.Tier, response.Threshold)
	if response.ExpandedQuery != "" && response.ExpandedQuery != response.Query {
		fmt.Fprintf(w, "Expanded query: %s\n", response.ExpandedQuery)
	}
	fmt.Fprintln(w)
	for i, result := range response.Results {
		writeOneResult(w, i+1, result)
	}
	return nil
}

func writeOneResult(w io.Writer, rank int, result *models.SearchResult) {
	fmt.Fprintln(w, separator)
	fmt.Fprintf(w, "Rank: %d | Score: %.4f | Position: %d\n", rank, result.Score, result.Position)
	writeMetadata(w, result.Metadata)
	fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(utils.CollapseWhitespace(result.Text), 200))
}

func writeMetadata(w io.Writer, m models.ChunkMetadata) {
	fmt.Fprintf(w, "Source: %s (chunk %d)\n", m.Source, m.ChunkIndex)
	if title := m.Title(); title != "" {
		fmt.Fprintf(w, "Title: %s\n", title)
	}
}

// WriteKeywordHits writes keyword lookup matches.
func WriteKeywordHits(w io.Writer, query string, hits []*models.KeywordHit, format OutputFormat) error {
	if format == OutputJSON {
		if hits == nil {
			hits = []*models.KeywordHit{}
		}
		return writeJSON(w, map[string]interface{}{"query": query, "hits": hits})
	}
	fmt.Fprintf(w, "\n%d keyword matches for %q\n\n", len(hits), query)
	for _, h := range hits {
		fmt.Fprintln(w, separator)
		fmt.Fprintf(w, "Score: %.4f | Position: %d\n", h.Score, h.Position)
		writeMetadata(w, h.Metadata)
		fmt.Fprintf(w, "\n%s\n\n", TruncateWords(utils.CollapseWhitespace(h.Text), 40))
	}
	return nil
}

// StatsReport combines store and registry counts.
type StatsReport struct {
	models.Stats
	LoadState        string `json:"load_state"`
	Documents        int64  `json:"documents"`
	RegisteredChunks int64  `json:"registered_chunks"`
	DiskUsageBytes   int64  `json:"disk_usage_bytes"`
}

// WriteStats writes a stats report.
func WriteStats(w io.Writer, s *StatsReport, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "Chunks:        %d\n", s.TotalDocuments)
	fmt.Fprintf(w, "Index size:    %d\n", s.IndexSize)
	fmt.Fprintf(w, "Dimension:     %d\n", s.Dimension)
	fmt.Fprintf(w, "Load state:    %s\n", s.LoadState)
	fmt.Fprintf(w, "Documents:     %d (%d chunks registered)\n", s.Documents, s.RegisteredChunks)
	fmt.Fprintf(w, "Disk usage:    %s\n", HumanBytes(s.DiskUsageBytes))
	return nil
}

// WriteSummary writes the outcome of an ingest run.
func WriteSummary(w io.Writer, sum indexer.Summary, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, sum)
	}
	fmt.Fprintf(w, "Indexed %d documents (%d chunks), skipped %d unchanged, %d failed\n",
		sum.Indexed, sum.Chunks, sum.Skipped, sum.Failed)
	return nil
}

// WriteResult writes the outcome of a single-file ingest.
func WriteResult(w io.Writer, res *indexer.Result, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	if res.Skipped {
		fmt.Fprintf(w, "Unchanged: %s (%s)\n", res.Source, res.DocumentID)
		return nil
	}
	fmt.Fprintf(w, "Indexed %s as %s: %d chunks at position %d\n",
		res.Source, res.DocumentID, res.Chunks, res.FirstPosition)
	return nil
}

// HumanBytes formats n with a binary unit suffix.
func HumanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
