package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const csvSampleRows = 10

// extractCSV renders a CSV as a readable summary: the columns, the row count,
// the first rows and basic statistics for numeric columns.
func extractCSV(content []byte, name string) (string, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return "", fmt.Errorf("extract CSV: %w", err)
	}
	if len(records) == 0 {
		return "", nil
	}
	header, rows := records[0], records[1:]

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "CSV Data from %s:\n\n", name)
	} else {
		b.WriteString("CSV Data:\n\n")
	}
	fmt.Fprintf(&b, "Columns: %s\n\n", strings.Join(header, ", "))
	fmt.Fprintf(&b, "Total rows: %d\n\n", len(rows))
	b.WriteString("Sample data:\n")
	b.WriteString(strings.Join(header, "\t"))
	for i, row := range rows {
		if i == csvSampleRows {
			break
		}
		b.WriteByte('\n')
		b.WriteString(strings.Join(row, "\t"))
	}

	if stats := numericSummary(header, rows); stats != "" {
		b.WriteString("\n\nSummary Statistics:\n")
		b.WriteString(stats)
	}
	return b.String(), nil
}

// numericSummary describes every column whose non-empty cells all parse as numbers.
func numericSummary(header []string, rows [][]string) string {
	var lines []string
	for col, name := range header {
		count, sum := 0, 0.0
		minVal, maxVal := math.Inf(1), math.Inf(-1)
		numeric := true
		for _, row := range rows {
			if col >= len(row) || strings.TrimSpace(row[col]) == "" {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
			if err != nil {
				numeric = false
				break
			}
			count++
			sum += v
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
		if !numeric || count == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: count=%d mean=%s min=%s max=%s",
			name, count, formatNum(sum/float64(count)), formatNum(minVal), formatNum(maxVal)))
	}
	return strings.Join(lines, "\n")
}

func formatNum(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
