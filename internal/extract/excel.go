package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// extractExcel renders each non-empty sheet as a "Sheet <name>:" heading
// followed by its rows, cells tab-separated. Blank rows and trailing empty
// cells are dropped; sheets are separated by a blank line.
func extractExcel(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("extract XLSX: %w", err)
	}
	defer f.Close()

	var sheets []string
	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return "", fmt.Errorf("extract XLSX: sheet %q: %w", name, err)
		}
		var lines []string
		for _, row := range rows {
			if line := sheetRow(row); line != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) == 0 {
			continue
		}
		sheets = append(sheets, fmt.Sprintf("Sheet %s:\n%s", name, strings.Join(lines, "\n")))
	}
	return strings.Join(sheets, "\n\n"), nil
}

func sheetRow(cells []string) string {
	end := len(cells)
	for end > 0 && strings.TrimSpace(cells[end-1]) == "" {
		end--
	}
	if end == 0 {
		return ""
	}
	trimmed := make([]string, end)
	for i, c := range cells[:end] {
		trimmed[i] = strings.TrimSpace(c)
	}
	return strings.Join(trimmed, "\t")
}
