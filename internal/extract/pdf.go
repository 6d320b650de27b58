package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF returns the text of every non-blank page, pages separated by a
// blank line so each page starts a new paragraph for the splitter.
func extractPDF(content []byte) (text string, err error) {
	// The reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("extract PDF: malformed document: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("extract PDF: %w", err)
	}
	pages := make([]string, 0, r.NumPage())
	for n := 1; n <= r.NumPage(); n++ {
		page := r.Page(n)
		if page.V.IsNull() {
			continue
		}
		body, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract PDF: page %d: %w", n, err)
		}
		if body = strings.TrimSpace(body); body != "" {
			pages = append(pages, body)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}
