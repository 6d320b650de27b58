package extract

import (
	"fmt"

	"github.com/lu4p/cat"
)

// extractCat handles RTF and ODT, which lu4p/cat reads reliably. DOCX stays
// on extractDOCX because cat's paragraph regex misses attributed <w:p> tags.
func extractCat(content []byte, ext string) (string, error) {
	text, err := cat.FromBytes(content)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", ext, err)
	}
	return text, nil
}
