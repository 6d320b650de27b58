package extract

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// extractPlain decodes .txt and .md bytes. A leading BOM and NUL bytes are
// dropped, invalid UTF-8 becomes U+FFFD and line endings become \n so the
// splitter's paragraph separators match.
func extractPlain(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, utf8BOM)
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "\uFFFD")
	}
	text = strings.ReplaceAll(text, "\x00", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return text, nil
}
