// Package fileid derives readable, deterministic document IDs from file paths.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"unicode"
)

// FileDocID returns a stable document ID for path: the slugged file stem
// plus a short hash of the cleaned path, e.g. "vacation_policy-1a2b3c4d".
// Same path always yields the same ID; same-named files in different
// directories do not collide.
func FileDocID(path string) string {
	normalized := filepath.Clean(path)
	hash := sha256.Sum256([]byte(normalized))
	return Stem(normalized) + "-" + hex.EncodeToString(hash[:4])
}

// Stem returns the lower-cased file name without extension, with every run of
// characters other than letters and digits replaced by one underscore.
func Stem(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(base) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return "document"
	}
	return b.String()
}
