// Package extract provides text extraction from various document formats.
package extract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrUnsupported is returned for file types with no extractor.
	ErrUnsupported = errors.New("unsupported file type")
	// ErrNoText is returned when a document yields no text.
	ErrNoText = errors.New("no text content extracted")
)

var supported = []string{".txt", ".md", ".pdf", ".docx", ".xlsx", ".csv", ".rtf", ".odt"}

// SupportedExtensions returns the extensions Extract understands.
func SupportedExtensions() []string {
	out := make([]string, len(supported))
	copy(out, supported)
	return out
}

// IsSupported reports whether the extension of name has an extractor.
func IsSupported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, s := range supported {
		if s == ext {
			return true
		}
	}
	return false
}

// Extractor extracts plain text from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its text content.
func (e *Extractor) Extract(path string) (string, error) {
	if !IsSupported(path) {
		return "", fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, filepath.Base(path))
}

// ExtractBytes extracts text from content. name is a file name or a bare
// extension with its leading dot (e.g. ".pdf"); its extension picks the format.
func (e *Extractor) ExtractBytes(content []byte, name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = extractPDF(content)
	case ".docx":
		text, err = extractDOCX(content)
	case ".xlsx":
		text, err = extractExcel(content)
	case ".csv":
		title := name
		if title == ext {
			title = ""
		}
		text, err = extractCSV(content, title)
	case ".rtf", ".odt":
		text, err = extractCat(content, ext)
	case ".txt", ".md":
		text, err = extractPlain(content)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrNoText
	}
	return text, nil
}
