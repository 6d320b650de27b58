// Package indexer turns documents into stored chunks: extraction, chunking,
// embedding through the vector store, and bookkeeping in the document
// registry and keyword index.
package indexer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Chunker splits text recursively on a separator hierarchy into chunks of at
// most chunkSize characters, repeating up to chunkOverlap characters between
// neighbours. Sizes count runes. Every chunk is a verbatim substring of the
// input with surrounding whitespace trimmed.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewChunker creates a chunker with the given size and overlap in characters.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize < 1 {
		chunkSize = 1
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   DefaultSeparators,
	}
}

// Split returns the chunks of text. Whitespace-only input yields nil.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, c.separators)
}

func (c *Chunker) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var next []string
	for i, s := range separators {
		if s == "" {
			separator = s
			break
		}
		if strings.Contains(text, s) {
			separator = s
			next = separators[i+1:]
			break
		}
	}

	var chunks, small []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if runeLen(piece) < c.chunkSize {
			small = append(small, piece)
			continue
		}
		if len(small) > 0 {
			chunks = append(chunks, c.merge(small)...)
			small = nil
		}
		if len(next) == 0 {
			if chunk := strings.TrimSpace(piece); chunk != "" {
				chunks = append(chunks, chunk)
			}
			continue
		}
		chunks = append(chunks, c.split(piece, next)...)
	}
	if len(small) > 0 {
		chunks = append(chunks, c.merge(small)...)
	}
	return chunks
}

// merge greedily concatenates adjacent pieces into chunks, carrying the tail
// of each chunk into the next as overlap.
func (c *Chunker) merge(pieces []string) []string {
	var (
		chunks  []string
		current []string
		total   int
	)
	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n > c.chunkSize && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for len(current) > 0 && (total > c.chunkOverlap || total+n > c.chunkSize) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += n
	}
	if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// splitKeepSeparator splits text on sep, keeping each separator at the start
// of the piece that follows it, so the pieces concatenate back to text.
// An empty sep splits into runes.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		out := make([]string, 0, len(text))
		for i := 0; i < len(text); {
			_, w := utf8.DecodeRuneInString(text[i:])
			out = append(out, text[i:i+w])
			i += w
		}
		return out
	}
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}

// Preprocess normalizes extracted text before chunking: line endings become
// "\n", control characters other than newline and tab are dropped, trailing
// spaces on each line are removed and the result is trimmed.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == '\uFEFF' {
			return -1
		}
		return r
	}, text)
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRightFunc(l, unicode.IsSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
