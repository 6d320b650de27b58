package indexer

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunker_Split(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
		want    []string
	}{
		{"words", 10, 3, "aaaa bbbb cccc dddd", []string{"aaaa bbbb", "cccc dddd"}},
		{"overlap", 10, 5, "aa bb cc dd ee", []string{"aa bb cc", "cc dd ee"}},
		{"paragraphs", 20, 0, "Para one here.\n\nPara two here.", []string{"Para one here.", "Para two here."}},
		{"characters", 4, 0, "abcdefghij", []string{"abcd", "efgh", "ij"}},
		{"recursive", 10, 0, "short\n\nthis is a longer paragraph", []string{"short", "this is a", "longer", "paragraph"}},
		{"fits", 100, 20, "  one small document  ", []string{"one small document"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewChunker(tt.size, tt.overlap).Split(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Split = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChunker_SplitEmpty(t *testing.T) {
	c := NewChunker(5, 1)
	if chunks := c.Split("   \n\t  "); chunks != nil {
		t.Errorf("whitespace text should return nil, got %q", chunks)
	}
	if chunks := c.Split(""); chunks != nil {
		t.Errorf("empty text should return nil, got %q", chunks)
	}
}

func TestChunker_ChunksAreBoundedSubstrings(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Employees accrue vacation days monthly and must request leave in advance.")
		if i%5 == 4 {
			b.WriteString("\n\n")
		} else {
			b.WriteString(" ")
		}
	}
	b.WriteString("Überstunden werden vergütet.")
	text := b.String()

	c := NewChunker(120, 30)
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if !strings.Contains(text, ch) {
			t.Errorf("chunk %d is not a substring of the input: %q", i, ch)
		}
		if n := utf8.RuneCountInString(ch); n > 120 {
			t.Errorf("chunk %d has %d runes, limit 120", i, n)
		}
		if strings.TrimSpace(ch) != ch || ch == "" {
			t.Errorf("chunk %d is not trimmed: %q", i, ch)
		}
	}
}

func TestNewChunker_ClampsArguments(t *testing.T) {
	c := NewChunker(0, 5)
	if c.chunkSize != 1 || c.chunkOverlap != 0 {
		t.Errorf("got size=%d overlap=%d", c.chunkSize, c.chunkOverlap)
	}
	c = NewChunker(10, 10)
	if c.chunkOverlap != 0 {
		t.Errorf("overlap >= size should reset to 0, got %d", c.chunkOverlap)
	}
}

func TestSplitKeepSeparator(t *testing.T) {
	got := splitKeepSeparator("a\nb\n\nc", "\n")
	want := []string{"a", "\nb", "\n", "\nc"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
	if strings.Join(got, "") != "a\nb\n\nc" {
		t.Error("pieces should concatenate back to the input")
	}
	runes := splitKeepSeparator("né", "")
	if !reflect.DeepEqual(runes, []string{"n", "é"}) {
		t.Errorf("rune split = %q", runes)
	}
}

func TestPreprocess(t *testing.T) {
	in := "\uFEFF  Title  \r\nline one\t \r\n\r\nline\x00 two  \n"
	want := "Title\nline one\n\nline two"
	if got := Preprocess(in); got != want {
		t.Errorf("Preprocess = %q, want %q", got, want)
	}
}
