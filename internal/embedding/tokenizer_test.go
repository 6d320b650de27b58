package embedding

import (
	"testing"
)

func TestSimpleTokenizer_Tokenize(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, attn, types := tok.Tokenize("hello world", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths = %d/%d/%d", len(ids), len(attn), len(types))
	}
	if ids[0] != clsToken {
		t.Errorf("expected CLS 101, got %d", ids[0])
	}
	if ids[3] != sepToken {
		t.Errorf("expected SEP after two words, got %d", ids[3])
	}
	if attn[3] != 1 || attn[4] != 0 {
		t.Errorf("attention mask = %v", attn)
	}
}

func TestSimpleTokenizer_TruncatesToMaxTokens(t *testing.T) {
	tok := &SimpleTokenizer{}
	ids, _, _ := tok.Tokenize("a b c d e f g h i j k l", 5)
	if len(ids) != 5 {
		t.Fatalf("len(ids)=%d", len(ids))
	}
	if ids[4] != sepToken {
		t.Errorf("last slot should be SEP, got %d", ids[4])
	}
}

func TestSplitWords(t *testing.T) {
	words := SplitWords("  a  b \n c  ")
	if len(words) != 3 {
		t.Errorf("expected 3 words, got %v", words)
	}
	if SplitWords("") != nil {
		t.Error("empty string should return nil")
	}
}

func TestHashString(t *testing.T) {
	if HashString("abc") != HashString("abc") {
		t.Error("hash should be deterministic")
	}
	if HashString("abc") == HashString("abd") {
		t.Error("different strings should usually hash differently")
	}
	for _, s := range []string{"", "x", "a much longer string with spaces"} {
		if HashString(s) < 0 {
			t.Errorf("HashString(%q) negative", s)
		}
	}
}
