package fileid

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestFileDocID(t *testing.T) {
	// Deterministic: same path gives same ID
	id1 := FileDocID("/foo/vacation_policy.txt")
	id2 := FileDocID("/foo/vacation_policy.txt")
	if id1 != id2 {
		t.Errorf("same path should give same ID: %q vs %q", id1, id2)
	}
	if !strings.HasPrefix(id1, "vacation_policy-") {
		t.Errorf("ID should start with the stem: %q", id1)
	}
	if len(id1) != len("vacation_policy-")+8 {
		t.Errorf("unexpected ID length: %q", id1)
	}
}

func TestFileDocID_differentPaths(t *testing.T) {
	id1 := FileDocID("/foo/bar.txt")
	id2 := FileDocID("/baz/bar.txt")
	if id1 == id2 {
		t.Errorf("same name in different directories should give different IDs: %q", id1)
	}
}

func TestFileDocID_normalized(t *testing.T) {
	id1 := FileDocID("/foo/bar")
	id2 := FileDocID("/foo/bar/")
	id3 := FileDocID("/foo/./bar")
	if id1 != id2 {
		t.Errorf("paths differing only by trailing slash should match: %q vs %q", id1, id2)
	}
	if id1 != id3 {
		t.Errorf("paths with . should normalize: %q vs %q", id1, id3)
	}
}

func TestFileDocID_absoluteFromFilepath(t *testing.T) {
	abs, _ := filepath.Abs("notes.md")
	if id := FileDocID(abs); !strings.HasPrefix(id, "notes-") {
		t.Errorf("absolute path: got %q", id)
	}
}

func TestStem(t *testing.T) {
	tests := []struct {
		path, want string
	}{
		{"/docs/Vacation Policy.pdf", "vacation_policy"},
		{"IT-support--guide.docx", "it_support_guide"},
		{"__remote__.txt", "remote"},
		{"/docs/.txt", "document"},
		{"Überstunden.md", "überstunden"},
	}
	for _, tt := range tests {
		if got := Stem(tt.path); got != tt.want {
			t.Errorf("Stem(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
