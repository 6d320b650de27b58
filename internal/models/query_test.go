package models

import (
	"errors"
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	q := &SearchQuery{Query: "  vacation  ", K: 500}
	if err := q.Validate(); err != nil {
		t.Fatal(err)
	}
	if q.Query != "vacation" {
		t.Errorf("query not trimmed: %q", q.Query)
	}
	if q.K != 100 {
		t.Errorf("K should be capped at 100, got %d", q.K)
	}

	bad := 1.5
	tests := []struct {
		name string
		q    SearchQuery
	}{
		{"empty", SearchQuery{Query: "   "}},
		{"negative k", SearchQuery{Query: "x", K: -1}},
		{"threshold out of range", SearchQuery{Query: "x", Threshold: &bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.q.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAskRequest_Validate(t *testing.T) {
	r := &AskRequest{Question: " How many vacation days? "}
	if err := r.Validate(); err != nil {
		t.Fatal(err)
	}
	if r.Question != "How many vacation days?" {
		t.Errorf("question not trimmed: %q", r.Question)
	}
	if err := (&AskRequest{Question: "x", Mode: ModeGenerative}).Validate(); err != nil {
		t.Errorf("generative mode should be valid: %v", err)
	}
	if err := (&AskRequest{Question: "x", Mode: "haiku"}).Validate(); err == nil {
		t.Error("expected error for unknown mode")
	}
	if err := (&AskRequest{}).Validate(); err == nil {
		t.Error("expected error for empty question")
	}
}

func TestChunkMetadata_Title(t *testing.T) {
	m := ChunkMetadata{Extra: map[string]string{"title": "Vacation Policy"}}
	if m.Title() != "Vacation Policy" {
		t.Errorf("Title()=%q", m.Title())
	}
	if (ChunkMetadata{}).Title() != "" {
		t.Error("nil Extra should give empty title")
	}
}

func TestValidate_WrapsErrInvalidRequest(t *testing.T) {
	if err := (&SearchQuery{}).Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("SearchQuery: got %v", err)
	}
	if err := (&AskRequest{Question: "x", Mode: "haiku"}).Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("AskRequest: got %v", err)
	}
}
