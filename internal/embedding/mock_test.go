package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/hyperjump/tanya/internal/vector"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(64)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "How many vacation days do I get?")
	b, _ := e.Embed(ctx, "How many vacation days do I get?")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding differs at %d", i)
		}
	}
	if len(a) != 64 {
		t.Errorf("len=%d", len(a))
	}
	if n := vector.L2Norm(a); math.Abs(n-1) > 1e-5 {
		t.Errorf("norm=%f, want 1", n)
	}
}

func TestMockEmbedder_SharedWordsScoreHigher(t *testing.T) {
	e := NewMockEmbedder(256)
	ctx := context.Background()
	q, _ := e.Embed(ctx, "vacation days")
	near, _ := e.Embed(ctx, "Employees get 20 vacation days per year")
	far, _ := e.Embed(ctx, "Reset your password at the helpdesk portal")
	if vector.InnerProduct(q, near) <= vector.InnerProduct(q, far) {
		t.Error("text sharing words should score higher")
	}
}

func TestMockEmbedder_DefaultDimensions(t *testing.T) {
	if NewMockEmbedder(0).Dimensions() != 768 {
		t.Error("default dimension should be 768")
	}
}

func TestMockEmbedder_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewMockEmbedder(8).Embed(ctx, "x"); err == nil {
		t.Error("expected error on canceled context")
	}
}
