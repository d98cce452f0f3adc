package index_test

import (
	"math"
	"testing"

	"github.com/sampoursoltan11/paddock-sub000/internal/index"
)

func TestEmbedDimension(t *testing.T) {
	vec := index.Embed("compliance report for product labels", 64)
	if len(vec) != 64 {
		t.Errorf("dimension: got %d, want 64", len(vec))
	}
}

func TestEmbedDeterministic(t *testing.T) {
	a := index.Embed("safety warning on page three", 128)
	b := index.Embed("safety warning on page three", 128)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding differs at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestEmbedUnitNorm(t *testing.T) {
	vec := index.Embed("ingredients list and contact details", 256)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	if math.Abs(sum-1.0) > 1e-5 {
		t.Errorf("squared norm: got %v, want 1.0", sum)
	}
}

func TestEmbedEmptyTextIsZeroVector(t *testing.T) {
	vec := index.Embed("", 32)
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("bucket %d: got %v, want 0", i, v)
		}
	}
}

func TestEmbedDistinguishesTexts(t *testing.T) {
	a := index.Embed("entirely unrelated words here", 128)
	b := index.Embed("completely different token stream", 128)

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("distinct texts produced identical embeddings")
	}
}
