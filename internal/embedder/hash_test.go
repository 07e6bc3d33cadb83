package embedder

import (
	"math"
	"testing"
)

func Test_Embed_Deterministic(t *testing.T) {
	t.Parallel()
	e := New(384)

	a := e.Embed("items may be returned within 30 days if damaged")
	b := e.Embed("items may be returned within 30 days if damaged")

	if len(a) != 384 || len(b) != 384 {
		t.Fatalf("want dimension 384, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at index %d: %v != %v", i, a[i], b[i])
		}
	}
}

func Test_Embed_EmptyAndWhitespaceYieldZeroVector(t *testing.T) {
	t.Parallel()
	e := New(64)

	for _, input := range []string{"", "   ", "\t\n  "} {
		vec := e.Embed(input)
		if len(vec) != 64 {
			t.Fatalf("input %q: want dimension 64, got %d", input, len(vec))
		}
		for i, v := range vec {
			if v != 0 {
				t.Errorf("input %q: want zero vector, got %v at index %d", input, v, i)
			}
		}
	}
}

func Test_Embed_UnitNorm(t *testing.T) {
	t.Parallel()
	e := New(128)

	vec := e.Embed("refunds are processed within five business days")

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if math.Abs(norm-1.0) > 1e-5 {
		t.Errorf("want unit norm, got %v", norm)
	}
}

func Test_Embed_SimilarTextScoresHigherThanUnrelated(t *testing.T) {
	t.Parallel()
	e := New(384)

	query := e.Embed("return a damaged blender")
	related := e.Embed("items may be returned within 30 days if damaged")
	unrelated := e.Embed("the quarterly financial report is due friday")

	if Cosine(query, related) <= Cosine(query, unrelated) {
		t.Errorf("related text should score higher: related=%v unrelated=%v",
			Cosine(query, related), Cosine(query, unrelated))
	}
}

func Test_Cosine_ZeroVectorIsZero(t *testing.T) {
	t.Parallel()
	e := New(32)

	zero := e.Embed("")
	other := e.Embed("shipping policy")

	if got := Cosine(zero, other); got != 0 {
		t.Errorf("cosine against zero vector: want 0, got %v", got)
	}
	if got := Cosine(zero, zero); got != 0 {
		t.Errorf("cosine of zero with itself: want 0, got %v", got)
	}
}

func Test_Tokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"simple", "Refund Windows", []string{"refund", "windows"}},
		{"punctuation", "30-day refund, no questions!", []string{"30", "day", "refund", "no", "questions"}},
		{"empty", "", nil},
		{"whitespace only", "  \t ", nil},
		{"mixed case and digits", "Tier2 Support", []string{"tier2", "support"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Tokenize(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("want %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d: want %q, got %q", i, tt.want[i], got[i])
				}
			}
		})
	}
}

func Test_New_NonPositiveDimFallsBack(t *testing.T) {
	t.Parallel()

	if got := New(0).Dimensions(); got != DefaultDimensions {
		t.Errorf("want %d, got %d", DefaultDimensions, got)
	}
	if got := New(-5).Dimensions(); got != DefaultDimensions {
		t.Errorf("want %d, got %d", DefaultDimensions, got)
	}
}
