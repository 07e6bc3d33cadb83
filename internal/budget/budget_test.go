package budget

import (
	"strings"
	"testing"

	"github.com/polai/polai-go/internal/rag"
)

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 1},     // shorter than one token rounds up to 1
		{"abcd", 1},    // exactly one token
		{"abcdefgh", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		if got := Estimate(tc.in); got != tc.want {
			t.Errorf("Estimate(%q len=%d) = %d, want %d", tc.in[:min(8, len(tc.in))], len(tc.in), got, tc.want)
		}
	}
}

func Test_EstimateChunk(t *testing.T) {
	t.Parallel()
	ch := rag.Chunk{Title: "Returns", Section: "Window", Text: strings.Repeat("a", 40)}
	// 4 overhead + 1 (title) + 1 (section) + 10 (text)
	if got := EstimateChunk(ch); got != 16 {
		t.Fatalf("EstimateChunk = %d, want 16", got)
	}
}

func Test_TrimChunks_DropsTailToFit(t *testing.T) {
	t.Parallel()

	chunks := []rag.Chunk{
		{Title: "A", Section: "S", Text: strings.Repeat("a", 400)}, // ~106 tokens
		{Title: "B", Section: "S", Text: strings.Repeat("b", 400)},
		{Title: "C", Section: "S", Text: strings.Repeat("c", 400)},
	}

	got := TrimChunks(chunks, 50, 300)
	if len(got) != 2 {
		t.Fatalf("kept %d chunks, want 2", len(got))
	}
	if got[0].Title != "A" || got[1].Title != "B" {
		t.Fatalf("trimmed from the wrong end: %+v", got)
	}
}

func Test_TrimChunks_AlwaysKeepsFirst(t *testing.T) {
	t.Parallel()

	chunks := []rag.Chunk{
		{Title: "A", Section: "S", Text: strings.Repeat("a", 4000)},
	}
	got := TrimChunks(chunks, 0, 10)
	if len(got) != 1 {
		t.Fatalf("kept %d chunks, want 1 (first chunk always kept)", len(got))
	}
}

func Test_TrimChunks_NoTrimWhenWithinBudget(t *testing.T) {
	t.Parallel()

	chunks := []rag.Chunk{
		{Title: "A", Section: "S", Text: "short"},
		{Title: "B", Section: "S", Text: "also short"},
	}
	got := TrimChunks(chunks, 10, DefaultMaxContextTokens)
	if len(got) != 2 {
		t.Fatalf("kept %d chunks, want 2", len(got))
	}
}

func Test_TrimChunks_Empty(t *testing.T) {
	t.Parallel()
	if got := TrimChunks(nil, 0, 100); len(got) != 0 {
		t.Fatalf("empty input returned %d chunks", len(got))
	}
}
