// Package generator implements the answer generation backends for the
// retrieval engine: a deterministic local stub for development and testing,
// and LLM-backed generators (Ollama, OpenAI) built on eino chat models.
// The factory selects a backend at runtime and always degrades to the stub
// rather than failing startup.
package generator

import (
	"context"
	"strings"

	"github.com/polai/polai-go/internal/rag"
)

// stubExcerptLimit caps the naive summary excerpt in stub answers.
const stubExcerptLimit = 600

// Stub is a deterministic generator that summarizes the retrieved context
// without any external calls. It is the default backend for development and
// the terminal fallback when no LLM provider is configured.
type Stub struct{}

// NewStub returns the stub generator.
func NewStub() *Stub { return &Stub{} }

// Generate produces a source-listing summary from the context chunks alone.
// Output depends only on the chunks, never on the query or any external
// state.
func (*Stub) Generate(_ context.Context, _ string, chunks []rag.Chunk) (string, error) {
	var b strings.Builder
	b.WriteString("Answer (stub): Based on the following sources:\n")
	for _, ch := range chunks {
		section := ch.Section
		if section == "" {
			section = "General"
		}
		b.WriteString("- ")
		b.WriteString(ch.Title)
		b.WriteString(" — ")
		b.WriteString(section)
		b.WriteString("\n")
	}
	b.WriteString("Summary:\n")

	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	joined := strings.Join(texts, " ")
	if len(joined) > stubExcerptLimit {
		joined = truncateText(joined, stubExcerptLimit) + "..."
	}
	b.WriteString(joined)

	return b.String(), nil
}

// Name returns the backend label.
func (*Stub) Name() string { return "stub" }
