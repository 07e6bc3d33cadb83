package generator

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/polai/polai-go/internal/budget"
	"github.com/polai/polai-go/internal/rag"
)

// systemPrompt frames the assistant role for LLM backends. Citations are
// attached by the engine from retrieval metadata, so the model is told not
// to produce its own.
const systemPrompt = `You are a helpful company policy assistant. Based on the provided sources, answer the question accurately and clearly. The system attaches source citations automatically, so do not include any citation formatting like "Source:" or document references in your answer. Answer based only on the provided sources. Format lists as clear Markdown bullet points with new lines between items.`

// sourceExcerptLimit caps each chunk's contribution to the prompt.
const sourceExcerptLimit = 600

// buildUserPrompt renders the question and numbered sources into a single
// user message. Chunks beyond the token budget are dropped tail-first.
func buildUserPrompt(query string, chunks []rag.Chunk, maxContextTokens int) string {
	scaffolding := budget.Estimate(systemPrompt) + budget.Estimate(query) + 16
	chunks = budget.TrimChunks(chunks, scaffolding, maxContextTokens)

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nSources:\n", query)
	for i, ch := range chunks {
		section := ch.Section
		if section == "" {
			section = "General"
		}
		text := truncateText(ch.Text, sourceExcerptLimit)
		fmt.Fprintf(&b, "Source %d: %s - %s\n%s\n\n", i+1, ch.Title, section, text)
	}
	return b.String()
}

// truncateText shortens s to at most limit bytes, backing up so a multi-byte
// UTF-8 sequence is never split mid-rune.
func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

// dedupeChunks drops chunks whose leading text duplicates an earlier chunk.
// Near-identical chunks waste prompt budget without adding signal.
func dedupeChunks(chunks []rag.Chunk) []rag.Chunk {
	seen := make(map[string]struct{}, len(chunks))
	out := make([]rag.Chunk, 0, len(chunks))
	for _, ch := range chunks {
		key := ch.Text
		if len(key) > 200 {
			key = key[:200]
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ch)
	}
	return out
}
