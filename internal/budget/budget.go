// Package budget provides token budget estimation and context trimming for
// generation prompts. Because the engine supports multiple LLM backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose). This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
package budget

import (
	"github.com/polai/polai-go/internal/rag"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English prose; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models (Llama 3 8B,
	// GPT-3.5) while leaving room for the output. Override via config.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateChunk returns the estimated token count for one context chunk,
// including its title and section labels.
func EstimateChunk(ch rag.Chunk) int {
	// Each chunk carries a small formatting overhead in the prompt
	// (source line, separators).
	return 4 + Estimate(ch.Title) + Estimate(ch.Section) + Estimate(ch.Text)
}

// TrimChunks drops chunks from the tail until the prompt scaffolding plus the
// remaining chunks fit within maxTokens. Chunks arrive ranked best-first, so
// trimming the tail sheds the least relevant context. The first chunk is
// always kept even if it alone exceeds the budget — an over-long prompt beats
// answering with no context at all.
func TrimChunks(chunks []rag.Chunk, scaffoldingTokens, maxTokens int) []rag.Chunk {
	if len(chunks) == 0 {
		return chunks
	}

	total := scaffoldingTokens
	keep := 0
	for _, ch := range chunks {
		total += EstimateChunk(ch)
		if total > maxTokens && keep > 0 {
			break
		}
		keep++
	}
	return chunks[:keep]
}
