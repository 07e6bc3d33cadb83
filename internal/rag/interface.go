// Package rag implements the retrieval-and-ranking core of polai: the chunk
// data model, vector storage contracts, MMR re-ranking, and the engine that
// composes embedding, search, ranking, caching, and answer generation.
// Concrete vector store implementations (Qdrant, in-memory) satisfy the
// VectorStore interface so callers never depend on a specific backend.
package rag

import (
	"context"
	"crypto/sha256"
	"fmt"
)

// Chunk is the immutable unit of retrievable text: a titled, sectioned slice
// of a source document produced by ingestion.
type Chunk struct {
	// DocID is the stable identifier of the owning document.
	DocID string `json:"doc_id"`

	// Title is the source document name (e.g. "Returns_and_Refunds.md").
	Title string `json:"title"`

	// Section is the heading this chunk falls under. May be empty.
	Section string `json:"section,omitempty"`

	// Offset is the chunk's index within its document section. Together with
	// Title and Section it identifies the chunk across re-ingestions.
	Offset int `json:"offset"`

	// Text is the chunk body. Never empty for an indexed chunk.
	Text string `json:"text"`
}

// Key returns the chunk's stable identity, derived from title, section, and
// offset. It is formatted as a UUID so it can be used directly as a Qdrant
// point ID; re-ingesting the same logical chunk replaces rather than
// duplicates.
func (c Chunk) Key() string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", c.Title, c.Section, c.Offset)))
	return fmt.Sprintf("%x-%x-%x-%x-%x", h[0:4], h[4:6], h[6:8], h[8:10], h[10:16])
}

// ScoredChunk pairs a chunk with its similarity score from retrieval.
type ScoredChunk struct {
	Chunk

	// Score is the cosine similarity to the query (0 when not computed).
	Score float32 `json:"score"`
}

// Citation identifies the source of a chunk used in an answer.
type Citation struct {
	// Title is the source document name.
	Title string `json:"title"`

	// Section is the heading within the document. May be empty.
	Section string `json:"section,omitempty"`
}

// Answer is the result of the full ask pipeline: generated text plus the
// citations and chunks that justify it.
type Answer struct {
	// Text is the generated (or fallback) answer.
	Text string `json:"text"`

	// Citations are the de-duplicated (title, section) pairs of the chunks
	// used, in chunk order.
	Citations []Citation `json:"citations"`

	// Chunks are the retrieved chunks the answer was generated from, in
	// ranked order.
	Chunks []ScoredChunk `json:"chunks"`
}

// VectorStore is the contract for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines. Upserts and
// searches may run concurrently; a completed upsert must be visible to every
// subsequent search (no snapshot isolation is promised for in-flight ones).
type VectorStore interface {
	// Upsert stores or updates a batch of chunks with their pre-computed
	// embeddings. vectors must be parallel to chunks — vectors[i] embeds
	// chunks[i]. Upserting a chunk with an existing Key replaces it.
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error

	// Search returns up to limit chunks ordered by descending cosine
	// similarity to the query vector. Ties break by insertion order so
	// identical inputs always produce identical output.
	Search(ctx context.Context, query []float32, limit int) ([]ScoredChunk, error)

	// Count returns the number of chunks currently stored.
	Count(ctx context.Context) (int, error)

	// Ping reports whether the backing service is reachable.
	Ping(ctx context.Context) error

	// Name returns a short backend label for logs and stats ("qdrant", "memory").
	Name() string

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into a fixed-dimension vector. Implementations must
// be deterministic and safe for concurrent use; the engine relies on
// identical text always producing an identical vector.
type Embedder interface {
	// Embed returns the embedding of text. Empty text yields the zero vector.
	Embed(text string) []float32
}

// Generator produces a natural-language answer from a query and its
// supporting chunks. It is the pluggable LLM boundary: implementations may
// call out over the network, fail, or time out — the engine always degrades
// to a local fallback answer instead of surfacing those errors.
type Generator interface {
	// Generate returns the answer text for query given the retrieved chunks.
	Generate(ctx context.Context, query string, chunks []Chunk) (string, error)

	// Name returns a short provider label for logs and stats.
	Name() string
}
