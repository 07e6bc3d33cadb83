package rag

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/polai/polai-go/internal/embedder"
)

// MemoryStore is the in-process VectorStore fallback: a mutex-guarded linear
// scan with dot-product similarity. Stored vectors are unit-normalized by the
// embedder, so the dot product against the query equals cosine similarity.
// It never fails over further — there is nowhere left to fall to.
type MemoryStore struct {
	// mu guards vectors, chunks, and byKey. RWMutex so searches proceed
	// concurrently; a completed upsert is visible to every later search.
	mu sync.RWMutex

	// dim is the expected vector dimension, fixed at construction.
	dim int

	// vectors[i] is the embedding for chunks[i], in insertion order.
	vectors [][]float32

	// chunks holds the stored chunks, parallel to vectors.
	chunks []Chunk

	// byKey maps chunk keys to their slot so re-ingestion replaces in place,
	// preserving insertion order for deterministic tie-breaking.
	byKey map[string]int
}

// NewMemoryStore constructs an empty MemoryStore for vectors of the given
// dimension.
func NewMemoryStore(dim int) *MemoryStore {
	return &MemoryStore{
		dim:   dim,
		byKey: make(map[string]int),
	}
}

// Upsert stores the given chunks and vectors. A chunk whose Key already
// exists replaces the previous content in its original insertion slot.
func (s *MemoryStore) Upsert(_ context.Context, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("memory store: %d chunks but %d vectors", len(chunks), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != s.dim {
			return fmt.Errorf("memory store: vector %d has dimension %d, want %d", i, len(v), s.dim)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, ch := range chunks {
		if slot, ok := s.byKey[ch.Key()]; ok {
			s.chunks[slot] = ch
			s.vectors[slot] = vectors[i]
			continue
		}
		s.byKey[ch.Key()] = len(s.chunks)
		s.chunks = append(s.chunks, ch)
		s.vectors = append(s.vectors, vectors[i])
	}
	return nil
}

// Search scans all stored vectors and returns the top limit chunks by
// descending similarity, breaking ties by insertion order.
func (s *MemoryStore) Search(_ context.Context, query []float32, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chunks) == 0 {
		return nil, nil
	}

	type scored struct {
		idx   int
		score float32
	}
	all := make([]scored, len(s.vectors))
	for i, v := range s.vectors {
		all[i] = scored{idx: i, score: embedder.Dot(v, query)}
	}

	// Stable sort keeps insertion order for equal scores.
	sort.SliceStable(all, func(a, b int) bool { return all[a].score > all[b].score })

	if limit > len(all) {
		limit = len(all)
	}
	out := make([]ScoredChunk, 0, limit)
	for _, sc := range all[:limit] {
		out = append(out, ScoredChunk{Chunk: s.chunks[sc.idx], Score: sc.score})
	}
	return out, nil
}

// Count returns the number of stored chunks.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Ping always succeeds — the store lives in this process.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// Name returns the backend label.
func (s *MemoryStore) Name() string { return "memory" }

// Close is a no-op for the in-process store.
func (s *MemoryStore) Close() error { return nil }
