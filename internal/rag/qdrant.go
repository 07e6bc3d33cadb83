package rag

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// Retry tuning for Qdrant RPCs. gRPC calls fail transiently across server
// restarts and brief network drops; a short bounded retry rides those out
// while a genuinely down service still surfaces within about a second.
const (
	maxAttempts    = 3
	retryBaseDelay = 200 * time.Millisecond
)

// withRetry runs fn up to maxAttempts times with exponential backoff,
// stopping early when ctx is done. The last error is returned unchanged so
// callers keep their own wrapping.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == maxAttempts-1 {
			return err
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(retryBaseDelay << attempt):
		}
	}
}

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantStore implements VectorStore backed by a Qdrant instance. The qdrant
// client is safe for concurrent use, so no additional locking is needed here.
type QdrantStore struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this store.
	cfg *QdrantConfig
}

// NewQdrantStore creates a new QdrantStore, ensuring the target collection
// exists (creating it with cosine distance if necessary), and returns a
// ready-to-use VectorStore.
func NewQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	store := &QdrantStore{client: client, cfg: cfg}
	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	return store, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	var exists bool
	err := withRetry(ctx, func() error {
		var checkErr error
		exists, checkErr = s.client.CollectionExists(ctx, s.cfg.Collection)
		return checkErr
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = withRetry(ctx, func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.cfg.VectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", s.cfg.Collection, err)
	}

	return nil
}

// Upsert stores or updates a batch of chunks with their embeddings. Point IDs
// are the chunks' stable keys, so re-ingesting identical content replaces
// points instead of duplicating them.
func (s *QdrantStore) Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("qdrant: %d chunks but %d vectors", len(chunks), len(vectors))
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, ch := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(ch.Key()),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"doc_id":  ch.DocID,
				"title":   ch.Title,
				"section": ch.Section,
				"offset":  int64(ch.Offset),
				"text":    ch.Text,
			}),
		})
	}

	err := withRetry(ctx, func() error {
		_, upsertErr := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.cfg.Collection,
			Points:         points,
		})
		return upsertErr
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Search performs a cosine similarity search and returns the top results.
// Qdrant orders by descending score; its tie-breaking is stable for a fixed
// collection state.
func (s *QdrantStore) Search(ctx context.Context, query []float32, limit int) ([]ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}

	l := uint64(limit)
	var results []*qdrant.ScoredPoint
	err := withRetry(ctx, func() error {
		var queryErr error
		results, queryErr = s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.cfg.Collection,
			Query:          qdrant.NewQuery(query...),
			Limit:          &l,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return queryErr
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	out := make([]ScoredChunk, 0, len(results))
	for _, r := range results {
		sc := ScoredChunk{Score: r.Score}
		if p := r.Payload; p != nil {
			if v, ok := p["doc_id"]; ok {
				sc.DocID = v.GetStringValue()
			}
			if v, ok := p["title"]; ok {
				sc.Title = v.GetStringValue()
			}
			if v, ok := p["section"]; ok {
				sc.Section = v.GetStringValue()
			}
			if v, ok := p["offset"]; ok {
				sc.Offset = int(v.GetIntegerValue())
			}
			if v, ok := p["text"]; ok {
				sc.Text = v.GetStringValue()
			}
		}
		out = append(out, sc)
	}

	return out, nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	var n uint64
	err := withRetry(ctx, func() error {
		var countErr error
		n, countErr = s.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: s.cfg.Collection,
			Exact:          qdrant.PtrOf(true),
		})
		return countErr
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count failed: %w", err)
	}
	return int(n), nil //nolint:gosec // corpus sizes are far below int range
}

// Ping checks that the Qdrant service responds to a health check.
func (s *QdrantStore) Ping(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Name returns the backend label.
func (s *QdrantStore) Name() string { return "qdrant" }

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	return s.client.Close()
}
