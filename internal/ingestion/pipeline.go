package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/polai/polai-go/internal/rag"
)

// Indexer receives the prepared chunks. Satisfied by rag.Engine.
type Indexer interface {
	Index(ctx context.Context, chunks []rag.Chunk) (int, error)
}

// Config holds the chunking parameters for the pipeline.
type Config struct {
	// ChunkSize is the maximum number of whitespace tokens per chunk.
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is the number of tail tokens carried into the next chunk.
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// Result summarizes one ingestion run.
type Result struct {
	// Docs is the number of source files processed.
	Docs int `json:"docs"`
	// Chunks is the number of chunks indexed.
	Chunks int `json:"chunks"`
}

// Pipeline orchestrates the load, section, chunk, and index flow for a
// document directory.
type Pipeline struct {
	indexer Indexer
	cfg     Config
	log     *slog.Logger
}

// NewPipeline constructs a Pipeline. indexer must not be nil; zero config
// fields take the package defaults.
func NewPipeline(indexer Indexer, cfg Config, log *slog.Logger) (*Pipeline, error) {
	if indexer == nil {
		return nil, fmt.Errorf("ingestion: indexer must not be nil")
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap < 0 {
		cfg.ChunkOverlap = 0
	}
	if cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{indexer: indexer, cfg: cfg, log: log}, nil
}

// IngestDir loads every document in dir and indexes its chunks. Re-running
// over the same directory replaces existing chunks rather than duplicating
// them: chunk identity is derived from title, section, and position.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) (Result, error) {
	docs, err := LoadDir(dir)
	if err != nil {
		return Result{}, err
	}

	chunks := Prepare(docs, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	p.log.Info("prepared chunks for indexing",
		slog.String("dir", dir),
		slog.Int("docs", len(docs)),
		slog.Int("chunks", len(chunks)),
	)

	n, err := p.indexer.Index(ctx, chunks)
	if err != nil {
		return Result{}, fmt.Errorf("ingestion: indexing failed: %w", err)
	}
	return Result{Docs: len(docs), Chunks: n}, nil
}

// Prepare flattens documents into chunks ready for indexing. Offsets are
// per (document, section) so chunk identity is stable across runs.
func Prepare(docs []Document, chunkSize, overlap int) []rag.Chunk {
	var out []rag.Chunk
	for _, doc := range docs {
		for _, sec := range doc.Sections {
			for i, text := range ChunkText(sec.Body, chunkSize, overlap) {
				out = append(out, rag.Chunk{
					DocID:   doc.Title,
					Title:   doc.Title,
					Section: sec.Title,
					Offset:  i,
					Text:    text,
				})
			}
		}
	}
	return out
}
