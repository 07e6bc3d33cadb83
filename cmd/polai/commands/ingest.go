package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/polai/polai-go/internal/logging"
	"github.com/polai/polai-go/internal/rag"
)

// NewIngestCmd constructs the `polai ingest` command, which indexes a
// directory of documents into the vector store.
func NewIngestCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index policy documents into the vector store",
		Long: `Load, section, chunk, and embed the Markdown and plain-text documents in a
directory and index them into the vector store.

Ingestion is idempotent: re-running over the same documents replaces the
existing chunks rather than duplicating them.

Relevant environment variables:
  QDRANT_HOST            Qdrant server hostname (default: localhost)
  QDRANT_PORT            Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION      Collection name (default: polai-docs)
  QDRANT_API_KEY         Optional API key for authenticated clusters
  VECTOR_BACKEND         Vector store backend: qdrant, memory (default: qdrant)
  EMBEDDING_DIMENSIONS   Embedding vector size (default: 384)
  CHUNK_SIZE             Tokens per chunk (default: 200)
  CHUNK_OVERLAP          Overlap tokens between chunks (default: 40)

Examples:
  polai ingest --dir ./data
  QDRANT_COLLECTION=hr-policies polai ingest --dir ./hr-docs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if dir == "" {
				dir = getEnvOrDefault("DATA_DIR", "./data")
			}
			if _, err := os.Stat(dir); err != nil {
				return fmt.Errorf("ingest: data directory %q: %w", dir, err)
			}

			// The in-process backend only lives as long as this command, so a
			// one-shot ingest into it is lost on exit.
			if rag.Backend(os.Getenv("VECTOR_BACKEND")) == rag.BackendMemory {
				log.Warn("ingesting into the in-process memory backend; the index is discarded when this command exits")
			}

			engine, err := buildEngine(ctx, nil, log)
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise engine: %w", err)
			}
			defer func() { _ = engine.Store().Close() }()

			pipeline, err := buildPipeline(engine, log)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			log.Info("starting ingestion", slog.String("dir", dir))

			res, err := pipeline.IngestDir(ctx, dir)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingestion complete",
				slog.String("dir", dir),
				slog.Int("docs", res.Docs),
				slog.Int("chunks", res.Chunks),
			)
			fmt.Printf("indexed %d documents (%d chunks) from %s\n", res.Docs, res.Chunks, dir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory of documents to index (default: $DATA_DIR or ./data)")

	return cmd
}
