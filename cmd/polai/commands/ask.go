package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/polai/polai-go/internal/logging"
)

// NewAskCmd constructs the `polai ask` command, which answers a single
// question and prints the answer with its citations to stdout.
func NewAskCmd() *cobra.Command {
	var dir string
	var topK int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question about your policy documents",
		Long: `Ask a single natural language question over the indexed documents.

When the data directory exists, it is (re-)indexed before answering so the
command works standalone against the in-process store; against a populated
Qdrant collection the re-index is an idempotent no-op.

Examples:
  polai ask "how long is the return window?"
  polai ask --dir ./hr-docs "how many vacation days do new hires get?"
  polai ask -k 8 "what does the warranty cover?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			engine, err := buildEngine(ctx, nil, log)
			if err != nil {
				return fmt.Errorf("ask: failed to initialise engine: %w", err)
			}
			defer func() { _ = engine.Store().Close() }()

			if dir == "" {
				dir = getEnvOrDefault("DATA_DIR", "./data")
			}
			if _, statErr := os.Stat(dir); statErr == nil {
				pipeline, pErr := buildPipeline(engine, log)
				if pErr != nil {
					return fmt.Errorf("ask: failed to create pipeline: %w", pErr)
				}
				res, ingErr := pipeline.IngestDir(ctx, dir)
				if ingErr != nil {
					return fmt.Errorf("ask: failed to index %q: %w", dir, ingErr)
				}
				log.Info("indexed data directory",
					slog.String("dir", dir),
					slog.Int("docs", res.Docs),
					slog.Int("chunks", res.Chunks),
				)
			}

			answer := engine.Answer(ctx, args[0], topK)

			fmt.Println(answer.Text)
			if len(answer.Citations) > 0 {
				fmt.Println("\nSources:")
				for _, c := range answer.Citations {
					fmt.Printf("  - %s — %s\n", c.Title, c.Section)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Directory of documents to index before answering (default: $DATA_DIR or ./data)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of passages to retrieve (default: 4)")

	return cmd
}
