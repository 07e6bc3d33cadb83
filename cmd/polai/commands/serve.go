package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/polai/polai-go/internal/logging"
	"github.com/polai/polai-go/internal/server"
	"github.com/polai/polai-go/internal/store"
	"github.com/polai/polai-go/internal/tracing"
)

// NewServeCmd constructs the `polai serve` command, which starts the HTTP
// API server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var dataDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the polai HTTP API server",
		Long: `Start the polai HTTP server on localhost.

The server exposes a REST API for ingesting documents, retrieving relevant
passages, asking questions, and recording answer feedback. Documents found
in the data directory are indexed at startup; POST /api/ingest re-indexes
on demand.

Examples:
  polai serve
  polai serve --port 9090 --data ./docs
  GENERATOR_BACKEND=ollama polai serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("generator", getEnvOrDefault("GENERATOR_BACKEND", "stub")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			registry := prometheus.NewRegistry()
			metrics := server.NewMetrics(registry)

			engine, err := buildEngine(ctx, metrics, log)
			if err != nil {
				return fmt.Errorf("serve: failed to initialise engine: %w", err)
			}
			defer func() { _ = engine.Store().Close() }()

			pipeline, err := buildPipeline(engine, log)
			if err != nil {
				return fmt.Errorf("serve: failed to create pipeline: %w", err)
			}

			// Open the feedback store. POLAI_FEEDBACK_DB overrides the
			// default path (~/.polai/feedback.db). Set to "disabled" to skip.
			var feedback store.FeedbackStore
			dbPath := os.Getenv("POLAI_FEEDBACK_DB")
			if dbPath != "disabled" {
				if dbPath == "" {
					dbPath, err = store.DefaultDBPath()
					if err != nil {
						log.Warn("feedback: could not resolve default DB path, disabling", slog.Any("error", err))
					}
				}
				if dbPath != "" {
					fs, fsErr := store.Open(dbPath)
					if fsErr != nil {
						log.Warn("feedback: failed to open store, disabling", slog.Any("error", fsErr))
					} else {
						feedback = fs
						defer func() { _ = fs.Close() }()
						log.Info("feedback: store opened", slog.String("path", dbPath))
					}
				}
			} else {
				log.Info("feedback: disabled via POLAI_FEEDBACK_DB=disabled")
			}

			// Flags win over env; env wins over YAML (already folded into
			// env by config.Load). server.New applies the final defaults.
			if host == "" {
				host = os.Getenv("SERVER_HOST")
			}
			if port == 0 {
				port = getEnvInt("SERVER_PORT", 0)
			}
			if dataDir == "" {
				dataDir = getEnvOrDefault("DATA_DIR", "./data")
			}

			// Index the data directory up front so the first question does
			// not hit an empty store. Failure is non-fatal: the API can
			// still serve POST /api/ingest once the directory is fixed.
			if _, statErr := os.Stat(dataDir); statErr == nil {
				res, ingErr := pipeline.IngestDir(ctx, dataDir)
				if ingErr != nil {
					log.Warn("startup ingestion failed", slog.String("dir", dataDir), slog.Any("error", ingErr))
				} else {
					log.Info("startup ingestion complete",
						slog.String("dir", dataDir),
						slog.Int("docs", res.Docs),
						slog.Int("chunks", res.Chunks),
					)
				}
			} else {
				log.Info("data directory not found, skipping startup ingestion", slog.String("dir", dataDir))
			}

			pingers := []server.Pinger{server.NewStorePinger(engine.Store())}
			if feedback != nil {
				pingers = append(pingers, server.NewFeedbackPinger(feedback))
			}

			srv, err := server.New(engine, pipeline, dataDir, feedback, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				Pingers:   pingers,
				RateLimit: getEnvFloat64("RATE_LIMIT_RPS", 0),
				APIKey:    os.Getenv("POLAI_API_KEY"),
				Registry:  registry,
				Metrics:   metrics,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host address to bind to (default: 127.0.0.1)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "TCP port to listen on (default: 8080)")
	cmd.Flags().StringVarP(&dataDir, "data", "d", "", "Directory of documents to index at startup (default: $DATA_DIR or ./data)")

	return cmd
}
