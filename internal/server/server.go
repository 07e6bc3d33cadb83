// Package server implements the HTTP server that exposes the retrieval
// engine via a REST API: question answering with citations, raw retrieval,
// document ingestion, answer feedback, and operational endpoints.
// The server is started by the `polai serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polai/polai-go/internal/logging"
	"github.com/polai/polai-go/internal/rag"
	"github.com/polai/polai-go/internal/store"
)

// New constructs a Server from the provided engine, ingestion pipeline, and
// config. feedback may be nil, which disables the feedback endpoints.
func New(engine *rag.Engine, ingest ingestor, dataDir string, feedback store.FeedbackStore, cfg *Config) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("server: engine must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Generation against a slow local model can take a while.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(cfg.Registry)
	}

	s := &Server{
		engine:   engine,
		ingest:   ingest,
		dataDir:  dataDir,
		feedback: feedback,
		cfg:      cfg,
		log:      cfg.Logger,
		pingers:  cfg.Pingers,
		metrics:  cfg.Metrics,
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: POLAI_API_KEY not set — API authentication is disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	protected := func(name string, h http.HandlerFunc) http.Handler {
		return s.requestLogger(name, authMiddleware(cfg.APIKey, rl.middleware(h)))
	}
	public := func(name string, h http.Handler) http.Handler {
		return s.requestLogger(name, h)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/health", public("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", public("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", public("metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	mux.Handle("GET /api/stats", protected("stats", s.handleStats))
	mux.Handle("POST /api/ingest", protected("ingest", s.handleIngest))
	mux.Handle("POST /api/ask", protected("ask", s.handleAsk))
	mux.Handle("POST /api/retrieve", protected("retrieve", s.handleRetrieve))
	mux.Handle("POST /api/feedback", protected("feedback", s.handleFeedbackPost))
	mux.Handle("GET /api/feedback", protected("feedback", s.handleFeedbackList))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler exposes the fully assembled HTTP handler for tests.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStats handles GET /api/stats with corpus and cache state.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats(r.Context()))
}

// handleIngest handles POST /api/ingest. It runs the ingestion pipeline over
// the configured data directory and reports how much was indexed.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.ingest == nil {
		http.Error(w, "ingestion is not configured", http.StatusServiceUnavailable)
		return
	}

	res, err := s.ingest.IngestDir(r.Context(), s.dataDir)
	if err != nil {
		log.Error("ingestion failed", slog.Any("error", err))
		http.Error(w, "ingestion failed", http.StatusInternalServerError)
		return
	}
	if res.Docs == 0 {
		http.Error(w, "no documents found in data directory", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		IndexedDocs:   res.Docs,
		IndexedChunks: res.Chunks,
	})
}

// handleAsk handles POST /api/ask: full retrieval plus generation with
// citations. Engine degradation (store outage, generator failure) still
// yields a 200 with a best-effort answer; only invalid input is a client
// error.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		s.metrics.askRequestsTotal.WithLabelValues("invalid").Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ans := s.engine.Answer(r.Context(), req.Query, req.K)
	s.metrics.askRequestsTotal.WithLabelValues("ok").Inc()

	resp := askResponse{
		Query:     req.Query,
		Answer:    ans.Text,
		Citations: make([]citationJSON, 0, len(ans.Citations)),
		Chunks:    toChunkJSON(ans.Chunks),
	}
	for _, c := range ans.Citations {
		resp.Citations = append(resp.Citations, citationJSON{Title: c.Title, Section: c.Section})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRetrieve handles POST /api/retrieve: ranked chunks without
// generation, for debugging and UI preview.
func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ranked := s.engine.Retrieve(r.Context(), req.Query, req.K)
	writeJSON(w, http.StatusOK, retrieveResponse{
		Query:  req.Query,
		Chunks: toChunkJSON(ranked),
	})
}

// handleFeedbackPost handles POST /api/feedback: persist one answer rating.
func (s *Server) handleFeedbackPost(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.feedback == nil {
		http.Error(w, "feedback is not configured", http.StatusServiceUnavailable)
		return
	}

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := req.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fb := store.Feedback{
		Query:   req.Query,
		Answer:  req.Answer,
		Rating:  req.Rating,
		Comment: req.Comment,
	}
	if err := s.feedback.Append(r.Context(), fb); err != nil {
		log.Error("feedback append failed", slog.Any("error", err))
		http.Error(w, "failed to store feedback", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, feedbackResponse{OK: true})
}

// feedbackListLimit caps the number of entries returned by GET /api/feedback.
const feedbackListLimit = 50

// handleFeedbackList handles GET /api/feedback: the most recent ratings.
func (s *Server) handleFeedbackList(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.feedback == nil {
		http.Error(w, "feedback is not configured", http.StatusServiceUnavailable)
		return
	}

	entries, err := s.feedback.Recent(r.Context(), feedbackListLimit)
	if err != nil {
		log.Error("feedback list failed", slog.Any("error", err))
		http.Error(w, "failed to list feedback", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []store.Feedback{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// toChunkJSON converts scored chunks into their response representation.
func toChunkJSON(ranked []rag.ScoredChunk) []chunkJSON {
	out := make([]chunkJSON, 0, len(ranked))
	for _, sc := range ranked {
		out = append(out, chunkJSON{
			Title:   sc.Title,
			Section: sc.Section,
			Text:    sc.Text,
			Score:   sc.Score,
		})
	}
	return out
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
