package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/polai/polai-go/internal/ingestion"
	"github.com/polai/polai-go/internal/rag"
	"github.com/polai/polai-go/internal/store"
)

// Request validation bounds, shared by /api/ask and /api/retrieve.
const (
	maxQueryLength   = 1000
	maxAnswerLength  = 5000
	maxCommentLength = 2000
	defaultK         = 4
	minK             = 1
	maxK             = 20
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics and backs GET /metrics.
	// If nil, a private registry is created.
	Registry *prometheus.Registry
	// Metrics is the pre-built metric set shared with the engine. If nil a new
	// set is registered against Registry.
	Metrics *Metrics
}

// ingestor runs a document ingestion pass. *ingestion.Pipeline satisfies it;
// tests inject a fake.
type ingestor interface {
	IngestDir(ctx context.Context, dir string) (ingestion.Result, error)
}

// Server is the HTTP server that exposes the retrieval engine via a REST API.
type Server struct {
	// engine answers retrieval and generation requests.
	engine *rag.Engine
	// ingest runs document ingestion for POST /api/ingest.
	ingest ingestor
	// dataDir is the document directory handed to ingest.
	dataDir string
	// feedback persists answer ratings; nil disables the feedback endpoints.
	feedback store.FeedbackStore
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics is the Prometheus metric set for handlers and middleware.
	metrics *Metrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask and POST /api/retrieve.
type askRequest struct {
	// Query is the user's natural language question.
	Query string `json:"query"`
	// K is the number of chunks to retrieve (1..20, default 4).
	K int `json:"k,omitempty"`
}

// suspiciousPatterns flags query content that has no business in a policy
// question. Matches are rejected rather than sanitized.
var suspiciousPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script[^>]*>`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)data:text/html`),
	regexp.MustCompile(`(?i)vbscript:`),
	regexp.MustCompile(`(?i)onload\s*=`),
	regexp.MustCompile(`(?i)onerror\s*=`),
}

// validate normalizes the request in place and returns a client-facing error
// when the body is unacceptable.
func (r *askRequest) validate() error {
	r.Query = strings.Join(strings.Fields(r.Query), " ")
	if r.Query == "" {
		return fmt.Errorf("query must not be empty")
	}
	if len(r.Query) > maxQueryLength {
		return fmt.Errorf("query exceeds %d characters", maxQueryLength)
	}
	for _, p := range suspiciousPatterns {
		if p.MatchString(r.Query) {
			return fmt.Errorf("query contains disallowed content")
		}
	}
	if r.K == 0 {
		r.K = defaultK
	}
	if r.K < minK || r.K > maxK {
		return fmt.Errorf("k must be between %d and %d", minK, maxK)
	}
	return nil
}

// citationJSON is one source reference in an ask response.
type citationJSON struct {
	Title   string `json:"title"`
	Section string `json:"section,omitempty"`
}

// chunkJSON is one retrieved chunk in an ask or retrieve response.
type chunkJSON struct {
	Title   string  `json:"title"`
	Section string  `json:"section,omitempty"`
	Text    string  `json:"text"`
	Score   float32 `json:"score"`
}

// askResponse is the JSON response for POST /api/ask.
type askResponse struct {
	Query     string         `json:"query"`
	Answer    string         `json:"answer"`
	Citations []citationJSON `json:"citations"`
	Chunks    []chunkJSON    `json:"chunks"`
}

// retrieveResponse is the JSON response for POST /api/retrieve.
type retrieveResponse struct {
	Query  string      `json:"query"`
	Chunks []chunkJSON `json:"chunks"`
}

// ingestResponse is the JSON response for POST /api/ingest.
type ingestResponse struct {
	IndexedDocs   int `json:"indexed_docs"`
	IndexedChunks int `json:"indexed_chunks"`
}

// feedbackRequest is the JSON body for POST /api/feedback.
type feedbackRequest struct {
	// Query is the question the answer responded to.
	Query string `json:"query"`
	// Answer is the answer text being rated.
	Answer string `json:"answer"`
	// Rating is 1 for thumbs-up, 0 for thumbs-down; may be omitted.
	Rating *int `json:"rating,omitempty"`
	// Comment is optional free-text feedback.
	Comment string `json:"comment,omitempty"`
}

// validate normalizes the request in place and returns a client-facing error
// when the body is unacceptable.
func (r *feedbackRequest) validate() error {
	r.Query = strings.Join(strings.Fields(r.Query), " ")
	r.Answer = strings.TrimSpace(r.Answer)
	r.Comment = strings.Join(strings.Fields(r.Comment), " ")

	if r.Query == "" {
		return fmt.Errorf("query must not be empty")
	}
	if len(r.Query) > maxQueryLength {
		return fmt.Errorf("query exceeds %d characters", maxQueryLength)
	}
	if r.Answer == "" {
		return fmt.Errorf("answer must not be empty")
	}
	if len(r.Answer) > maxAnswerLength {
		return fmt.Errorf("answer exceeds %d characters", maxAnswerLength)
	}
	if len(r.Comment) > maxCommentLength {
		return fmt.Errorf("comment exceeds %d characters", maxCommentLength)
	}
	if r.Rating != nil && *r.Rating != store.RatingUp && *r.Rating != store.RatingDown {
		return fmt.Errorf("rating must be 0 or 1")
	}
	return nil
}

// feedbackResponse is the JSON response for POST /api/feedback.
type feedbackResponse struct {
	OK bool `json:"ok"`
}
