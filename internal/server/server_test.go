package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/polai/polai-go/internal/embedder"
	"github.com/polai/polai-go/internal/generator"
	"github.com/polai/polai-go/internal/ingestion"
	"github.com/polai/polai-go/internal/rag"
	"github.com/polai/polai-go/internal/store"
)

// fakeIngestor returns a fixed result or error from IngestDir.
type fakeIngestor struct {
	res ingestion.Result
	err error
}

func (f *fakeIngestor) IngestDir(context.Context, string) (ingestion.Result, error) {
	return f.res, f.err
}

// testEngine builds an engine over the in-process store with the stub
// generator, pre-indexed with two policy documents.
func testEngine(t *testing.T) *rag.Engine {
	t.Helper()

	dim := 256
	emb := embedder.New(dim)
	e, err := rag.NewEngine(emb, rag.NewMemoryStore(dim), generator.NewStub(), nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	chunks := []rag.Chunk{
		{DocID: "returns", Title: "Returns_and_Refunds.md", Section: "Return Window", Offset: 0,
			Text: "Items may be returned within 30 days of delivery for a full refund."},
		{DocID: "warranty", Title: "Warranty_Policy.md", Section: "Coverage", Offset: 0,
			Text: "The limited warranty covers manufacturing defects for one year."},
	}
	if _, err := e.Index(context.Background(), chunks); err != nil {
		t.Fatalf("index: %v", err)
	}
	return e
}

// newTestServer builds a Server with an isolated Prometheus registry.
// mutate, if non-nil, adjusts the config before construction.
func newTestServer(t *testing.T, engine *rag.Engine, ingest ingestor, fb store.FeedbackStore, mutate func(*Config)) *Server {
	t.Helper()

	if engine == nil {
		engine = testEngine(t)
	}
	cfg := &Config{Registry: prometheus.NewRegistry()}
	if mutate != nil {
		mutate(cfg)
	}
	s, err := New(engine, ingest, "/data", fb, cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(s.stopRL)
	return s
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func Test_Server_Health(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, nil, nil, nil)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func Test_Server_AskReturnsAnswerWithCitations(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, nil, nil, nil)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/ask",
		map[string]any{"query": "how many days to return an item for a refund", "k": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp askResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer == "" {
		t.Fatal("empty answer")
	}
	if len(resp.Citations) == 0 {
		t.Fatal("no citations")
	}
	if resp.Citations[0].Title != "Returns_and_Refunds.md" {
		t.Fatalf("first citation = %q", resp.Citations[0].Title)
	}
}

func Test_Server_AskValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, nil, nil, nil)
	cases := []struct {
		name string
		body map[string]any
	}{
		{"empty query", map[string]any{"query": "   "}},
		{"query too long", map[string]any{"query": strings.Repeat("a", 1001)}},
		{"k too small", map[string]any{"query": "q", "k": -1}},
		{"k too large", map[string]any{"query": "q", "k": 21}},
		{"script injection", map[string]any{"query": "<script>alert(1)</script>"}},
	}
	for _, tc := range cases {
		rec := doJSON(t, s.Handler(), http.MethodPost, "/api/ask", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func Test_Server_AskDefaultsK(t *testing.T) {
	t.Parallel()

	req := askRequest{Query: "  return   window  "}
	if err := req.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if req.K != defaultK {
		t.Fatalf("k = %d, want %d", req.K, defaultK)
	}
	if req.Query != "return window" {
		t.Fatalf("query not normalized: %q", req.Query)
	}
}

func Test_Server_Retrieve(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, nil, nil, nil)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/retrieve",
		map[string]any{"query": "warranty coverage defects", "k": 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp retrieveResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(resp.Chunks))
	}
	if resp.Chunks[0].Title != "Warranty_Policy.md" {
		t.Fatalf("top chunk = %q", resp.Chunks[0].Title)
	}
}

func Test_Server_Ingest(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, &fakeIngestor{res: ingestion.Result{Docs: 2, Chunks: 9}}, nil, nil)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/ingest", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp ingestResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.IndexedDocs != 2 || resp.IndexedChunks != 9 {
		t.Fatalf("resp = %+v", resp)
	}
}

func Test_Server_IngestErrors(t *testing.T) {
	t.Parallel()

	// Pipeline failure surfaces as 500.
	s := newTestServer(t, nil, &fakeIngestor{err: errors.New("boom")}, nil, nil)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/ingest", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("pipeline error status = %d, want 500", rec.Code)
	}

	// An empty data directory is a client-visible 400.
	s = newTestServer(t, nil, &fakeIngestor{}, nil, nil)
	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/ingest", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty dir status = %d, want 400", rec.Code)
	}

	// No ingestor wired at all.
	s = newTestServer(t, nil, nil, nil, nil)
	rec = doJSON(t, s.Handler(), http.MethodPost, "/api/ingest", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unconfigured status = %d, want 503", rec.Code)
	}
}

func Test_Server_FeedbackRoundTrip(t *testing.T) {
	t.Parallel()

	fb, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open feedback store: %v", err)
	}
	t.Cleanup(func() { _ = fb.Close() })

	s := newTestServer(t, nil, nil, fb, nil)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/feedback",
		map[string]any{"query": "return window?", "answer": "30 days", "rating": 1, "comment": "helpful"})
	if rec.Code != http.StatusOK {
		t.Fatalf("post status = %d, body = %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, s.Handler(), http.MethodGet, "/api/feedback", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var entries []store.Feedback
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 || entries[0].Query != "return window?" {
		t.Fatalf("entries = %+v", entries)
	}
}

func Test_Server_FeedbackValidation(t *testing.T) {
	t.Parallel()

	fb, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open feedback store: %v", err)
	}
	t.Cleanup(func() { _ = fb.Close() })

	s := newTestServer(t, nil, nil, fb, nil)
	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing answer", map[string]any{"query": "q"}},
		{"bad rating", map[string]any{"query": "q", "answer": "a", "rating": 5}},
		{"comment too long", map[string]any{"query": "q", "answer": "a", "comment": strings.Repeat("c", 2001)}},
	}
	for _, tc := range cases {
		rec := doJSON(t, s.Handler(), http.MethodPost, "/api/feedback", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tc.name, rec.Code)
		}
	}
}

func Test_Server_FeedbackNotConfigured(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, nil, nil, nil)
	rec := doJSON(t, s.Handler(), http.MethodPost, "/api/feedback",
		map[string]any{"query": "q", "answer": "a"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func Test_Server_Stats(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, nil, nil, nil)
	rec := doJSON(t, s.Handler(), http.MethodGet, "/api/stats", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var stats rag.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Chunks != 2 || stats.Docs != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.VectorStore.Active != "memory" || stats.Generator.Active != "stub" {
		t.Fatalf("backend labels = %q/%q", stats.VectorStore.Active, stats.Generator.Active)
	}
	if stats.Degraded {
		t.Fatalf("stats degraded with no fallback: %+v", stats)
	}
}

func Test_Server_MetricsEndpointExposesCounters(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil, nil, nil, nil)
	// Generate some traffic first.
	doJSON(t, s.Handler(), http.MethodPost, "/api/ask", map[string]any{"query": "warranty"})

	rec := doJSON(t, s.Handler(), http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "polai_http_requests_total") {
		t.Fatal("missing polai_http_requests_total")
	}
	if !strings.Contains(body, "polai_ask_requests_total") {
		t.Fatal("missing polai_ask_requests_total")
	}
}
