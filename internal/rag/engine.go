package rag

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/polai/polai-go/internal/cache"
)

// Default engine tuning values. All are overridable via EngineConfig.
const (
	// DefaultTopK is the number of chunks returned when the caller passes 0.
	DefaultTopK = 4

	// poolMultiplier sizes the candidate pool handed to MMR relative to k.
	poolMultiplier = 4

	// minPoolSize floors the candidate pool so MMR has room to diversify
	// even for small k.
	minPoolSize = 20

	// DefaultRetrievalCacheSize bounds the retrieval cache. Retrieval results
	// are cheap to hold and queries repeat often.
	DefaultRetrievalCacheSize = 1000

	// DefaultGenerationCacheSize bounds the generation cache. Answers are
	// larger and free-text queries repeat less.
	DefaultGenerationCacheSize = 500

	// DefaultGenerationTimeout caps each external generation call. A timeout
	// is treated exactly like a generation failure: local fallback answer.
	DefaultGenerationTimeout = 30 * time.Second
)

// noAnswerText is returned when retrieval finds no relevant chunks. The
// generator is deliberately not called in that case — answering without
// context invites hallucinated citations.
const noAnswerText = "I couldn't find relevant information in the indexed policy and product documents to answer that question. Try rephrasing, or ask about a topic the documents cover."

// MetricsSink receives per-operation latency and cache hit/miss events from
// the engine. Implementations must be non-blocking; the engine fires and
// forgets. Use NopMetrics when no sink is wired.
type MetricsSink interface {
	// Observe records one completed operation ("retrieve" or "generate").
	Observe(op string, elapsed time.Duration, cacheHit bool)
}

// NopMetrics is a MetricsSink that discards all events.
type NopMetrics struct{}

// Observe implements MetricsSink.
func (NopMetrics) Observe(string, time.Duration, bool) {}

// retrievalKey identifies a cached retrieval result.
type retrievalKey struct {
	query string
	k     int
}

// generationKey identifies a cached generated answer. The fingerprint is an
// order-preserving concatenation of the retrieved chunk keys, so any change
// in retrieval (re-ingestion, ranking change) misses naturally instead of
// serving a stale answer.
type generationKey struct {
	query       string
	fingerprint string
}

// EngineConfig holds the tuning knobs for an Engine. Zero values select the
// package defaults.
type EngineConfig struct {
	// TopK is the default number of chunks per retrieval.
	TopK int

	// Lambda is the MMR relevance/diversity trade-off in [0,1].
	Lambda float32

	// RetrievalCacheSize is the retrieval cache capacity.
	RetrievalCacheSize int

	// GenerationCacheSize is the generation cache capacity.
	GenerationCacheSize int

	// GenerationTimeout caps each external generation call.
	GenerationTimeout time.Duration

	// Metrics receives operation latency and cache hit/miss events.
	Metrics MetricsSink

	// Logger is the structured logger. Defaults to slog.Default.
	Logger *slog.Logger

	// StoreStatus records the requested vs active vector store backend.
	// When zero it is filled from the store's own label, not degraded.
	StoreStatus ServiceStatus

	// GeneratorStatus records the requested vs active generation provider.
	// When zero it is filled from the generator's own label, not degraded.
	GeneratorStatus ServiceStatus
}

// Engine is the retrieval orchestrator: it composes the embedder, vector
// store, MMR ranker, bounded caches, and the pluggable generator into the
// three operations the API layer exposes — Index, Retrieve, and Answer.
// One Engine instance serves all requests; all shared state is internally
// synchronized.
type Engine struct {
	embedder Embedder
	store    VectorStore
	gen      Generator

	cfg EngineConfig

	retrCache *cache.LRU[retrievalKey, []ScoredChunk]
	genCache  *cache.LRU[generationKey, Answer]

	metrics MetricsSink
	log     *slog.Logger

	storeStatus ServiceStatus
	genStatus   ServiceStatus

	// mu guards docTitles.
	mu sync.Mutex
	// docTitles tracks distinct document titles seen by Index, for stats.
	docTitles map[string]struct{}
}

// NewEngine constructs an Engine from its collaborators. embedder, store, and
// gen must be non-nil; cfg may be nil for all defaults.
func NewEngine(emb Embedder, store VectorStore, gen Generator, cfg *EngineConfig) (*Engine, error) {
	if cfg == nil {
		cfg = &EngineConfig{}
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.Lambda <= 0 {
		cfg.Lambda = DefaultLambda
	}
	if cfg.RetrievalCacheSize <= 0 {
		cfg.RetrievalCacheSize = DefaultRetrievalCacheSize
	}
	if cfg.GenerationCacheSize <= 0 {
		cfg.GenerationCacheSize = DefaultGenerationCacheSize
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = DefaultGenerationTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StoreStatus.Active == "" {
		cfg.StoreStatus = ServiceStatus{Requested: store.Name(), Active: store.Name()}
	}
	if cfg.GeneratorStatus.Active == "" {
		cfg.GeneratorStatus = ServiceStatus{Requested: gen.Name(), Active: gen.Name()}
	}

	retrCache, err := cache.NewLRU[retrievalKey, []ScoredChunk](cfg.RetrievalCacheSize)
	if err != nil {
		return nil, err
	}
	genCache, err := cache.NewLRU[generationKey, Answer](cfg.GenerationCacheSize)
	if err != nil {
		return nil, err
	}

	return &Engine{
		embedder:    emb,
		store:       store,
		gen:         gen,
		cfg:         *cfg,
		retrCache:   retrCache,
		genCache:    genCache,
		metrics:     cfg.Metrics,
		log:         cfg.Logger,
		storeStatus: cfg.StoreStatus,
		genStatus:   cfg.GeneratorStatus,
		docTitles:   make(map[string]struct{}),
	}, nil
}

// Index embeds and upserts the given chunks, returning the number indexed.
// Indexing the same logical chunk twice replaces it (the second content
// wins). On success both caches are cleared so no query is answered from a
// pre-ingestion snapshot.
func (e *Engine) Index(ctx context.Context, chunks []Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors := make([][]float32, len(chunks))
	for i, ch := range chunks {
		vectors[i] = e.embedder.Embed(ch.Text)
	}

	if err := e.store.Upsert(ctx, chunks, vectors); err != nil {
		return 0, err
	}

	e.retrCache.Clear()
	e.genCache.Clear()

	e.mu.Lock()
	for _, ch := range chunks {
		e.docTitles[ch.Title] = struct{}{}
	}
	e.mu.Unlock()

	e.log.Info("indexed chunks", slog.Int("count", len(chunks)))
	return len(chunks), nil
}

// Retrieve returns the top-k chunks for query, ranked by MMR over a larger
// candidate pool from the vector store. Results are cached per
// (normalized query, k). Vector store failures degrade to an empty result —
// "no context found" is a valid outcome, not an error.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) []ScoredChunk {
	start := time.Now()
	if k <= 0 {
		k = e.cfg.TopK
	}

	query = NormalizeQuery(query)
	if query == "" {
		return nil
	}

	key := retrievalKey{query: query, k: k}
	if cached, ok := e.retrCache.Get(key); ok {
		e.metrics.Observe("retrieve", time.Since(start), true)
		return cached
	}

	pool := k * poolMultiplier
	if pool < minPoolSize {
		pool = minPoolSize
	}

	qv := e.embedder.Embed(query)
	candidates, err := e.store.Search(ctx, qv, pool)
	if err != nil {
		e.log.Error("vector search failed, returning empty result",
			slog.String("query", query),
			slog.Int("k", k),
			slog.Any("error", err),
		)
		e.metrics.Observe("retrieve", time.Since(start), false)
		return nil
	}

	// MMR compares candidates against each other; re-embedding their texts
	// is cheap and deterministic, and spares the store from returning raw
	// vectors.
	vectors := make([][]float32, len(candidates))
	for i, c := range candidates {
		vectors[i] = e.embedder.Embed(c.Text)
	}
	ranked := MMR(candidates, vectors, k, e.cfg.Lambda)

	e.retrCache.Put(key, ranked)
	e.metrics.Observe("retrieve", time.Since(start), false)
	return ranked
}

// Answer runs the full pipeline: retrieve, then generate an answer with
// citations. Generated answers are cached per (normalized query, chunk
// fingerprint). Generation failures and timeouts fall back to a local
// deterministic summary — the caller always gets a usable Answer, never an
// error.
func (e *Engine) Answer(ctx context.Context, query string, k int) Answer {
	ranked := e.Retrieve(ctx, query, k)
	if len(ranked) == 0 {
		return Answer{Text: noAnswerText}
	}

	start := time.Now()
	normalized := NormalizeQuery(query)
	key := generationKey{query: normalized, fingerprint: fingerprint(ranked)}

	if cached, ok := e.genCache.Get(key); ok {
		e.metrics.Observe("generate", time.Since(start), true)
		return cached
	}

	chunks := make([]Chunk, len(ranked))
	for i, sc := range ranked {
		chunks[i] = sc.Chunk
	}

	genCtx, cancel := context.WithTimeout(ctx, e.cfg.GenerationTimeout)
	defer cancel()

	text, err := e.gen.Generate(genCtx, normalized, chunks)
	if err != nil || strings.TrimSpace(text) == "" {
		e.log.Warn("generation failed, using local summary fallback",
			slog.String("query", normalized),
			slog.Int("k", k),
			slog.String("provider", e.gen.Name()),
			slog.Any("error", err),
		)
		ans := Answer{
			Text:      localSummary(ranked),
			Citations: Citations(chunks),
			Chunks:    ranked,
		}
		// Fallback answers are not cached so a recovered generator serves
		// real answers on the next ask.
		e.metrics.Observe("generate", time.Since(start), false)
		return ans
	}

	ans := Answer{
		Text:      text,
		Citations: Citations(chunks),
		Chunks:    ranked,
	}
	e.genCache.Put(key, ans)
	e.metrics.Observe("generate", time.Since(start), false)
	return ans
}

// ServiceStatus reports the backend a service was configured for versus the
// one actually serving it. The two differ only after a startup fallback, in
// which case Degraded is set so operators can tell "memory as requested"
// apart from "memory because qdrant was unreachable".
type ServiceStatus struct {
	// Requested is the configured backend label.
	Requested string `json:"requested"`
	// Active is the backend actually serving.
	Active string `json:"active"`
	// Degraded is true when Active is a fallback for Requested.
	Degraded bool `json:"degraded"`
}

// Stats is a point-in-time snapshot of the engine's corpus state.
type Stats struct {
	// Docs is the number of distinct document titles indexed this process.
	Docs int `json:"total_docs"`
	// Chunks is the number of chunks in the vector store.
	Chunks int `json:"total_chunks"`
	// VectorStore reports the vector store backend and its health.
	VectorStore ServiceStatus `json:"vector_store"`
	// Generator reports the generation provider and its health.
	Generator ServiceStatus `json:"generator"`
	// Degraded is true when any service is running on a fallback.
	Degraded bool `json:"degraded"`
	// RetrievalCacheEntries is the current retrieval cache size.
	RetrievalCacheEntries int `json:"retrieval_cache_entries"`
	// GenerationCacheEntries is the current generation cache size.
	GenerationCacheEntries int `json:"generation_cache_entries"`
}

// Stats reports corpus and cache state for the stats endpoint.
func (e *Engine) Stats(ctx context.Context) Stats {
	chunks, err := e.store.Count(ctx)
	if err != nil {
		e.log.Warn("stats: store count failed", slog.Any("error", err))
	}

	e.mu.Lock()
	docs := len(e.docTitles)
	e.mu.Unlock()

	return Stats{
		Docs:                   docs,
		Chunks:                 chunks,
		VectorStore:            e.storeStatus,
		Generator:              e.genStatus,
		Degraded:               e.storeStatus.Degraded || e.genStatus.Degraded,
		RetrievalCacheEntries:  e.retrCache.Len(),
		GenerationCacheEntries: e.genCache.Len(),
	}
}

// Store exposes the underlying vector store for readiness probes.
func (e *Engine) Store() VectorStore { return e.store }

// NormalizeQuery trims and collapses internal whitespace so semantically
// identical queries share cache keys.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

// Citations derives the de-duplicated (title, section) pairs from chunks,
// preserving chunk order.
func Citations(chunks []Chunk) []Citation {
	seen := make(map[Citation]struct{}, len(chunks))
	out := make([]Citation, 0, len(chunks))
	for _, ch := range chunks {
		c := Citation{Title: ch.Title, Section: ch.Section}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// fingerprint concatenates the chunk keys in ranked order. Used as the
// generation cache key component that invalidates on any retrieval change.
func fingerprint(ranked []ScoredChunk) string {
	keys := make([]string, len(ranked))
	for i, sc := range ranked {
		keys[i] = sc.Key()
	}
	return strings.Join(keys, "|")
}

// excerptLimit caps the fallback summary excerpt length.
const excerptLimit = 600

// localSummary builds a deterministic answer from chunk text alone. Used
// when the external generator fails or times out: a lower-quality best-effort
// answer beats an error for a policy assistant.
func localSummary(ranked []ScoredChunk) string {
	var b strings.Builder
	b.WriteString("Based on the following sources:\n")
	for _, sc := range ranked {
		section := sc.Section
		if section == "" {
			section = "General"
		}
		b.WriteString("- ")
		b.WriteString(sc.Title)
		b.WriteString(", ")
		b.WriteString(section)
		b.WriteString("\n")
	}

	var joined strings.Builder
	for i, sc := range ranked {
		if i > 0 {
			joined.WriteString(" ")
		}
		joined.WriteString(sc.Text)
	}
	excerpt := joined.String()
	if len(excerpt) > excerptLimit {
		excerpt = truncateText(excerpt, excerptLimit) + "..."
	}

	b.WriteString("\nSummary: ")
	b.WriteString(excerpt)
	return b.String()
}

// truncateText shortens s to at most limit bytes, backing up so a multi-byte
// UTF-8 sequence is never split mid-rune.
func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
