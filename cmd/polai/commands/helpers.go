package commands

import (
	"context"
	"log/slog"
	"os"
	"strconv"

	"github.com/polai/polai-go/internal/embedder"
	"github.com/polai/polai-go/internal/generator"
	"github.com/polai/polai-go/internal/ingestion"
	"github.com/polai/polai-go/internal/rag"
)

// generatorConfigFromEnv assembles the generation backend configuration from
// the environment. config.Load has already folded any YAML values in.
func generatorConfigFromEnv() *generator.Config {
	return &generator.Config{
		Backend:          generator.Backend(getEnvOrDefault("GENERATOR_BACKEND", "stub")),
		OllamaHost:       os.Getenv("OLLAMA_HOST"),
		OllamaModel:      os.Getenv("OLLAMA_MODEL"),
		OpenAIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:      os.Getenv("OPENAI_MODEL"),
		MaxTokens:        getEnvInt("GENERATOR_MAX_TOKENS", 0),
		Temperature:      getEnvFloat32("GENERATOR_TEMPERATURE", 0),
		MaxContextTokens: getEnvInt("GENERATOR_MAX_CONTEXT_TOKENS", 0),
	}
}

// openVectorStore builds the embedder and opens the vector store selected by
// VECTOR_BACKEND. An unreachable Qdrant degrades to the in-process store.
func openVectorStore(ctx context.Context, log *slog.Logger) (*embedder.HashEmbedder, rag.VectorStore, rag.ServiceStatus) {
	emb := embedder.New(getEnvInt("EMBEDDING_DIMENSIONS", embedder.DefaultDimensions))

	store, status := rag.OpenStore(ctx, &rag.StoreConfig{
		Backend:    rag.Backend(getEnvOrDefault("VECTOR_BACKEND", string(rag.BackendQdrant))),
		Dimensions: emb.Dimensions(),
		Qdrant: rag.QdrantConfig{
			Host:       getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:       getEnvInt("QDRANT_PORT", 6334),
			Collection: getEnvOrDefault("QDRANT_COLLECTION", "polai-docs"),
			APIKey:     os.Getenv("QDRANT_API_KEY"),
			UseTLS:     os.Getenv("QDRANT_TLS") == "true",
		},
	}, log)

	return emb, store, status
}

// buildEngine wires the embedder, vector store, and generator into a
// retrieval engine configured from the environment.
func buildEngine(ctx context.Context, metrics rag.MetricsSink, log *slog.Logger) (*rag.Engine, error) {
	emb, store, storeStatus := openVectorStore(ctx, log)
	gen, genStatus := generator.New(ctx, generatorConfigFromEnv(), log)

	return rag.NewEngine(emb, store, gen, &rag.EngineConfig{
		TopK:                getEnvInt("RETRIEVAL_TOP_K", rag.DefaultTopK),
		Lambda:              getEnvFloat32("RETRIEVAL_LAMBDA", rag.DefaultLambda),
		RetrievalCacheSize:  getEnvInt("RETRIEVAL_CACHE_SIZE", 0),
		GenerationCacheSize: getEnvInt("GENERATION_CACHE_SIZE", 0),
		Metrics:             metrics,
		Logger:              log,
		StoreStatus:         storeStatus,
		GeneratorStatus:     genStatus,
	})
}

// buildPipeline constructs the ingestion pipeline over the engine using the
// chunking parameters from the environment.
func buildPipeline(engine *rag.Engine, log *slog.Logger) (*ingestion.Pipeline, error) {
	return ingestion.NewPipeline(engine, ingestion.Config{
		ChunkSize:    getEnvInt("CHUNK_SIZE", 0),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 0),
	}, log)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat32 returns the float32 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat32(key string, fallback float32) float32 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 32); err == nil {
			return float32(f)
		}
	}
	return fallback
}

// getEnvFloat64 returns the float64 value of the named environment variable,
// or fallback if the variable is unset, empty, or not parseable.
func getEnvFloat64(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
