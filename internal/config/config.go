// Package config provides YAML-based configuration for polai.
// Configuration is loaded with a layered precedence: defaults → YAML file → env vars.
// Environment variables always win, so existing workflows are unaffected.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. POLAI_CONFIG environment variable
//  3. ~/.polai/config.yaml
//  4. ./polai.yaml
//
// If no file is found the system runs entirely from env vars (backwards compatible).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure.
// Field names use yaml tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Generator configures the answer generation provider.
	Generator GeneratorConfig `yaml:"generator"`

	// Embedding configures the local embedding stage.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Qdrant configures the Qdrant vector store connection.
	Qdrant QdrantConfig `yaml:"qdrant"`

	// Retrieval configures ranking and caching.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// Ingestion configures document loading and chunking.
	Ingestion IngestionConfig `yaml:"ingestion"`

	// Server configures the HTTP server.
	Server ServerConfig `yaml:"server"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Feedback configures answer feedback persistence.
	Feedback FeedbackConfig `yaml:"feedback"`

	// Tracing configures Langfuse tracing integration.
	Tracing TracingConfig `yaml:"tracing"`
}

// GeneratorConfig holds answer generation provider settings.
type GeneratorConfig struct {
	// Backend selects the provider: stub, ollama, openai.
	Backend string `yaml:"backend"`

	// MaxTokens is the maximum number of tokens in the response.
	MaxTokens int `yaml:"max_tokens"`

	// Temperature controls response randomness (0.0–1.0).
	Temperature float32 `yaml:"temperature"`

	// MaxContextTokens is the input context budget for prompt trimming.
	MaxContextTokens int `yaml:"max_context_tokens"`

	// Ollama holds Ollama-specific settings.
	Ollama OllamaConfig `yaml:"ollama"`

	// OpenAI holds OpenAI-specific settings.
	OpenAI OpenAIConfig `yaml:"openai"`
}

// OllamaConfig holds Ollama provider settings.
type OllamaConfig struct {
	// Host is the Ollama API endpoint.
	Host string `yaml:"host"`
	// Model is the Ollama model name.
	Model string `yaml:"model"`
}

// OpenAIConfig holds OpenAI provider settings.
type OpenAIConfig struct {
	// APIKey is the OpenAI API key. Prefer env var OPENAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// Model is the OpenAI model name.
	Model string `yaml:"model"`
}

// EmbeddingConfig holds local embedding settings.
type EmbeddingConfig struct {
	// Dimensions is the embedding vector size. Changing it requires
	// re-ingesting all documents.
	Dimensions int `yaml:"dimensions"`
}

// QdrantConfig holds Qdrant vector store settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// Collection is the Qdrant collection name.
	Collection string `yaml:"collection"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// RetrievalConfig holds ranking and cache settings.
type RetrievalConfig struct {
	// Backend selects the vector store: qdrant, memory.
	Backend string `yaml:"backend"`
	// TopK is the default number of chunks per retrieval.
	TopK int `yaml:"top_k"`
	// Lambda is the MMR relevance/diversity trade-off in [0,1].
	Lambda float32 `yaml:"lambda"`
	// RetrievalCacheSize bounds the retrieval cache.
	RetrievalCacheSize int `yaml:"retrieval_cache_size"`
	// GenerationCacheSize bounds the generation cache.
	GenerationCacheSize int `yaml:"generation_cache_size"`
}

// IngestionConfig holds document loading and chunking settings.
type IngestionConfig struct {
	// DataDir is the directory of .md and .txt documents to ingest.
	DataDir string `yaml:"data_dir"`
	// ChunkSize is the maximum number of whitespace tokens per chunk.
	ChunkSize int `yaml:"chunk_size"`
	// ChunkOverlap is the number of tail tokens carried into the next chunk.
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the bind address.
	Host string `yaml:"host"`
	// Port is the TCP port.
	Port int `yaml:"port"`
	// APIKey is the Bearer token for API authentication. Prefer env var POLAI_API_KEY.
	APIKey string `yaml:"api_key"`
	// RateLimitRPS is the per-client request rate limit.
	RateLimitRPS float64 `yaml:"rate_limit_rps"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// FeedbackConfig holds answer feedback persistence settings.
type FeedbackConfig struct {
	// DBPath is the SQLite database path. Set to "disabled" to disable.
	DBPath string `yaml:"db_path"`
}

// TracingConfig holds Langfuse tracing settings.
type TracingConfig struct {
	// PublicKey is the Langfuse public key. Prefer env var LANGFUSE_PUBLIC_KEY.
	PublicKey string `yaml:"public_key"`
	// SecretKey is the Langfuse secret key. Prefer env var LANGFUSE_SECRET_KEY.
	SecretKey string `yaml:"secret_key"`
	// Host is the Langfuse API host.
	Host string `yaml:"host"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"GENERATOR_BACKEND", func(c *Config) string { return c.Generator.Backend }},
	{"GENERATOR_MAX_TOKENS", func(c *Config) string { return intStr(c.Generator.MaxTokens) }},
	{"GENERATOR_TEMPERATURE", func(c *Config) string { return float32Str(c.Generator.Temperature) }},
	{"GENERATOR_MAX_CONTEXT_TOKENS", func(c *Config) string { return intStr(c.Generator.MaxContextTokens) }},
	{"OLLAMA_HOST", func(c *Config) string { return c.Generator.Ollama.Host }},
	{"OLLAMA_MODEL", func(c *Config) string { return c.Generator.Ollama.Model }},
	{"OPENAI_API_KEY", func(c *Config) string { return c.Generator.OpenAI.APIKey }},
	{"OPENAI_MODEL", func(c *Config) string { return c.Generator.OpenAI.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"QDRANT_HOST", func(c *Config) string { return c.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Qdrant.Port) }},
	{"QDRANT_COLLECTION", func(c *Config) string { return c.Qdrant.Collection }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Qdrant.TLS) }},
	{"VECTOR_BACKEND", func(c *Config) string { return c.Retrieval.Backend }},
	{"RETRIEVAL_TOP_K", func(c *Config) string { return intStr(c.Retrieval.TopK) }},
	{"RETRIEVAL_LAMBDA", func(c *Config) string { return float32Str(c.Retrieval.Lambda) }},
	{"RETRIEVAL_CACHE_SIZE", func(c *Config) string { return intStr(c.Retrieval.RetrievalCacheSize) }},
	{"GENERATION_CACHE_SIZE", func(c *Config) string { return intStr(c.Retrieval.GenerationCacheSize) }},
	{"DATA_DIR", func(c *Config) string { return c.Ingestion.DataDir }},
	{"CHUNK_SIZE", func(c *Config) string { return intStr(c.Ingestion.ChunkSize) }},
	{"CHUNK_OVERLAP", func(c *Config) string { return intStr(c.Ingestion.ChunkOverlap) }},
	{"SERVER_HOST", func(c *Config) string { return c.Server.Host }},
	{"SERVER_PORT", func(c *Config) string { return intStr(c.Server.Port) }},
	{"POLAI_API_KEY", func(c *Config) string { return c.Server.APIKey }},
	{"RATE_LIMIT_RPS", func(c *Config) string { return float64Str(c.Server.RateLimitRPS) }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
	{"POLAI_FEEDBACK_DB", func(c *Config) string { return c.Feedback.DBPath }},
	{"LANGFUSE_PUBLIC_KEY", func(c *Config) string { return c.Tracing.PublicKey }},
	{"LANGFUSE_SECRET_KEY", func(c *Config) string { return c.Tracing.SecretKey }},
	{"LANGFUSE_HOST", func(c *Config) string { return c.Tracing.Host }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" || yamlVal == "0" || yamlVal == "false" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("POLAI_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".polai", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("polai.yaml"); err == nil {
		return "polai.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// float32Str converts a float32 to string, returning "" for zero values.
func float32Str(v float32) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// float64Str converts a float64 to string, returning "" for zero values.
func float64Str(v float64) string {
	if v == 0 {
		return ""
	}
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
