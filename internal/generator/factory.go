package generator

import (
	"context"
	"fmt"
	"log/slog"

	einoollama "github.com/cloudwego/eino-ext/components/model/ollama"
	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/polai/polai-go/internal/budget"
	"github.com/polai/polai-go/internal/rag"
)

// Backend enumerates the supported generation providers.
type Backend string

const (
	// BackendStub selects the deterministic local generator.
	BackendStub Backend = "stub"
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
)

const defaultMaxContextTokens = budget.DefaultMaxContextTokens

// Config holds generation provider settings resolved from the config layer.
type Config struct {
	// Backend identifies which provider to use.
	Backend Backend `yaml:"backend"`

	// OllamaHost is the Ollama base URL (default: http://localhost:11434).
	OllamaHost string `yaml:"ollama_host"`
	// OllamaModel is the Ollama model name (default: llama3).
	OllamaModel string `yaml:"ollama_model"`

	// OpenAIKey is the OpenAI API key. Required for the openai backend.
	OpenAIKey string `yaml:"openai_api_key"`
	// OpenAIModel is the OpenAI model name (default: gpt-4o-mini).
	OpenAIModel string `yaml:"openai_model"`

	// MaxTokens caps the number of tokens the model may generate per answer.
	MaxTokens int `yaml:"max_tokens"`
	// Temperature controls response randomness (0.0-1.0).
	Temperature float32 `yaml:"temperature"`
	// MaxContextTokens is the input context budget for prompt trimming.
	MaxContextTokens int `yaml:"max_context_tokens"`
}

// ApplyDefaults fills zero-valued fields with production defaults.
func (c *Config) ApplyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendStub
	}
	if c.OllamaHost == "" {
		c.OllamaHost = "http://localhost:11434"
	}
	if c.OllamaModel == "" {
		c.OllamaModel = "llama3"
	}
	if c.OpenAIModel == "" {
		c.OpenAIModel = "gpt-4o-mini"
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 1000
	}
	if c.Temperature <= 0 {
		c.Temperature = 0.1
	}
	if c.MaxContextTokens <= 0 {
		c.MaxContextTokens = defaultMaxContextTokens
	}
}

// New constructs the configured generator. Provider construction failures
// degrade to the stub with a warning rather than failing startup — the
// service stays answerable, just at stub quality. The returned
// rag.ServiceStatus records the requested vs active provider and is marked
// degraded after a fallback.
func New(ctx context.Context, cfg *Config, log *slog.Logger) (rag.Generator, rag.ServiceStatus) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.ApplyDefaults()
	if log == nil {
		log = slog.Default()
	}

	var (
		m   model.ToolCallingChatModel
		err error
	)
	switch cfg.Backend {
	case BackendStub:
		return NewStub(), rag.ServiceStatus{
			Requested: string(BackendStub),
			Active:    string(BackendStub),
		}
	case BackendOllama:
		m, err = newOllama(ctx, cfg)
	case BackendOpenAI:
		m, err = newOpenAI(ctx, cfg)
	default:
		err = fmt.Errorf("generator: unknown backend %q (valid: stub, ollama, openai)", cfg.Backend)
	}

	if err != nil {
		log.Warn("generation provider unavailable, falling back to stub",
			slog.String("backend", string(cfg.Backend)),
			slog.Any("error", err),
		)
		return NewStub(), rag.ServiceStatus{
			Requested: string(cfg.Backend),
			Active:    string(BackendStub),
			Degraded:  true,
		}
	}
	return NewModelGenerator(m, string(cfg.Backend), cfg.MaxContextTokens), rag.ServiceStatus{
		Requested: string(cfg.Backend),
		Active:    string(cfg.Backend),
	}
}

// newOllama constructs a chat model backed by a local Ollama instance.
func newOllama(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	v, err := einoollama.NewChatModel(ctx, &einoollama.ChatModelConfig{
		BaseURL: cfg.OllamaHost,
		Model:   cfg.OllamaModel,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: ollama: %w", err)
	}
	return v, nil
}

// newOpenAI constructs a chat model backed by the OpenAI API.
func newOpenAI(ctx context.Context, cfg *Config) (model.ToolCallingChatModel, error) {
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("generator: openai backend requires an API key")
	}
	v, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		Model:       cfg.OpenAIModel,
		APIKey:      cfg.OpenAIKey,
		MaxTokens:   &cfg.MaxTokens,
		Temperature: &cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: openai: %w", err)
	}
	return v, nil
}
