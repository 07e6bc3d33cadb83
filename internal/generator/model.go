package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/polai/polai-go/internal/rag"
)

// ModelGenerator adapts an eino chat model to the engine's Generator
// interface. It owns prompt construction and context trimming; retries and
// fallback policy live in the engine.
type ModelGenerator struct {
	model            model.ToolCallingChatModel
	name             string
	maxContextTokens int
}

// NewModelGenerator wraps an eino chat model. name labels the backend in
// logs and stats ("ollama", "openai").
func NewModelGenerator(m model.ToolCallingChatModel, name string, maxContextTokens int) *ModelGenerator {
	if maxContextTokens <= 0 {
		maxContextTokens = defaultMaxContextTokens
	}
	return &ModelGenerator{model: m, name: name, maxContextTokens: maxContextTokens}
}

// Generate asks the chat model to answer query from the given context
// chunks. An empty model response is an error so the engine's fallback
// policy applies.
func (g *ModelGenerator) Generate(ctx context.Context, query string, chunks []rag.Chunk) (string, error) {
	chunks = dedupeChunks(chunks)
	if len(chunks) == 0 {
		return "", fmt.Errorf("generator %s: no context chunks", g.name)
	}

	msgs := []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(buildUserPrompt(query, chunks, g.maxContextTokens)),
	}

	resp, err := g.model.Generate(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("generator %s: %w", g.name, err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("generator %s: model returned empty content", g.name)
	}
	return text, nil
}

// Name returns the backend label.
func (g *ModelGenerator) Name() string { return g.name }
