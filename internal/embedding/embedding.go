package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"guideline-rag/internal/config"
)

// TaskType distinguishes document ingestion from query-time embedding.
// Some models prepend a task prefix to improve retrieval quality.
type TaskType string

const (
	TaskDocument TaskType = "search_document"
	TaskQuery    TaskType = "search_query"
)

var ErrEmptyText = errors.New("embedding: text is empty")

// Port generates embedding vectors for guideline text.
type Port interface {
	Embed(ctx context.Context, text string, task TaskType) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// OllamaEmbedder wraps a langchaingo embedder backed by a local ollama
// server or an OpenAI-compatible endpoint.
type OllamaEmbedder struct {
	embedder  *embeddings.EmbedderImpl
	dimension int
}

// NewOllamaEmbedder connects to the ollama server named in cfg.
func NewOllamaEmbedder(cfg *config.LLMConfig, dimension int) (*OllamaEmbedder, error) {
	log.Debug().
		Str("base_url", cfg.BaseURL).
		Str("embedding_model", cfg.Model).
		Msg("Initializing embedder")

	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("embedding: initialize ollama client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("embedding: create embedder: %w", err)
	}
	return &OllamaEmbedder{embedder: embedder, dimension: dimension}, nil
}

// NewOpenAIEmbedder connects to an OpenAI-compatible endpoint such as
// OpenRouter. Used when no local ollama server is available.
func NewOpenAIEmbedder(cfg *config.LLMConfig, dimension int) (*OllamaEmbedder, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(cfg.Key),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("embedding: initialize openai client: %w", err)
	}
	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("embedding: create embedder: %w", err)
	}
	return &OllamaEmbedder{embedder: embedder, dimension: dimension}, nil
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string, task TaskType) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	vec, err := e.embedder.EmbedQuery(ctx, taskPrefix(task)+text)
	if err != nil {
		return nil, fmt.Errorf("embedding: embed text: %w", err)
	}
	return vec, nil
}

func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	prefixed := make([]string, len(texts))
	for i, t := range texts {
		prefixed[i] = taskPrefix(TaskDocument) + t
	}
	vecs, err := e.embedder.EmbedDocuments(ctx, prefixed)
	if err != nil {
		return nil, fmt.Errorf("embedding: embed batch: %w", err)
	}
	return vecs, nil
}

func (e *OllamaEmbedder) Dimension() int {
	return e.dimension
}

// nomic-embed-text expects a task prefix on every input.
func taskPrefix(task TaskType) string {
	switch task {
	case TaskDocument:
		return "search_document: "
	case TaskQuery:
		return "search_query: "
	default:
		return ""
	}
}
