package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"guideline-rag/internal/embedding"
	"guideline-rag/internal/models"
)

var ErrEmptyQuery = errors.New("retrieval: query is empty")

// Searcher is the slice of the vector index the pipeline needs.
type Searcher interface {
	Search(ctx context.Context, queryVector []float32, topK int, filter map[string]string) ([]models.SearchResult, error)
	Count() int
}

// Config tunes retrieval behaviour.
type Config struct {
	TopK                int
	SimilarityThreshold float64
}

// Pipeline turns a free-text query into threshold-filtered guideline chunks.
type Pipeline struct {
	embedder embedding.Port
	index    Searcher
	cfg      Config
}

func NewPipeline(embedder embedding.Port, index Searcher, cfg Config) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Pipeline{embedder: embedder, index: index, cfg: cfg}
}

// Retrieve embeds the query, searches the index and drops results scoring
// below the similarity threshold. A score exactly at the threshold is kept.
// topK <= 0 falls back to the configured default.
func (p *Pipeline) Retrieve(ctx context.Context, query string, topK int, filter map[string]string) ([]models.RetrievedChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = p.cfg.TopK
	}

	queryVector, err := p.embedder.Embed(ctx, query, embedding.TaskQuery)
	if err != nil {
		return nil, fmt.Errorf("retrieval: embed query: %w", err)
	}

	results, err := p.index.Search(ctx, queryVector, topK, filter)
	if err != nil {
		return nil, fmt.Errorf("retrieval: search index: %w", err)
	}

	chunks := make([]models.RetrievedChunk, 0, len(results))
	for _, r := range results {
		if r.SimilarityScore < p.cfg.SimilarityThreshold {
			continue
		}
		chunks = append(chunks, models.RetrievedChunk{
			ChunkID:         r.ChunkID,
			Content:         r.Content,
			Metadata:        metadataFromMap(r.ChunkID, r.Metadata),
			SimilarityScore: r.SimilarityScore,
		})
	}

	log.Debug().
		Str("query", query).
		Int("candidates", len(results)).
		Int("kept", len(chunks)).
		Msg("Retrieved guideline chunks")
	return chunks, nil
}

// FormattedResults bundles retrieval output with its LLM-ready rendering.
type FormattedResults struct {
	Chunks      []models.RetrievedChunk `json:"chunks"`
	ContextText string                  `json:"context_text"`
	Citations   []models.Citation       `json:"citations"`
}

// SearchAndFormat retrieves chunks and renders them as prompt context plus
// ordered citations.
func (p *Pipeline) SearchAndFormat(ctx context.Context, query string, topK int) (FormattedResults, error) {
	chunks, err := p.Retrieve(ctx, query, topK, nil)
	if err != nil {
		return FormattedResults{}, err
	}
	return FormattedResults{
		Chunks:      chunks,
		ContextText: FormatContextForLLM(chunks, true),
		Citations:   FormatCitations(chunks),
	}, nil
}

// HealthStatus reports end-to-end readiness of the retrieval path.
type HealthStatus struct {
	Healthy       bool   `json:"healthy"`
	EmbeddingOK   bool   `json:"embedding_ok"`
	IndexOK       bool   `json:"index_ok"`
	IndexedChunks int    `json:"indexed_chunks"`
	ProbeResults  int    `json:"probe_results"`
	Error         string `json:"error,omitempty"`
}

// HealthCheck runs a fixed probe query through the whole pipeline.
func (p *Pipeline) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{IndexedChunks: p.index.Count(), IndexOK: true}

	vec, err := p.embedder.Embed(ctx, "cancer referral criteria", embedding.TaskQuery)
	if err != nil {
		status.Error = fmt.Sprintf("embedding: %v", err)
		return status
	}
	status.EmbeddingOK = true

	results, err := p.index.Search(ctx, vec, 1, nil)
	if err != nil {
		status.IndexOK = false
		status.Error = fmt.Sprintf("index: %v", err)
		return status
	}
	status.ProbeResults = len(results)
	status.Healthy = true
	return status
}

func metadataFromMap(chunkID string, m map[string]string) models.DocumentMetadata {
	meta := models.DocumentMetadata{
		ChunkID:      chunkID,
		SectionTitle: m[models.MetaSectionTitle],
		Source:       m[models.MetaSource],
	}
	if page, err := strconv.Atoi(m[models.MetaPageNumber]); err == nil {
		meta.PageNumber = page
	}
	if meta.Source == "" {
		meta.Source = models.GuidelineSource
	}
	return meta
}
