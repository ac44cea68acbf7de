package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"guideline-rag/internal/chunker"
	"guideline-rag/internal/embedding"
	"guideline-rag/internal/models"
	"guideline-rag/internal/parser"
)

// Indexer is the write surface of the vector index.
type Indexer interface {
	Add(ctx context.Context, chunks []models.TextChunk, embeddings [][]float32) error
	Count() int
}

// Config tunes the ingestion pipeline.
type Config struct {
	BatchSize    int
	Workers      int
	ShowProgress bool
}

// Report summarizes one ingestion run. Warnings list texts that fell back
// to a zero vector after an embedding failure.
type Report struct {
	Pages    int      `json:"pages"`
	Chunks   int      `json:"chunks"`
	Indexed  int      `json:"indexed"`
	Warnings []string `json:"warnings,omitempty"`
}

// Ingestor runs the chunk, embed and index pipeline for one document.
type Ingestor struct {
	chunker  *chunker.Chunker
	embedder embedding.Port
	index    Indexer
	cfg      Config
}

func New(ch *chunker.Chunker, embedder embedding.Port, index Indexer, cfg Config) *Ingestor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Ingestor{chunker: ch, embedder: embedder, index: index, cfg: cfg}
}

// IngestFile extracts pages from the document, chunks them and writes all
// chunks with their embeddings to the index in a single atomic add.
func (ing *Ingestor) IngestFile(ctx context.Context, filePath string) (Report, error) {
	pages, err := parser.ExtractPages(filePath)
	if err != nil {
		return Report{}, fmt.Errorf("ingest: extract pages: %w", err)
	}

	var chunks []models.TextChunk
	for _, page := range pages {
		chunks = append(chunks, ing.chunker.Chunk(page.Text, page.Number)...)
	}

	report := Report{Pages: len(pages), Chunks: len(chunks)}
	if len(chunks) == 0 {
		log.Warn().Str("file", filePath).Msg("Document produced no chunks")
		return report, nil
	}

	embeddings, warnings := ing.embedAll(ctx, chunks)
	report.Warnings = warnings

	if err := ing.index.Add(ctx, chunks, embeddings); err != nil {
		return report, fmt.Errorf("ingest: index chunks: %w", err)
	}
	report.Indexed = len(chunks)

	log.Info().
		Str("file", filePath).
		Int("pages", report.Pages).
		Int("chunks", report.Chunks).
		Int("warnings", len(warnings)).
		Msg("Ingestion complete")
	return report, nil
}

// embedAll embeds chunks in fixed-size batches on a bounded worker pool.
// Results land at each chunk's original index regardless of batch
// completion order. A failing batch retries per text; a text that still
// fails gets a zero vector and a warning instead of aborting the run.
func (ing *Ingestor) embedAll(ctx context.Context, chunks []models.TextChunk) ([][]float32, []string) {
	embeddings := make([][]float32, len(chunks))
	batches := make(chan embedBatch)

	var bar *progressbar.ProgressBar
	if ing.cfg.ShowProgress {
		bar = progressbar.Default(int64(len(chunks)), "embedding chunks")
	}

	var mu sync.Mutex
	var warnings []string

	var wg sync.WaitGroup
	for w := 0; w < ing.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range batches {
				vecs, err := ing.embedder.EmbedBatch(ctx, b.texts)
				if err != nil || len(vecs) != len(b.texts) {
					vecs = ing.embedOneByOne(ctx, b, &mu, &warnings)
				}
				for i, v := range vecs {
					embeddings[b.start+i] = v
				}
				if bar != nil {
					_ = bar.Add(len(b.texts))
				}
			}
		}()
	}

	for start := 0; start < len(chunks); start += ing.cfg.BatchSize {
		end := start + ing.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Content
		}
		batches <- embedBatch{start: start, texts: texts}
	}
	close(batches)
	wg.Wait()

	return embeddings, warnings
}

type embedBatch struct {
	start int
	texts []string
}

func (ing *Ingestor) embedOneByOne(ctx context.Context, b embedBatch, mu *sync.Mutex, warnings *[]string) [][]float32 {
	vecs := make([][]float32, len(b.texts))
	for i, text := range b.texts {
		v, err := ing.embedder.Embed(ctx, text, embedding.TaskDocument)
		if err != nil {
			log.Warn().Err(err).Int("index", b.start+i).Msg("Embedding failed, substituting zero vector")
			mu.Lock()
			*warnings = append(*warnings, fmt.Sprintf("chunk %d: %v", b.start+i, err))
			mu.Unlock()
			v = make([]float32, ing.embedder.Dimension())
		}
		vecs[i] = v
	}
	return vecs
}
