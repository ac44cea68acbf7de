package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"runtime"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"guideline-rag/internal/models"
)

// hardCap bounds the number of candidates a single search may return,
// mirroring the upstream ChromaDB query limit.
const hardCap = 100

var (
	ErrDimensionMismatch = errors.New("vectorindex: chunk and embedding counts or widths do not match")
	ErrInvalidQuery      = errors.New("vectorindex: query vector is empty")
	ErrNotFound          = errors.New("vectorindex: document not found")
	ErrDuplicateChunkID  = errors.New("vectorindex: duplicate chunk id in batch")
)

// Config describes a named persistent collection.
type Config struct {
	Path          string
	Collection    string
	Dimension     int
	Epsilon       float64
	InMemory      bool
	EncryptionKey string
}

// Index stores guideline chunks with their embeddings and serves
// nearest-neighbour queries with optional metadata filters.
//
// Concurrent readers are safe; writers must not run concurrently with each
// other against the same collection so that Add stays all-or-nothing.
type Index struct {
	db  *chromem.DB
	col *chromem.Collection
	cfg Config
}

// Open creates or loads the collection at cfg.Path. Persistent collections
// survive process restart.
func Open(cfg Config) (*Index, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("vectorindex: dimension must be positive, got %d", cfg.Dimension)
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = defaultEpsilon
	}

	var db *chromem.DB
	var err error
	if cfg.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("vectorindex: open database: %w", err)
		}
	}

	col, err := db.GetOrCreateCollection(cfg.Collection, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: create collection %q: %w", cfg.Collection, err)
	}

	log.Info().
		Str("collection", cfg.Collection).
		Str("path", cfg.Path).
		Int("documents", col.Count()).
		Msg("Opened vector index")

	return &Index{db: db, col: col, cfg: cfg}, nil
}

// Add inserts one document per chunk. The whole batch is validated before
// anything is written: a count or width mismatch rejects the entire call and
// an empty input is a no-op, not an error.
func (ix *Index) Add(ctx context.Context, chunks []models.TextChunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("%w: %d chunks, %d embeddings", ErrDimensionMismatch, len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		log.Warn().Msg("No chunks provided to the vector index")
		return nil
	}

	seen := make(map[string]struct{}, len(chunks))
	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		if chunk.ChunkID == "" {
			return fmt.Errorf("vectorindex: chunk %d has no id", i)
		}
		if _, dup := seen[chunk.ChunkID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateChunkID, chunk.ChunkID)
		}
		seen[chunk.ChunkID] = struct{}{}
		if len(embeddings[i]) != ix.cfg.Dimension {
			return fmt.Errorf("%w: embedding %d has %d dimensions, want %d",
				ErrDimensionMismatch, i, len(embeddings[i]), ix.cfg.Dimension)
		}
		docs[i] = chromem.Document{
			ID:        chunk.ChunkID,
			Content:   chunk.Content,
			Embedding: embeddings[i],
			Metadata:  chunkMetadata(chunk),
		}
	}

	if err := ix.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("vectorindex: add documents: %w", err)
	}

	log.Info().Int("documents", len(docs)).Msg("Added documents to vector index")
	return nil
}

// Search returns up to topK results ordered by descending similarity. The
// filter restricts candidates to documents whose metadata matches every
// key/value pair exactly.
func (ix *Index) Search(ctx context.Context, queryVector []float32, topK int, filter map[string]string) ([]models.SearchResult, error) {
	if len(queryVector) == 0 {
		return nil, ErrInvalidQuery
	}
	if isZeroVector(queryVector) {
		return nil, fmt.Errorf("%w: all components are zero", ErrInvalidQuery)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("vectorindex: topK must be positive, got %d", topK)
	}

	n := topK
	if n > hardCap {
		n = hardCap
	}
	if count := ix.col.Count(); n > count {
		n = count
	}
	if n == 0 {
		return nil, nil
	}

	results, err := ix.col.QueryEmbedding(ctx, queryVector, n, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: similarity search: %w", err)
	}

	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		// Zero-vector documents (degraded ingestion fallback) normalize to
		// NaN similarity. They carry no signal, so they never match.
		if math.IsNaN(float64(r.Similarity)) || math.IsInf(float64(r.Similarity), 0) {
			log.Warn().Str("chunk_id", r.ID).Msg("Skipping result with non-finite similarity")
			continue
		}
		distance := 1 - float64(r.Similarity)
		out = append(out, models.SearchResult{
			ChunkID:         r.ID,
			Content:         r.Content,
			Metadata:        r.Metadata,
			SimilarityScore: scoreFromDistance(distance, ix.cfg.Epsilon),
		})
	}
	return out, nil
}

// GetByID retrieves one document by chunk id. An unknown id is ErrNotFound,
// which is distinct from a search returning zero matches.
func (ix *Index) GetByID(ctx context.Context, chunkID string) (models.SearchResult, error) {
	doc, err := ix.col.GetByID(ctx, chunkID)
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("%w: %s", ErrNotFound, chunkID)
	}
	return models.SearchResult{
		ChunkID:  doc.ID,
		Content:  doc.Content,
		Metadata: doc.Metadata,
		// Direct retrieval is an exact match.
		SimilarityScore: 1.0,
	}, nil
}

// GetByMetadata returns all documents matching the filter, in no particular
// order. chromem has no filter-only listing, so this queries with a fixed
// probe vector and discards the scores.
func (ix *Index) GetByMetadata(ctx context.Context, filter map[string]string) ([]models.SearchResult, error) {
	count := ix.col.Count()
	if count == 0 {
		return nil, nil
	}

	probe := make([]float32, ix.cfg.Dimension)
	probe[0] = 1

	results, err := ix.col.QueryEmbedding(ctx, probe, count, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: metadata lookup: %w", err)
	}

	out := make([]models.SearchResult, 0, len(results))
	for _, r := range results {
		out = append(out, models.SearchResult{
			ChunkID:         r.ID,
			Content:         r.Content,
			Metadata:        r.Metadata,
			SimilarityScore: 1.0,
		})
	}
	return out, nil
}

// Count reports the number of documents in the collection.
func (ix *Index) Count() int {
	return ix.col.Count()
}

// DeleteCollection removes the collection and all its documents, then
// recreates it empty. This cannot be undone.
func (ix *Index) DeleteCollection() error {
	name := ix.col.Name
	if err := ix.db.DeleteCollection(name); err != nil {
		return fmt.Errorf("vectorindex: delete collection: %w", err)
	}
	col, err := ix.db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return fmt.Errorf("vectorindex: recreate collection: %w", err)
	}
	ix.col = col
	log.Info().Str("collection", name).Msg("Deleted vector index collection")
	return nil
}

// Export dumps the collection, embeddings included, to a portable file.
func (ix *Index) Export(path string) error {
	if path == "" {
		path = filepath.Join(ix.cfg.Path, ix.col.Name+".chromem")
	}
	if err := ix.db.ExportToFile(path, false, ix.cfg.EncryptionKey, ix.col.Name); err != nil {
		return fmt.Errorf("vectorindex: export: %w", err)
	}
	log.Info().Str("path", path).Msg("Exported vector index")
	return nil
}

func chunkMetadata(chunk models.TextChunk) map[string]string {
	return map[string]string{
		models.MetaChunkID:      chunk.ChunkID,
		models.MetaPageNumber:   strconv.Itoa(chunk.PageNumber),
		models.MetaSectionTitle: chunk.SectionTitle,
		models.MetaStartChar:    strconv.Itoa(chunk.StartChar),
		models.MetaEndChar:      strconv.Itoa(chunk.EndChar),
		models.MetaSource:       models.GuidelineSource,
	}
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
