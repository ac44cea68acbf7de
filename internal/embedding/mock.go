package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
)

// MockEmbedder produces deterministic pseudo-random vectors seeded from the
// input text. Identical texts always map to identical vectors, so retrieval
// behaviour is reproducible without a model server.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	return &MockEmbedder{dimension: dimension}
}

func (m *MockEmbedder) Embed(_ context.Context, text string, _ TaskType) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}
	return m.vectorFor(text), nil
}

// EmbedBatch never fails: empty texts get a zero vector so positions stay
// aligned with the input.
func (m *MockEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		if t == "" {
			vecs[i] = make([]float32, m.dimension)
			continue
		}
		vecs[i] = m.vectorFor(t)
	}
	return vecs, nil
}

func (m *MockEmbedder) Dimension() int {
	return m.dimension
}

func (m *MockEmbedder) vectorFor(text string) []float32 {
	h := fnv.New64a()
	h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	vec := make([]float32, m.dimension)
	var norm float64
	for i := range vec {
		vec[i] = float32(rng.Float64()*2 - 1)
		norm += float64(vec[i]) * float64(vec[i])
	}
	// Normalize so cosine similarity behaves like the real model.
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec
}
