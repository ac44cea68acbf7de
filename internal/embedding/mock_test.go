package embedding_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"guideline-rag/internal/embedding"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := embedding.NewMockEmbedder(16)
	ctx := context.Background()

	a, err := m.Embed(ctx, "haemoptysis in adults over 40", embedding.TaskQuery)
	require.NoError(t, err)
	b, err := m.Embed(ctx, "haemoptysis in adults over 40", embedding.TaskDocument)
	require.NoError(t, err)

	assert.Equal(t, a, b, "same text must always produce the same vector")
	assert.Len(t, a, 16)

	c, err := m.Embed(ctx, "rectal bleeding", embedding.TaskQuery)
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "different texts must produce different vectors")
}

func TestMockEmbedder_VectorsAreUnitLength(t *testing.T) {
	m := embedding.NewMockEmbedder(32)

	vec, err := m.Embed(context.Background(), "unexplained weight loss", embedding.TaskDocument)
	require.NoError(t, err)

	var norm float64
	for _, x := range vec {
		assert.GreaterOrEqual(t, float64(x), -1.0)
		assert.LessOrEqual(t, float64(x), 1.0)
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-6)
}

func TestMockEmbedder_EmptyText(t *testing.T) {
	m := embedding.NewMockEmbedder(8)
	ctx := context.Background()

	_, err := m.Embed(ctx, "", embedding.TaskQuery)
	assert.ErrorIs(t, err, embedding.ErrEmptyText)

	vecs, err := m.EmbedBatch(ctx, []string{"cough", "", "fatigue"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, make([]float32, 8), vecs[1], "empty text gets a zero vector to keep positions aligned")
	assert.NotEqual(t, vecs[0], vecs[2])
}
