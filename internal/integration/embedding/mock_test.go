package embedding

import (
	"context"
	"testing"

	"github.com/futig/safeguard-backend/internal/vectorindex"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMockConnector_SimilarTextsScoreHigh(t *testing.T) {
	m := NewMockConnector(1536, zap.NewNop())

	vectors, err := m.Embed(context.Background(), []string{
		"Welding requires shade 10-13 helmet, gloves, apron.",
		"what helmet shade for welding",
		"forklift battery charging area ventilation",
	})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	related := vectorindex.CosineSimilarity(vectors[0], vectors[1])
	unrelated := vectorindex.CosineSimilarity(vectors[0], vectors[2])

	assert.Greater(t, related, 0.55)
	assert.Less(t, unrelated, 0.2)
}

func TestMockConnector_Deterministic(t *testing.T) {
	m := NewMockConnector(64, zap.NewNop())

	a, err := m.Embed(context.Background(), []string{"Lockout tagout steps"})
	require.NoError(t, err)
	b, err := m.Embed(context.Background(), []string{"lockout   TAGOUT steps"})
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a[0], 64)
	assert.InDelta(t, 1.0, vectorindex.CosineSimilarity(a[0], a[0]), 1e-6)
}

func TestMockConnector_StopwordsOnly(t *testing.T) {
	m := NewMockConnector(16, zap.NewNop())

	v, err := m.Embed(context.Background(), []string{"what is the"})
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), v[0])
}
