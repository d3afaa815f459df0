package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/pkg/textutil"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MockConnector embeds text by hashing its words into a fixed-size bag-of-words vector.
// Texts sharing vocabulary get a high cosine similarity, which is enough for local runs and tests.
type MockConnector struct {
	dimension int
	logger    *zap.Logger
}

func NewMockConnector(dimension int, logger *zap.Logger) *MockConnector {
	return &MockConnector{dimension: dimension, logger: logger}
}

func (m *MockConnector) Dimension() int {
	return m.dimension
}

func (m *MockConnector) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctxzap.Debug(ctx, "[MOCK] embedding texts", zap.Int("count", len(texts)))

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.vector(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", entity.ErrEmbeddingFailed, err)
		}
		vectors[i] = v
	}
	return vectors, nil
}

func (m *MockConnector) vector(text string) ([]float32, error) {
	if m.dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", m.dimension)
	}

	v := make([]float32, m.dimension)
	var norm float64
	for _, w := range textutil.ContentWords(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(m.dimension)]++
	}
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v, nil
	}

	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v, nil
}
