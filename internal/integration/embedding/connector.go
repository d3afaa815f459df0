// Package embedding turns text into vectors through the OpenAI embeddings API.
package embedding

import (
	"context"
	"fmt"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/integration/common"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/openai/openai-go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Connector struct {
	config  config.OpenAIConfig
	client  *openai.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewConnector(cfg config.OpenAIConfig, client *openai.Client, logger *zap.Logger) *Connector {
	limit := rate.Inf
	if cfg.EmbeddingRequestsPerSecond > 0 {
		limit = rate.Limit(cfg.EmbeddingRequestsPerSecond)
	}
	if cfg.EmbeddingBatchSize <= 0 {
		cfg.EmbeddingBatchSize = 100
	}

	return &Connector{
		config:  cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

func (c *Connector) Dimension() int {
	return c.config.EmbeddingDimension
}

// Embed returns one vector per text, in order. Failures wrap entity.ErrEmbeddingFailed.
func (c *Connector) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.config.EmbeddingBatchSize {
		end := min(start+c.config.EmbeddingBatchSize, len(texts))

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", entity.ErrEmbeddingFailed, err)
		}

		batch, err := c.embedBatch(ctx, texts[start:end])
		if err != nil {
			ctxzap.Error(ctx, "embedding batch failed",
				zap.Int("batch_start", start),
				zap.Int("batch_size", end-start),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%w: batch %d-%d: %w", entity.ErrEmbeddingFailed, start, end, err)
		}
		vectors = append(vectors, batch...)
	}

	ctxzap.Debug(ctx, "texts embedded", zap.Int("count", len(vectors)))
	return vectors, nil
}

func (c *Connector) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return common.CallOpenAI(ctx, &c.config.EmbeddingRetry, func(ctx context.Context) ([][]float32, error) {
		resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model:      openai.EmbeddingModel(c.config.EmbeddingModel),
			Dimensions: openai.Int(int64(c.config.EmbeddingDimension)),
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Data) != len(texts) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
		}

		out := make([][]float32, len(resp.Data))
		for _, d := range resp.Data {
			if int(d.Index) >= len(out) {
				return nil, fmt.Errorf("embedding index %d out of range", d.Index)
			}
			out[d.Index] = toFloat32(d.Embedding)
		}
		return out, nil
	})
}

func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
