// Package retriever turns a query into a ranked, deduplicated set of grounding passages.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/vectorindex"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type Searcher interface {
	Query(ctx context.Context, vector []float32, topK int, floor float64) ([]entity.Passage, error)
}

type Config struct {
	TopK            int
	SimilarityFloor float64
}

type Retriever struct {
	embedder Embedder
	index    Searcher
	cfg      Config
}

func New(embedder Embedder, index Searcher, cfg Config) *Retriever {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	return &Retriever{embedder: embedder, index: index, cfg: cfg}
}

// Retrieve embeds query and returns at most TopK passages above the similarity floor.
// An empty result is not an error: the set comes back with Grounded false.
func (r *Retriever) Retrieve(ctx context.Context, query string) (*entity.PassageSet, error) {
	set := &entity.PassageSet{Query: query}
	if strings.TrimSpace(query) == "" {
		return set, nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 query vector, got %d", entity.ErrEmbeddingFailed, len(vectors))
	}

	// over-fetch so deduplication cannot starve the result below TopK
	candidates, err := r.index.Query(ctx, vectors[0], r.cfg.TopK*2, r.cfg.SimilarityFloor)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	set.Passages = r.rank(candidates)
	set.Grounded = len(set.Passages) > 0

	ctxzap.Info(ctx, "passages retrieved",
		zap.Int("candidates", len(candidates)),
		zap.Int("passages", len(set.Passages)),
		zap.Strings("sources", set.Sources()),
	)
	return set, nil
}

// RetrieveWithContext retries once with the query prefixed by recent source titles
// when the plain query finds nothing. Used for short follow-up questions.
func (r *Retriever) RetrieveWithContext(ctx context.Context, query string, recentSources []string) (*entity.PassageSet, error) {
	set, err := r.Retrieve(ctx, query)
	if err != nil || set.Grounded || len(recentSources) == 0 {
		return set, err
	}

	augmented := strings.Join(recentSources, " ") + " " + query
	ctxzap.Info(ctx, "retrying retrieval with conversation context", zap.Strings("recent_sources", recentSources))

	retry, err := r.Retrieve(ctx, augmented)
	if err != nil {
		return nil, err
	}
	retry.Query = query
	return retry, nil
}

func (r *Retriever) rank(candidates []entity.Passage) []entity.Passage {
	type key struct {
		doc   string
		chunk int
	}

	seen := make(map[key]bool, len(candidates))
	passages := make([]entity.Passage, 0, len(candidates))
	for _, p := range candidates {
		k := key{p.DocumentID, p.ChunkIndex}
		if seen[k] || p.Score < r.cfg.SimilarityFloor {
			continue
		}
		seen[k] = true
		passages = append(passages, p)
	}

	vectorindex.SortPassages(passages)
	if len(passages) > r.cfg.TopK {
		passages = passages[:r.cfg.TopK]
	}
	return passages
}
