// Package vectorindex stores chunk vectors and answers cosine similarity queries.
//
// Scores are cosine similarity in [-1, 1]; higher is closer. A similarity floor of 0.55
// corresponds to a cosine distance threshold of 0.45.
//
// Writes go through a Stage: chunks are written under a fresh generation id that queries
// cannot see, and Commit flips the document's active generation in one step. The replaced
// generation stays stored until Release, so Abort can still flip back to it and a query
// that resolved the old pointer still finds every old chunk. A query therefore sees either
// the old complete chunk set or the new one.
package vectorindex

import (
	"context"
	"math"
	"sort"

	"github.com/futig/safeguard-backend/internal/entity"
)

const (
	BackendMemory   = "memory"
	BackendPGVector = "pgvector"
	BackendQdrant   = "qdrant"
)

// Index is a per-document vector store.
type Index interface {
	// Stage opens a shadow generation for documentID.
	Stage(ctx context.Context, documentID string) (Stage, error)
	// DeleteByDocument makes every chunk of documentID unretrievable at once.
	DeleteByDocument(ctx context.Context, documentID string) error
	// ChunkCount reports how many chunks of documentID are retrievable.
	ChunkCount(ctx context.Context, documentID string) (int, error)
	// Query returns at most topK passages scoring at least floor, best first.
	Query(ctx context.Context, vector []float32, topK int, floor float64) ([]entity.Passage, error)
	Stats(ctx context.Context) (*entity.IndexStats, error)
	Backend() string
}

// Stage collects the chunks of one generation until Commit or Abort.
type Stage interface {
	Generation() string
	Upsert(ctx context.Context, chunk entity.Chunk) error
	// Commit makes the staged generation the live one. The generation it replaces is kept.
	Commit(ctx context.Context) error
	// Release drops the replaced generation once the commit is final.
	Release(ctx context.Context) error
	// Abort discards the staged generation. After Commit it also restores the replaced
	// generation, or hides the document when there was none.
	Abort(ctx context.Context) error
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 if either is zero.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SortPassages orders by descending score, then document id and chunk index ascending.
func SortPassages(passages []entity.Passage) {
	sort.SliceStable(passages, func(i, j int) bool {
		a, b := passages[i], passages[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.DocumentID != b.DocumentID {
			return a.DocumentID < b.DocumentID
		}
		return a.ChunkIndex < b.ChunkIndex
	})
}
