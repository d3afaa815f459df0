package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	pointerVectorName = "unused"
	upsertBatchSize   = 100
)

// pointerNamespace derives stable pointer point ids from document ids.
var pointerNamespace = uuid.MustParse("6f1d8c1e-5b7a-4c1f-9a53-2f0f3a9f6b21")

// QdrantConfig describes the qdrant connection and collections.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
	// RetireGrace delays deletion of replaced generations. Zero means 30s.
	RetireGrace time.Duration
}

// QdrantIndex stores chunks in one collection and the active generation of every
// document in a companion pointer collection. Qdrant has no multi-point transactions,
// so a commit is a single pointer upsert; queries filter on the pointed-to generations.
// A query reads the pointers and the chunks in two calls, so replaced generations are
// deleted only after a grace period.
type QdrantIndex struct {
	client             *qdrant.Client
	collection         string
	pointersCollection string
	dimension          int
	retired            *collector
}

var _ Index = &QdrantIndex{}

// NewQdrantIndex connects, waits for qdrant to become healthy and ensures both collections.
func NewQdrantIndex(ctx context.Context, cfg QdrantConfig) (*QdrantIndex, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: qdrant index needs a positive dimension", entity.ErrInvalidParameter)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	idx := &QdrantIndex{
		client:             client,
		collection:         cfg.Collection,
		pointersCollection: cfg.Collection + "_generations",
		dimension:          cfg.Dimension,
		retired:            newCollector(cfg.RetireGrace),
	}

	if err := idx.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant unreachable: %w", err)
	}
	if err := idx.ensureCollections(ctx); err != nil {
		client.Close()
		return nil, err
	}

	return idx, nil
}

func (q *QdrantIndex) Backend() string {
	return BackendQdrant
}

// Close collects pending retired generations and closes the gRPC connection.
func (q *QdrantIndex) Close() error {
	q.retired.Close()
	return q.client.Close()
}

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 20 * time.Second
	return b
}

func (q *QdrantIndex) healthCheckWithRetry(ctx context.Context) error {
	operation := func() error {
		result, err := q.client.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if result == nil || result.Title == "" {
			return fmt.Errorf("health check returned invalid response")
		}
		return nil
	}
	return backoff.Retry(operation, backoff.WithContext(newBackoff(), ctx))
}

func (q *QdrantIndex) ensureCollections(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", q.collection, err)
	}
	if !exists {
		err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(q.dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("create collection %s: %w", q.collection, err)
		}
		for _, field := range []string{"document_id", "generation", "generation_key"} {
			_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
				CollectionName: q.collection,
				FieldName:      field,
				FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
			})
			if err != nil {
				return fmt.Errorf("create index for field %s: %w", field, err)
			}
		}
	}

	exists, err = q.client.CollectionExists(ctx, q.pointersCollection)
	if err != nil {
		return fmt.Errorf("check collection %s: %w", q.pointersCollection, err)
	}
	if !exists {
		// Pointer points carry no vector; the named vector only satisfies collection config.
		err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: q.pointersCollection,
			VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
				pointerVectorName: {Size: 1, Distance: qdrant.Distance_Dot},
			}),
		})
		if err != nil {
			return fmt.Errorf("create collection %s: %w", q.pointersCollection, err)
		}
	}

	return nil
}

type qdrantPointer struct {
	documentID string
	generation string
	title      string
}

func generationKey(documentID, generation string) string {
	return documentID + "/" + generation
}

// pointer reads the committed pointer of one document. It returns nil when there is none.
func (q *QdrantIndex) pointer(ctx context.Context, documentID string) (*qdrantPointer, error) {
	points, err := q.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: q.pointersCollection,
		Ids:            []*qdrant.PointId{pointerID(documentID)},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("read generation pointer of %s: %w", documentID, err)
	}
	if len(points) == 0 {
		return nil, nil
	}
	return &qdrantPointer{
		documentID: documentID,
		generation: points[0].Payload["generation"].GetStringValue(),
		title:      points[0].Payload["source_title"].GetStringValue(),
	}, nil
}

func (q *QdrantIndex) writePointer(ctx context.Context, p qdrantPointer) error {
	point := &qdrant.PointStruct{
		Id:      pointerID(p.documentID),
		Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{}),
		Payload: qdrant.NewValueMap(map[string]any{
			"document_id":  p.documentID,
			"generation":   p.generation,
			"source_title": p.title,
			"committed_at": time.Now().UTC().Format(time.RFC3339),
		}),
	}
	return q.upsertWithRetry(ctx, q.pointersCollection, []*qdrant.PointStruct{point})
}

func (q *QdrantIndex) deletePointer(ctx context.Context, documentID string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.pointersCollection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelector(pointerID(documentID)),
	})
	if err != nil {
		return fmt.Errorf("delete generation pointer: %w", err)
	}
	return nil
}

// retire schedules deletion of one generation's chunks.
func (q *QdrantIndex) retire(ctx context.Context, documentID, generation string) {
	key := generationKey(documentID, generation)
	q.retired.schedule(ctx, key, func(ctx context.Context) error {
		return q.deleteChunks(ctx, &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("generation_key", key)},
		})
	})
}

// pointers reads every committed generation pointer.
func (q *QdrantIndex) pointers(ctx context.Context) ([]qdrantPointer, error) {
	var (
		result []qdrantPointer
		offset *qdrant.PointId
	)
	batch := uint32(256)

	for {
		points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.pointersCollection,
			Limit:          qdrant.PtrOf(batch),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("scroll generation pointers: %w", err)
		}

		for _, p := range points {
			result = append(result, qdrantPointer{
				documentID: p.Payload["document_id"].GetStringValue(),
				generation: p.Payload["generation"].GetStringValue(),
				title:      p.Payload["source_title"].GetStringValue(),
			})
		}

		if uint32(len(points)) < batch {
			break
		}
		offset = points[len(points)-1].Id
	}

	return result, nil
}

func (q *QdrantIndex) Stage(_ context.Context, documentID string) (Stage, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id", entity.ErrMissingField)
	}
	return &qdrantStage{
		index:      q,
		documentID: documentID,
		generation: uuid.NewString(),
	}, nil
}

// DeleteByDocument removes the pointer, which hides the document in one write.
// Its chunks are collected after the grace period.
func (q *QdrantIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	current, err := q.pointer(ctx, documentID)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}

	if err := q.deletePointer(ctx, documentID); err != nil {
		return err
	}
	q.retire(ctx, documentID, current.generation)
	return nil
}

func (q *QdrantIndex) deleteChunks(ctx context.Context, filter *qdrant.Filter) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func (q *QdrantIndex) ChunkCount(ctx context.Context, documentID string) (int, error) {
	current, err := q.pointer(ctx, documentID)
	if err != nil {
		return 0, err
	}
	if current == nil {
		return 0, nil
	}

	count, err := q.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: q.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("generation_key", generationKey(documentID, current.generation))},
		},
		Exact: qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("count chunks of %s: %w", documentID, err)
	}
	return int(count), nil
}

func (q *QdrantIndex) Query(ctx context.Context, vector []float32, topK int, floor float64) ([]entity.Passage, error) {
	if topK <= 0 {
		return nil, nil
	}
	if len(vector) != q.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d", entity.ErrDimensionMismatch, len(vector), q.dimension)
	}

	pointers, err := q.pointers(ctx)
	if err != nil {
		return nil, err
	}
	if len(pointers) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(pointers))
	for _, p := range pointers {
		keys = append(keys, generationKey(p.documentID, p.generation))
	}

	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchKeywords("generation_key", keys...)},
		},
		ScoreThreshold: qdrant.PtrOf(float32(floor)),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}

	passages := make([]entity.Passage, 0, len(results))
	for _, r := range results {
		passages = append(passages, entity.Passage{
			DocumentID:  r.Payload["document_id"].GetStringValue(),
			ChunkIndex:  int(r.Payload["chunk_index"].GetIntegerValue()),
			Text:        r.Payload["content"].GetStringValue(),
			SourceTitle: r.Payload["source_title"].GetStringValue(),
			Score:       float64(r.Score),
		})
	}

	SortPassages(passages)
	return passages, nil
}

func (q *QdrantIndex) Stats(ctx context.Context) (*entity.IndexStats, error) {
	pointers, err := q.pointers(ctx)
	if err != nil {
		return nil, err
	}

	stats := &entity.IndexStats{Titles: []string{}}
	seen := make(map[string]bool)
	for _, p := range pointers {
		count, err := q.client.Count(ctx, &qdrant.CountPoints{
			CollectionName: q.collection,
			Filter: &qdrant.Filter{
				Must: []*qdrant.Condition{qdrant.NewMatch("generation_key", generationKey(p.documentID, p.generation))},
			},
			Exact: qdrant.PtrOf(true),
		})
		if err != nil {
			return nil, fmt.Errorf("count chunks of %s: %w", p.documentID, err)
		}
		if count == 0 {
			continue
		}

		stats.DocumentCount++
		stats.ChunkCount += int(count)
		if !seen[p.title] {
			seen[p.title] = true
			stats.Titles = append(stats.Titles, p.title)
		}
	}
	sort.Strings(stats.Titles)

	return stats, nil
}

func pointerID(documentID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(pointerNamespace, []byte(documentID)).String())
}

func chunkID(documentID, generation string, index int) *qdrant.PointId {
	name := fmt.Sprintf("%s/%s/%d", documentID, generation, index)
	return qdrant.NewIDUUID(uuid.NewSHA1(pointerNamespace, []byte(name)).String())
}

func (q *QdrantIndex) upsertWithRetry(ctx context.Context, collection string, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(newBackoff(), ctx))
}

type qdrantStage struct {
	index      *QdrantIndex
	documentID string
	generation string

	mu        sync.Mutex
	closed    bool
	committed bool
	released  bool
	title     string
	pending   []*qdrant.PointStruct
	// pointer replaced by Commit, nil for a new document
	previous *qdrantPointer
}

func (s *qdrantStage) Generation() string {
	return s.generation
}

// Upsert buffers points and flushes them in batches under the staged generation.
func (s *qdrantStage) Upsert(ctx context.Context, chunk entity.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStageClosed
	}
	if chunk.DocumentID != s.documentID {
		return fmt.Errorf("%w: chunk belongs to %q, stage is for %q", entity.ErrInvalidParameter, chunk.DocumentID, s.documentID)
	}
	if len(chunk.Vector) != s.index.dimension {
		return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
			entity.ErrDimensionMismatch, chunk.Index, len(chunk.Vector), s.index.dimension)
	}

	if s.title == "" {
		s.title = chunk.SourceTitle
	}
	s.pending = append(s.pending, &qdrant.PointStruct{
		Id:      chunkID(s.documentID, s.generation, chunk.Index),
		Vectors: qdrant.NewVectors(chunk.Vector...),
		Payload: qdrant.NewValueMap(map[string]any{
			"document_id":    s.documentID,
			"generation":     s.generation,
			"generation_key": generationKey(s.documentID, s.generation),
			"chunk_index":    chunk.Index,
			"content":        chunk.Text,
			"source_title":   chunk.SourceTitle,
		}),
	})

	if len(s.pending) >= upsertBatchSize {
		return s.flush(ctx)
	}
	return nil
}

func (s *qdrantStage) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.index.upsertWithRetry(ctx, s.index.collection, s.pending); err != nil {
		return fmt.Errorf("upsert %d chunks: %w", len(s.pending), err)
	}
	s.pending = s.pending[:0]
	return nil
}

// Commit flushes and flips the pointer. The replaced generation stays until Release.
func (s *qdrantStage) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStageClosed
	}
	if err := s.flush(ctx); err != nil {
		return err
	}
	s.closed = true

	previous, err := s.index.pointer(ctx, s.documentID)
	if err != nil {
		return err
	}

	err = s.index.writePointer(ctx, qdrantPointer{
		documentID: s.documentID,
		generation: s.generation,
		title:      s.title,
	})
	if err != nil {
		return fmt.Errorf("switch generation: %w", err)
	}

	s.committed = true
	s.previous = previous
	return nil
}

// Release hands the replaced generation to the collector.
func (s *qdrantStage) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.committed {
		return nil
	}
	s.committed = false
	s.released = true
	if s.previous != nil && s.previous.generation != s.generation {
		s.index.retire(ctx, s.documentID, s.previous.generation)
	}
	s.previous = nil
	return nil
}

func (s *qdrantStage) Abort(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}
	s.closed = true
	s.pending = nil

	if !s.committed {
		// never visible, safe to drop at once
		return s.index.deleteChunks(ctx, &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("generation_key", generationKey(s.documentID, s.generation))},
		})
	}

	s.committed = false
	var err error
	if s.previous == nil {
		err = s.index.deletePointer(ctx, s.documentID)
	} else {
		err = s.index.writePointer(ctx, *s.previous)
	}
	if err != nil {
		return fmt.Errorf("restore generation pointer: %w", err)
	}
	s.index.retire(ctx, s.documentID, s.generation)
	return nil
}
