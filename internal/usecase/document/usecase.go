// Package document manages the indexing lifecycle of safety documents: chunk, embed,
// stage, commit, record, then release the replaced generation. A document's chunks are
// either all in the index or none are.
package document

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/futig/safeguard-backend/internal/chunker"
	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/repository"
	"github.com/futig/safeguard-backend/internal/vectorindex"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// DocumentUsecase implements document indexing and registry operations
type DocumentUsecase struct {
	repo      repository.DocumentRepository
	index     vectorindex.Index
	chunker   *chunker.Chunker
	embedder  Embedder
	store     DocumentStore
	extractor TextExtractor
	validator FileValidator
	logger    *zap.Logger

	// one writer per document id; different documents index concurrently
	locks sync.Map
	now   func() time.Time
}

// NewUsecase creates a new document use case
func NewUsecase(
	repo repository.DocumentRepository,
	index vectorindex.Index,
	chunker *chunker.Chunker,
	embedder Embedder,
	store DocumentStore,
	extractor TextExtractor,
	validator FileValidator,
	logger *zap.Logger,
) *DocumentUsecase {
	return &DocumentUsecase{
		repo:      repo,
		index:     index,
		chunker:   chunker,
		embedder:  embedder,
		store:     store,
		extractor: extractor,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// Index creates or replaces a document and returns its chunk count.
func (uc *DocumentUsecase) Index(ctx context.Context, req *entity.IndexDocumentRequest) (*entity.IndexDocumentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := uc.lock(req.ID)
	defer unlock()

	existing, err := uc.repo.Get(ctx, req.ID)
	if err != nil && !errors.Is(err, entity.ErrDocumentNotFound) {
		return nil, fmt.Errorf("get document: %w", err)
	}

	return uc.indexLocked(ctx, req.ID, titleOr(req.Title, existing, req.ID), req.Text, existing)
}

// Reindex replaces the text of a registered document. Queries running meanwhile see
// either the old chunk set or the new one.
func (uc *DocumentUsecase) Reindex(ctx context.Context, req *entity.IndexDocumentRequest) (*entity.IndexDocumentResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	unlock := uc.lock(req.ID)
	defer unlock()

	existing, err := uc.repo.Get(ctx, req.ID)
	if err != nil {
		return nil, err
	}

	return uc.indexLocked(ctx, req.ID, titleOr(req.Title, existing, req.ID), req.Text, existing)
}

// ReindexFromStore pulls the current text of id from document storage and indexes it.
func (uc *DocumentUsecase) ReindexFromStore(ctx context.Context, id string) (*entity.IndexDocumentResponse, error) {
	req := &entity.IndexDocumentRequest{ID: id}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	stored, err := uc.store.FetchText(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch document text: %w", err)
	}

	unlock := uc.lock(id)
	defer unlock()

	existing, err := uc.repo.Get(ctx, id)
	if err != nil && !errors.Is(err, entity.ErrDocumentNotFound) {
		return nil, fmt.Errorf("get document: %w", err)
	}

	return uc.indexLocked(ctx, id, titleOr(stored.Title, existing, id), stored.Text, existing)
}

// IndexFile validates an uploaded file, extracts its text and indexes it.
func (uc *DocumentUsecase) IndexFile(ctx context.Context, id, title, filename string, content []byte) (*entity.IndexDocumentResponse, error) {
	if err := uc.validator.ValidateDocumentFile(filename, int64(len(content))); err != nil {
		return nil, err
	}

	text, err := uc.extractor.Extract(filename, content)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	ctxzap.Info(ctx, "document text extracted",
		zap.String("filename", filename),
		zap.Int("text_length", utf8.RuneCountInString(text)),
	)

	return uc.Index(ctx, &entity.IndexDocumentRequest{ID: id, Title: title, Text: text})
}

// Remove purges the chunks of id and deletes its record.
func (uc *DocumentUsecase) Remove(ctx context.Context, id string) error {
	unlock := uc.lock(id)
	defer unlock()

	if _, err := uc.repo.Get(ctx, id); err != nil {
		return err
	}

	if err := uc.index.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	if err := uc.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}

	ctxzap.Info(ctx, "document removed", zap.String("document_id", id))
	return nil
}

// Deactivate makes every chunk of id unretrievable and keeps the record as inactive.
func (uc *DocumentUsecase) Deactivate(ctx context.Context, id string) (*entity.Document, error) {
	unlock := uc.lock(id)
	defer unlock()

	doc, err := uc.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := uc.index.DeleteByDocument(ctx, id); err != nil {
		return nil, fmt.Errorf("delete chunks: %w", err)
	}

	doc.Active = false
	doc.ChunkCount = 0
	saved, err := uc.repo.Upsert(ctx, *doc)
	if err != nil {
		return nil, fmt.Errorf("save document record: %w", err)
	}

	ctxzap.Info(ctx, "document deactivated", zap.String("document_id", id))
	return saved, nil
}

func (uc *DocumentUsecase) Get(ctx context.Context, id string) (*entity.Document, error) {
	return uc.repo.Get(ctx, id)
}

func (uc *DocumentUsecase) List(ctx context.Context) ([]*entity.Document, error) {
	docs, err := uc.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

// Status reports index contents alongside the registry counts.
func (uc *DocumentUsecase) Status(ctx context.Context) (*entity.IndexStatus, error) {
	stats, err := uc.index.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("index stats: %w", err)
	}

	docs, err := uc.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	status := &entity.IndexStatus{
		IndexStats:          *stats,
		Backend:             uc.index.Backend(),
		RegisteredDocuments: len(docs),
	}
	for _, d := range docs {
		if d.Active {
			status.ActiveDocuments++
		}
	}
	return status, nil
}

// ReconcileResult counts what Reconcile changed.
type ReconcileResult struct {
	Checked     int
	Reindexed   int
	Deactivated int
}

// Reconcile compares every active record with the committed chunks in the index. A
// document whose chunks are missing or differ in number is pulled again from document
// storage; when storage cannot provide it the record is marked inactive.
func (uc *DocumentUsecase) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	docs, err := uc.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	result := &ReconcileResult{}
	for _, d := range docs {
		if !d.Active {
			continue
		}
		result.Checked++

		changed, err := uc.reconcileOne(ctx, d.ID)
		if err != nil {
			return result, err
		}
		switch changed {
		case reconcileReindexed:
			result.Reindexed++
		case reconcileDeactivated:
			result.Deactivated++
		}
	}

	if result.Reindexed > 0 || result.Deactivated > 0 {
		ctxzap.Warn(ctx, "registry reconciled with index",
			zap.Int("checked", result.Checked),
			zap.Int("reindexed", result.Reindexed),
			zap.Int("deactivated", result.Deactivated),
		)
	}
	return result, nil
}

type reconcileOutcome int

const (
	reconcileUnchanged reconcileOutcome = iota
	reconcileReindexed
	reconcileDeactivated
)

func (uc *DocumentUsecase) reconcileOne(ctx context.Context, id string) (reconcileOutcome, error) {
	unlock := uc.lock(id)
	defer unlock()

	doc, err := uc.repo.Get(ctx, id)
	if errors.Is(err, entity.ErrDocumentNotFound) {
		return reconcileUnchanged, nil
	}
	if err != nil {
		return reconcileUnchanged, fmt.Errorf("get document: %w", err)
	}
	if !doc.Active {
		return reconcileUnchanged, nil
	}

	indexed, err := uc.index.ChunkCount(ctx, id)
	if err != nil {
		return reconcileUnchanged, fmt.Errorf("count chunks: %w", err)
	}
	if indexed == doc.ChunkCount {
		return reconcileUnchanged, nil
	}

	logCtx := ctxzap.ToContext(ctx, ctxzap.Extract(ctx).With(zap.String("document_id", id)))
	ctxzap.Warn(logCtx, "index out of step with registry",
		zap.Int("recorded_chunks", doc.ChunkCount),
		zap.Int("indexed_chunks", indexed),
	)

	stored, err := uc.store.FetchText(ctx, id)
	if err == nil {
		_, err = uc.indexLocked(ctx, id, titleOr(stored.Title, doc, id), stored.Text, doc)
		if err == nil {
			return reconcileReindexed, nil
		}
	}
	ctxzap.Warn(logCtx, "document cannot be re-indexed, marking inactive", zap.Error(err))

	if err := uc.index.DeleteByDocument(ctx, id); err != nil {
		return reconcileUnchanged, fmt.Errorf("delete chunks: %w", err)
	}
	doc.Active = false
	doc.ChunkCount = 0
	if _, err := uc.repo.Upsert(ctx, *doc); err != nil {
		return reconcileUnchanged, fmt.Errorf("save document record: %w", err)
	}
	return reconcileDeactivated, nil
}

// indexLocked must run under the document lock.
func (uc *DocumentUsecase) indexLocked(
	ctx context.Context,
	id, title, text string,
	existing *entity.Document,
) (*entity.IndexDocumentResponse, error) {
	ctx = ctxzap.ToContext(ctx, ctxzap.Extract(ctx).With(zap.String("document_id", id)))
	started := uc.now()

	chunks := uc.chunker.Split(text)
	ctxzap.Info(ctx, "indexing document", zap.String("title", title), zap.Int("chunk_count", len(chunks)))

	var vectors [][]float32
	if len(chunks) > 0 {
		var err error
		vectors, err = uc.embedder.Embed(ctx, chunks)
		if err != nil {
			ctxzap.Error(ctx, "embedding failed, document left unchanged", zap.Error(err))
			if errors.Is(err, entity.ErrEmbeddingFailed) {
				return nil, fmt.Errorf("embed chunks: %w", err)
			}
			return nil, fmt.Errorf("%w: %w", entity.ErrEmbeddingFailed, err)
		}
		if len(vectors) != len(chunks) {
			return nil, fmt.Errorf("%w: got %d vectors for %d chunks", entity.ErrEmbeddingFailed, len(vectors), len(chunks))
		}
	}

	stage, err := uc.index.Stage(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: open stage: %w", entity.ErrIndexCorruptionRisk, err)
	}

	for i, chunkText := range chunks {
		err := stage.Upsert(ctx, entity.Chunk{
			DocumentID:  id,
			Index:       i,
			Text:        chunkText,
			Vector:      vectors[i],
			SourceTitle: title,
		})
		if err != nil {
			uc.abort(ctx, stage)
			return nil, fmt.Errorf("%w: stage chunk %d: %w", entity.ErrIndexCorruptionRisk, i, err)
		}
	}

	if err := stage.Commit(ctx); err != nil {
		uc.abort(ctx, stage)
		return nil, fmt.Errorf("%w: commit generation: %w", entity.ErrIndexCorruptionRisk, err)
	}

	indexedAt := uc.now()
	doc := entity.Document{
		ID:            id,
		Title:         title,
		SourceLength:  utf8.RuneCountInString(text),
		Active:        true,
		ChunkCount:    len(chunks),
		LastIndexedAt: &indexedAt,
	}
	if _, err := uc.repo.Upsert(ctx, doc); err != nil {
		// flip back so the index keeps matching the record
		uc.abort(ctx, stage)
		return nil, fmt.Errorf("save document record: %w", err)
	}

	if err := stage.Release(ctx); err != nil {
		ctxzap.Warn(ctx, "failed to release replaced generation", zap.Error(err))
	}

	ctxzap.Info(ctx, "document indexed",
		zap.String("generation", stage.Generation()),
		zap.Int("chunk_count", len(chunks)),
		zap.Duration("took", uc.now().Sub(started)),
	)

	return &entity.IndexDocumentResponse{ID: id, Title: title, ChunkCount: len(chunks)}, nil
}

func (uc *DocumentUsecase) abort(ctx context.Context, stage vectorindex.Stage) {
	if err := stage.Abort(ctx); err != nil {
		ctxzap.Error(ctx, "failed to abort staged generation",
			zap.String("generation", stage.Generation()),
			zap.Error(err),
		)
	}
}

func (uc *DocumentUsecase) lock(id string) func() {
	m, _ := uc.locks.LoadOrStore(id, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func titleOr(title string, existing *entity.Document, id string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	if existing != nil && existing.Title != "" {
		return existing.Title
	}
	return id
}
