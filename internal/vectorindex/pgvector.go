package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PGVectorIndex keeps chunks in Postgres. Rows of a staged generation are invisible to
// queries until the generation pointer row for the document is switched in a transaction.
type PGVectorIndex struct {
	db        *pgxpool.Pool
	dimension int
}

var _ Index = &PGVectorIndex{}

func NewPGVectorIndex(ctx context.Context, db *pgxpool.Pool, dimension int) (*PGVectorIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: pgvector index needs a positive dimension", entity.ErrInvalidParameter)
	}

	idx := &PGVectorIndex{db: db, dimension: dimension}
	if err := idx.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (p *PGVectorIndex) ensureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS safety_chunks (
			document_id  TEXT NOT NULL,
			generation   TEXT NOT NULL,
			chunk_index  INT NOT NULL,
			content      TEXT NOT NULL,
			source_title TEXT NOT NULL,
			embedding    vector(%d) NOT NULL,
			PRIMARY KEY (document_id, generation, chunk_index)
		)`, p.dimension),
		`CREATE TABLE IF NOT EXISTS safety_chunk_generations (
			document_id  TEXT PRIMARY KEY,
			generation   TEXT NOT NULL,
			committed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}

	for _, stmt := range statements {
		if _, err := p.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure pgvector schema: %w", err)
		}
	}
	return nil
}

func (p *PGVectorIndex) Backend() string {
	return BackendPGVector
}

func (p *PGVectorIndex) Stage(_ context.Context, documentID string) (Stage, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id", entity.ErrMissingField)
	}
	return &pgvectorStage{
		index:      p,
		documentID: documentID,
		generation: uuid.NewString(),
	}, nil
}

func (p *PGVectorIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	return pgx.BeginFunc(ctx, p.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM safety_chunk_generations WHERE document_id = $1`, documentID); err != nil {
			return fmt.Errorf("delete generation pointer: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM safety_chunks WHERE document_id = $1`, documentID); err != nil {
			return fmt.Errorf("delete chunks: %w", err)
		}
		return nil
	})
}

func (p *PGVectorIndex) ChunkCount(ctx context.Context, documentID string) (int, error) {
	var count int
	err := p.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM safety_chunks c
		JOIN safety_chunk_generations g
		  ON g.document_id = c.document_id AND g.generation = c.generation
		WHERE c.document_id = $1`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks of %s: %w", documentID, err)
	}
	return count, nil
}

func (p *PGVectorIndex) Query(ctx context.Context, vector []float32, topK int, floor float64) ([]entity.Passage, error) {
	if topK <= 0 {
		return nil, nil
	}
	if len(vector) != p.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d", entity.ErrDimensionMismatch, len(vector), p.dimension)
	}

	rows, err := p.db.Query(ctx, `
		SELECT c.document_id, c.chunk_index, c.content, c.source_title,
		       1 - (c.embedding <=> $1::vector) AS score
		FROM safety_chunks c
		JOIN safety_chunk_generations g
		  ON g.document_id = c.document_id AND g.generation = c.generation
		WHERE 1 - (c.embedding <=> $1::vector) >= $2
		ORDER BY c.embedding <=> $1::vector, c.document_id, c.chunk_index
		LIMIT $3`,
		pgvector.NewVector(vector), floor, topK,
	)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var passages []entity.Passage
	for rows.Next() {
		var ps entity.Passage
		if err := rows.Scan(&ps.DocumentID, &ps.ChunkIndex, &ps.Text, &ps.SourceTitle, &ps.Score); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		passages = append(passages, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}

	SortPassages(passages)
	return passages, nil
}

func (p *PGVectorIndex) Stats(ctx context.Context) (*entity.IndexStats, error) {
	rows, err := p.db.Query(ctx, `
		SELECT c.document_id, MIN(c.source_title), COUNT(*)
		FROM safety_chunks c
		JOIN safety_chunk_generations g
		  ON g.document_id = c.document_id AND g.generation = c.generation
		GROUP BY c.document_id
		ORDER BY MIN(c.source_title)`)
	if err != nil {
		return nil, fmt.Errorf("query index stats: %w", err)
	}
	defer rows.Close()

	stats := &entity.IndexStats{Titles: []string{}}
	seen := make(map[string]bool)
	for rows.Next() {
		var (
			documentID string
			title      string
			count      int
		)
		if err := rows.Scan(&documentID, &title, &count); err != nil {
			return nil, fmt.Errorf("scan index stats: %w", err)
		}
		stats.DocumentCount++
		stats.ChunkCount += count
		if !seen[title] {
			seen[title] = true
			stats.Titles = append(stats.Titles, title)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate index stats: %w", err)
	}

	return stats, nil
}

type pgvectorStage struct {
	index      *PGVectorIndex
	documentID string
	generation string

	mu        sync.Mutex
	closed    bool
	committed bool
	released  bool
	// generation replaced by Commit, empty for a new document
	previous string
}

func (s *pgvectorStage) Generation() string {
	return s.generation
}

func (s *pgvectorStage) Upsert(ctx context.Context, chunk entity.Chunk) error {
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

	_, err := s.index.db.Exec(ctx, `
		INSERT INTO safety_chunks (document_id, generation, chunk_index, content, source_title, embedding)
		VALUES ($1, $2, $3, $4, $5, $6::vector)
		ON CONFLICT (document_id, generation, chunk_index)
		DO UPDATE SET content = EXCLUDED.content, source_title = EXCLUDED.source_title, embedding = EXCLUDED.embedding`,
		s.documentID, s.generation, chunk.Index, chunk.Text, chunk.SourceTitle, pgvector.NewVector(chunk.Vector),
	)
	if err != nil {
		return fmt.Errorf("insert chunk %d: %w", chunk.Index, err)
	}
	return nil
}

// Commit switches the pointer and remembers the generation it replaced.
func (s *pgvectorStage) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStageClosed
	}
	s.closed = true

	var previous string
	err := pgx.BeginFunc(ctx, s.index.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT generation FROM safety_chunk_generations WHERE document_id = $1 FOR UPDATE`,
			s.documentID,
		).Scan(&previous)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("read generation pointer: %w", err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO safety_chunk_generations (document_id, generation, committed_at)
			VALUES ($1, $2, now())
			ON CONFLICT (document_id) DO UPDATE SET generation = EXCLUDED.generation, committed_at = now()`,
			s.documentID, s.generation,
		)
		if err != nil {
			return fmt.Errorf("switch generation: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.committed = true
	s.previous = previous
	return nil
}

// Release deletes the replaced generation. A query already running keeps reading its
// own snapshot, so the rows can go at once.
func (s *pgvectorStage) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.committed {
		return nil
	}
	s.committed = false
	s.released = true
	if s.previous == "" {
		return nil
	}

	_, err := s.index.db.Exec(ctx,
		`DELETE FROM safety_chunks WHERE document_id = $1 AND generation = $2`,
		s.documentID, s.previous,
	)
	if err != nil {
		return fmt.Errorf("collect generation %s: %w", s.previous, err)
	}
	return nil
}

func (s *pgvectorStage) Abort(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}
	s.closed = true
	restore := s.committed
	s.committed = false

	return pgx.BeginFunc(ctx, s.index.db, func(tx pgx.Tx) error {
		if restore {
			var err error
			if s.previous == "" {
				_, err = tx.Exec(ctx,
					`DELETE FROM safety_chunk_generations WHERE document_id = $1 AND generation = $2`,
					s.documentID, s.generation,
				)
			} else {
				_, err = tx.Exec(ctx,
					`UPDATE safety_chunk_generations SET generation = $3, committed_at = now()
					 WHERE document_id = $1 AND generation = $2`,
					s.documentID, s.generation, s.previous,
				)
			}
			if err != nil {
				return fmt.Errorf("restore generation pointer: %w", err)
			}
		}

		_, err := tx.Exec(ctx, `DELETE FROM safety_chunks WHERE document_id = $1 AND generation = $2`, s.documentID, s.generation)
		if err != nil {
			return fmt.Errorf("drop staged generation: %w", err)
		}
		return nil
	})
}
