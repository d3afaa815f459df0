package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/google/uuid"
)

var errStageClosed = errors.New("stage already committed or aborted")

type generation struct {
	id     string
	chunks map[int]entity.Chunk
}

// MemoryIndex is a brute-force in-process index. Each document maps to exactly one
// committed generation; swapping that pointer is the only write queries can observe.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	active    map[string]*generation
}

var _ Index = &MemoryIndex{}

// NewMemoryIndex creates an empty index. A zero dimension is fixed by the first commit.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		active:    make(map[string]*generation),
	}
}

func (m *MemoryIndex) Backend() string {
	return BackendMemory
}

func (m *MemoryIndex) Stage(_ context.Context, documentID string) (Stage, error) {
	if documentID == "" {
		return nil, fmt.Errorf("%w: document id", entity.ErrMissingField)
	}
	return &memoryStage{
		index:      m,
		documentID: documentID,
		gen: &generation{
			id:     uuid.NewString(),
			chunks: make(map[int]entity.Chunk),
		},
	}, nil
}

func (m *MemoryIndex) DeleteByDocument(_ context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.active, documentID)
	return nil
}

func (m *MemoryIndex) ChunkCount(_ context.Context, documentID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	gen, ok := m.active[documentID]
	if !ok {
		return 0, nil
	}
	return len(gen.chunks), nil
}

func (m *MemoryIndex) Query(_ context.Context, vector []float32, topK int, floor float64) ([]entity.Passage, error) {
	if topK <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.dimension != 0 && len(vector) != m.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d", entity.ErrDimensionMismatch, len(vector), m.dimension)
	}

	var passages []entity.Passage
	for _, gen := range m.active {
		for _, chunk := range gen.chunks {
			score := CosineSimilarity(vector, chunk.Vector)
			if score < floor {
				continue
			}
			passages = append(passages, entity.Passage{
				DocumentID:  chunk.DocumentID,
				ChunkIndex:  chunk.Index,
				Text:        chunk.Text,
				SourceTitle: chunk.SourceTitle,
				Score:       score,
			})
		}
	}

	SortPassages(passages)
	if len(passages) > topK {
		passages = passages[:topK]
	}
	return passages, nil
}

func (m *MemoryIndex) Stats(_ context.Context) (*entity.IndexStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &entity.IndexStats{Titles: []string{}}
	titles := make(map[string]bool)
	for _, gen := range m.active {
		if len(gen.chunks) == 0 {
			continue
		}
		stats.DocumentCount++
		stats.ChunkCount += len(gen.chunks)
		for _, chunk := range gen.chunks {
			titles[chunk.SourceTitle] = true
			break
		}
	}
	for title := range titles {
		stats.Titles = append(stats.Titles, title)
	}
	sort.Strings(stats.Titles)

	return stats, nil
}

// commit installs gen as the active generation of documentID and returns the one it replaced.
func (m *MemoryIndex) commit(documentID string, gen *generation) (*generation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, chunk := range gen.chunks {
		if m.dimension == 0 {
			m.dimension = len(chunk.Vector)
		}
		if len(chunk.Vector) != m.dimension {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				entity.ErrDimensionMismatch, chunk.Index, len(chunk.Vector), m.dimension)
		}
	}

	prev := m.active[documentID]
	m.active[documentID] = gen
	return prev, nil
}

// restore puts prev back if gen is still the active generation of documentID.
func (m *MemoryIndex) restore(documentID string, gen, prev *generation) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active[documentID] != gen {
		return
	}
	if prev == nil {
		delete(m.active, documentID)
		return
	}
	m.active[documentID] = prev
}

type memoryStage struct {
	index      *MemoryIndex
	documentID string
	gen        *generation

	mu        sync.Mutex
	closed    bool
	committed bool
	released  bool
	prev      *generation
}

func (s *memoryStage) Generation() string {
	return s.gen.id
}

func (s *memoryStage) Upsert(_ context.Context, chunk entity.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStageClosed
	}
	if chunk.DocumentID != s.documentID {
		return fmt.Errorf("%w: chunk belongs to %q, stage is for %q", entity.ErrInvalidParameter, chunk.DocumentID, s.documentID)
	}
	if len(chunk.Vector) == 0 {
		return fmt.Errorf("%w: chunk %d has no vector", entity.ErrInvalidParameter, chunk.Index)
	}

	s.gen.chunks[chunk.Index] = chunk
	return nil
}

func (s *memoryStage) Commit(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStageClosed
	}
	s.closed = true

	prev, err := s.index.commit(s.documentID, s.gen)
	if err != nil {
		return err
	}
	s.committed = true
	s.prev = prev
	return nil
}

// Release forgets the replaced generation; queries hold no references to it once the
// pointer has moved.
func (s *memoryStage) Release(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed {
		s.committed = false
		s.released = true
	}
	s.prev = nil
	return nil
}

func (s *memoryStage) Abort(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}
	s.closed = true
	if s.committed {
		s.index.restore(s.documentID, s.gen, s.prev)
		s.committed = false
		s.prev = nil
		return nil
	}
	s.gen.chunks = nil
	return nil
}
