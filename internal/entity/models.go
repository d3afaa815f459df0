package entity

import "time"

// Document is a registered safety document. Its chunks live in the vector index.
type Document struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	SourceLength  int        `json:"source_length"`
	Active        bool       `json:"active"`
	ChunkCount    int        `json:"chunk_count"`
	LastIndexedAt *time.Time `json:"last_indexed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Chunk is a window of document text with its embedding.
type Chunk struct {
	DocumentID  string
	Index       int
	Text        string
	Vector      []float32
	SourceTitle string
}

// Passage is a chunk returned by a similarity query.
type Passage struct {
	DocumentID  string  `json:"document_id"`
	ChunkIndex  int     `json:"chunk_index"`
	Text        string  `json:"text"`
	SourceTitle string  `json:"source_title"`
	Score       float64 `json:"score"`
}

// PassageSet is the ranked grounding material for one query.
// Grounded is false when nothing cleared the similarity floor.
type PassageSet struct {
	Query    string    `json:"query"`
	Passages []Passage `json:"passages"`
	Grounded bool      `json:"grounded"`
}

// Sources returns the distinct source titles in passage order.
func (ps *PassageSet) Sources() []string {
	if ps == nil {
		return nil
	}

	seen := make(map[string]bool, len(ps.Passages))
	sources := make([]string, 0, len(ps.Passages))
	for _, p := range ps.Passages {
		if seen[p.SourceTitle] {
			continue
		}
		seen[p.SourceTitle] = true
		sources = append(sources, p.SourceTitle)
	}
	return sources
}

// IndexStats is reported by vector index backends.
type IndexStats struct {
	DocumentCount int      `json:"indexed_document_count"`
	ChunkCount    int      `json:"total_chunk_count"`
	Titles        []string `json:"indexed_titles"`
}

// IndexStatus is the health view exposed by status().
type IndexStatus struct {
	IndexStats
	Backend             string `json:"backend"`
	RegisteredDocuments int    `json:"registered_documents"`
	ActiveDocuments     int    `json:"active_documents"`
}
