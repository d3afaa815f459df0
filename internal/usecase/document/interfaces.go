package document

import (
	"context"

	"github.com/futig/safeguard-backend/internal/entity"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// DocumentStore supplies raw document text by id.
type DocumentStore interface {
	FetchText(ctx context.Context, id string) (*entity.DocumentStoreTextResponse, error)
}

type TextExtractor interface {
	Extract(filename string, content []byte) (string, error)
}

type FileValidator interface {
	ValidateDocumentFile(filename string, size int64) error
}
