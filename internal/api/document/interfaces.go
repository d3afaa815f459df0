package document

import (
	"context"

	"github.com/futig/safeguard-backend/internal/entity"
)

type DocumentUsecase interface {
	Index(ctx context.Context, req *entity.IndexDocumentRequest) (*entity.IndexDocumentResponse, error)
	Reindex(ctx context.Context, req *entity.IndexDocumentRequest) (*entity.IndexDocumentResponse, error)
	ReindexFromStore(ctx context.Context, id string) (*entity.IndexDocumentResponse, error)
	IndexFile(ctx context.Context, id, title, filename string, content []byte) (*entity.IndexDocumentResponse, error)
	Remove(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) (*entity.Document, error)
	Get(ctx context.Context, id string) (*entity.Document, error)
	List(ctx context.Context) ([]*entity.Document, error)
	Status(ctx context.Context) (*entity.IndexStatus, error)
}

type FileValidator interface {
	ValidateDocumentFile(filename string, size int64) error
	MaxUploadSize() int64
}
