package docstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MockConnector serves documents from memory.
type MockConnector struct {
	logger *zap.Logger

	mu   sync.RWMutex
	docs map[string]*entity.DocumentStoreTextResponse
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{
		logger: logger,
		docs:   make(map[string]*entity.DocumentStoreTextResponse),
	}
}

// Put stores a document the mock will serve.
func (m *MockConnector) Put(id, title, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[id] = &entity.DocumentStoreTextResponse{ID: id, Title: title, Text: text}
}

func (m *MockConnector) FetchText(ctx context.Context, documentID string) (*entity.DocumentStoreTextResponse, error) {
	ctxzap.Info(ctx, "[MOCK] fetching document text", zap.String("document_id", documentID))

	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.docs[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", entity.ErrDocumentNotFound, documentID)
	}
	copied := *doc
	return &copied, nil
}
