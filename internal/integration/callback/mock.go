package callback

import (
	"context"
	"sync"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MockConnector records delivered events instead of posting them.
type MockConnector struct {
	logger *zap.Logger

	mu     sync.Mutex
	events []*entity.CallbackEvent
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{logger: logger}
}

func (m *MockConnector) SendReply(ctx context.Context, callbackURL string, requestID string, data *entity.CallbackReplyData) {
	m.record(ctx, callbackURL, &entity.CallbackEvent{Event: entity.CallbackEventTypeReply, Data: data})
}

// Events returns a copy of everything sent so far.
func (m *MockConnector) Events() []*entity.CallbackEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entity.CallbackEvent(nil), m.events...)
}

func (m *MockConnector) record(ctx context.Context, url string, event *entity.CallbackEvent) {
	ctxzap.Info(ctx, "[MOCK] callback event", zap.String("event_type", string(event.Event)), zap.String("callback_url", url))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}
