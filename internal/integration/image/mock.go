package image

import (
	"context"
	"net/url"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type MockConnector struct {
	logger *zap.Logger
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{logger: logger}
}

// GenerateImage returns a placeholder image URL carrying the description.
func (m *MockConnector) GenerateImage(ctx context.Context, description string) (string, error) {
	ctxzap.Info(ctx, "[MOCK] generating image", zap.String("description", description))
	return "https://placehold.co/1024x1024?text=" + url.QueryEscape(description), nil
}
