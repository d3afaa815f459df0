package assistant

import (
	"context"

	"github.com/futig/safeguard-backend/internal/entity"
)

type Guard interface {
	Check(ctx context.Context, senderID, text string) (string, error)
}

type Classifier interface {
	Classify(text string) entity.Classification
	CachedReply(key string) (string, bool)
}

type Retriever interface {
	RetrieveWithContext(ctx context.Context, query string, recentSources []string) (*entity.PassageSet, error)
}

type Pipeline interface {
	Run(ctx context.Context, req *entity.PipelineRequest) *entity.GenerationResult
}

type ChatConnector interface {
	ChatReply(ctx context.Context, req *entity.ChatRequest) (string, error)
}

type ASRConnector interface {
	TranscribeBytes(ctx context.Context, audioData []byte, filename string) (string, error)
}
