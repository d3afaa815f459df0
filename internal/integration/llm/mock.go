package llm

import (
	"context"
	"strings"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/pkg/textutil"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// MockConnector answers without a model: facts are the passage sentences that share
// words with the query, and formatting is a bulleted list.
type MockConnector struct {
	logger *zap.Logger
}

func NewMockConnector(logger *zap.Logger) *MockConnector {
	return &MockConnector{
		logger: logger,
	}
}

func (m *MockConnector) ExtractFacts(ctx context.Context, req *entity.ResearchRequest) (*entity.ResearchResponse, error) {
	ctxzap.Info(ctx, "[MOCK] extracting facts", zap.Int("passage_count", len(req.Passages)))

	resp := &entity.ResearchResponse{}
	for _, p := range req.Passages {
		for _, sentence := range textutil.Sentences(p.Text) {
			if textutil.Overlap(req.Query, sentence) == 0 {
				continue
			}
			resp.Facts = append(resp.Facts, entity.Fact{Statement: sentence, Source: p.SourceTitle})
		}
	}
	resp.Covered = len(resp.Facts) > 0
	return resp, nil
}

func (m *MockConnector) FormatAnswer(ctx context.Context, req *entity.FormatRequest) (string, error) {
	ctxzap.Info(ctx, "[MOCK] formatting answer", zap.Int("fact_count", len(req.Facts)))

	var b strings.Builder
	b.WriteString("**Safety guidance**\n")
	for _, f := range req.Facts {
		b.WriteString("\n- ")
		b.WriteString(f.Statement)
	}
	return textutil.TrimToSentence(b.String(), req.MaxChars), nil
}

func (m *MockConnector) ChatReply(ctx context.Context, req *entity.ChatRequest) (string, error) {
	ctxzap.Info(ctx, "[MOCK] generating general reply")
	return textutil.Truncate("Hi, I'm SafeGuardAI. Ask me any workplace safety question.", req.MaxChars), nil
}
