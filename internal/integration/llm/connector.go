// Package llm wraps the chat model used by the research, formatting and general chat stages.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/integration/common"
	pkgRetry "github.com/futig/safeguard-backend/internal/pkg/retry"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/openai/openai-go"
	"go.uber.org/zap"
)

type Connector struct {
	config config.OpenAIConfig
	client *openai.Client
	logger *zap.Logger
}

func NewConnector(cfg config.OpenAIConfig, client *openai.Client, logger *zap.Logger) *Connector {
	return &Connector{
		config: cfg,
		client: client,
		logger: logger,
	}
}

// ExtractFacts asks the model for facts from the passages as structured JSON.
func (c *Connector) ExtractFacts(ctx context.Context, req *entity.ResearchRequest) (*entity.ResearchResponse, error) {
	ctxzap.Info(ctx, "extracting facts via LLM", zap.Int("passage_count", len(req.Passages)))

	resp, err := common.CallOpenAI(ctx, &c.config.ChatRetry, func(ctx context.Context) (*entity.ResearchResponse, error) {
		content, err := c.complete(ctx, researchSystemPrompt, researchUserPrompt(req), true)
		if err != nil {
			return nil, err
		}

		var resp entity.ResearchResponse
		if err := json.Unmarshal([]byte(content), &resp); err != nil {
			// a malformed answer will not improve on retry at this temperature
			return nil, pkgRetry.Permanent(fmt.Errorf("decode research response: %w", err))
		}
		return &resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: extract facts: %w", entity.ErrGenerationFailed, err)
	}

	ctxzap.Info(ctx, "facts extracted", zap.Bool("covered", resp.Covered), zap.Int("fact_count", len(resp.Facts)))
	return resp, nil
}

// FormatAnswer renders facts into a channel message.
func (c *Connector) FormatAnswer(ctx context.Context, req *entity.FormatRequest) (string, error) {
	ctxzap.Info(ctx, "formatting answer via LLM",
		zap.Int("fact_count", len(req.Facts)),
		zap.Int("min_chars", req.MinChars),
		zap.Int("max_chars", req.MaxChars),
	)

	text, err := common.CallOpenAI(ctx, &c.config.ChatRetry, func(ctx context.Context) (string, error) {
		return c.complete(ctx, formatSystemPrompt(req), formatUserPrompt(req), false)
	})
	if err != nil {
		return "", fmt.Errorf("%w: format answer: %w", entity.ErrGenerationFailed, err)
	}

	ctxzap.Info(ctx, "answer formatted", zap.Int("length", len(text)))
	return text, nil
}

// ChatReply produces a short conversational reply for general messages.
func (c *Connector) ChatReply(ctx context.Context, req *entity.ChatRequest) (string, error) {
	ctxzap.Info(ctx, "generating general reply via LLM")

	text, err := common.CallOpenAI(ctx, &c.config.ChatRetry, func(ctx context.Context) (string, error) {
		return c.complete(ctx, chatSystemPrompt(req.MaxChars), req.Message, false)
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat reply: %w", entity.ErrGenerationFailed, err)
	}
	return text, nil
}

func (c *Connector) complete(ctx context.Context, system, user string, jsonOutput bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:       openai.ChatModel(c.config.ChatModel),
		Temperature: openai.Float(c.config.Temperature),
		MaxTokens:   openai.Int(c.config.MaxTokens),
	}
	if jsonOutput {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &openai.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("chat completion returned empty content")
	}
	return content, nil
}
