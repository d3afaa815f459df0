package common

import (
	"context"
	"errors"
	"net/http"

	"github.com/futig/safeguard-backend/internal/config"
	pkgRetry "github.com/futig/safeguard-backend/internal/pkg/retry"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// NewOpenAIClient builds the client shared by the chat, embedding and image connectors.
// SDK retries are disabled; retries go through pkg/retry so every capability has one policy.
func NewOpenAIClient(cfg config.OpenAIConfig) *openai.Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openai.NewClient(opts...)
	return &client
}

// CallOpenAI runs fn under the retry policy. Client errors other than 408 and 429 are not retried.
func CallOpenAI[T any](ctx context.Context, cfg *pkgRetry.RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	return pkgRetry.Do(ctx, cfg, func(ctx context.Context) (T, error) {
		res, err := fn(ctx)
		if err != nil && !isRetryableOpenAIError(err) {
			return res, pkgRetry.Permanent(err)
		}
		return res, err
	})
}

func isRetryableOpenAIError(err error) bool {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) {
		// transport failures and per-attempt timeouts
		return true
	}

	switch {
	case apiErr.StatusCode >= 500,
		apiErr.StatusCode == http.StatusTooManyRequests,
		apiErr.StatusCode == http.StatusRequestTimeout:
		return true
	}
	return false
}
