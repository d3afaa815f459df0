// Package image generates safety illustrations.
package image

import (
	"context"
	"errors"
	"fmt"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/integration/common"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/openai/openai-go"
	"go.uber.org/zap"
)

const promptTemplate = "Professional workplace safety illustration: %s. Clean, instructional style showing correct personal protective equipment and safe practice. No text or labels in the image."

type Connector struct {
	config config.OpenAIConfig
	client *openai.Client
	logger *zap.Logger
}

func NewConnector(cfg config.OpenAIConfig, client *openai.Client, logger *zap.Logger) *Connector {
	return &Connector{config: cfg, client: client, logger: logger}
}

// GenerateImage returns a URL of an image for description. Failures wrap entity.ErrImageGenerationFailed.
func (c *Connector) GenerateImage(ctx context.Context, description string) (string, error) {
	ctxzap.Info(ctx, "generating image", zap.String("model", c.config.ImageModel))

	url, err := common.CallOpenAI(ctx, &c.config.ImageRetry, func(ctx context.Context) (string, error) {
		resp, err := c.client.Images.Generate(ctx, openai.ImageGenerateParams{
			Prompt:  fmt.Sprintf(promptTemplate, description),
			Model:   openai.ImageModel(c.config.ImageModel),
			Size:    openai.ImageGenerateParamsSize(c.config.ImageSize),
			Quality: openai.ImageGenerateParamsQuality(c.config.ImageQuality),
			N:       openai.Int(1),
		})
		if err != nil {
			return "", err
		}
		if len(resp.Data) == 0 || resp.Data[0].URL == "" {
			return "", errors.New("image response has no url")
		}
		return resp.Data[0].URL, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", entity.ErrImageGenerationFailed, err)
	}

	ctxzap.Info(ctx, "image generated")
	return url, nil
}
