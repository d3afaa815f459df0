package asr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/integration/common"
	pkghttp "github.com/futig/safeguard-backend/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Connector struct {
	config    config.ASRConnectorConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(
	cfg config.ASRConnectorConfig,
	logger *zap.Logger,
) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		config:    cfg,
		logger:    logger,
	}
}

// TranscribeBytes sends a voice note to the speech-to-text service.
// Every failure, including an empty transcript, wraps entity.ErrTranscriptionFailed.
func (c *Connector) TranscribeBytes(ctx context.Context, audioData []byte, filename string) (string, error) {
	if len(audioData) == 0 {
		return "", fmt.Errorf("%w: empty audio data", entity.ErrTranscriptionFailed)
	}

	hash := sha256.Sum256(audioData)
	checksum := hex.EncodeToString(hash[:])

	ctxzap.Info(ctx, "transcribing audio via ASR service",
		zap.String("filename", filename),
		zap.String("checksum", checksum),
		zap.Int("size", len(audioData)),
	)

	prepareBody := func(writer *multipart.Writer) error {
		part, err := writer.CreateFormFile("file", filename)
		if err != nil {
			return fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(audioData); err != nil {
			return fmt.Errorf("write file content: %w", err)
		}
		return writer.WriteField("checksum", checksum)
	}

	resp, err := common.CallWithRetry(ctx, &c.config.Retry, func(ctx context.Context) (*entity.ASRTranscribeResponse, error) {
		var resp entity.ASRTranscribeResponse
		if err := c.connector.DoMultipartRequest(ctx, http.MethodPost, c.config.TranscribeEndpoint, prepareBody, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", entity.ErrTranscriptionFailed, err)
	}

	text := strings.TrimSpace(resp.Transcriptions)
	if text == "" {
		return "", fmt.Errorf("%w: empty transcript", entity.ErrTranscriptionFailed)
	}

	ctxzap.Info(ctx, "audio transcribed successfully", zap.Int("transcription_length", len(text)))
	return text, nil
}
