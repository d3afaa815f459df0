// Package docstore fetches raw document text from the document-storage service.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/integration/common"
	pkghttp "github.com/futig/safeguard-backend/pkg/http"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Connector struct {
	config    config.DocStoreConnectorConfig
	connector *pkghttp.Connector
	logger    *zap.Logger
}

func NewConnector(cfg config.DocStoreConnectorConfig, logger *zap.Logger) *Connector {
	return &Connector{
		connector: common.NewBaseConnector(cfg.HTTPClientConfig, logger),
		config:    cfg,
		logger:    logger,
	}
}

func (c *Connector) FetchText(ctx context.Context, documentID string) (*entity.DocumentStoreTextResponse, error) {
	ctxzap.Info(ctx, "fetching document text from storage", zap.String("document_id", documentID))

	endpoint := fmt.Sprintf(c.config.TextEndpoint, url.PathEscape(documentID))
	resp, err := common.CallWithRetry(ctx, &c.config.Retry, func(ctx context.Context) (*entity.DocumentStoreTextResponse, error) {
		var resp entity.DocumentStoreTextResponse
		if err := c.connector.DoRequest(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		if pkghttp.IsStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", entity.ErrDocumentNotFound, documentID)
		}
		return nil, fmt.Errorf("fetch document text: %w", err)
	}

	if resp.ID == "" {
		resp.ID = documentID
	}
	if resp.ID != documentID {
		return nil, errors.New("document storage returned a different document")
	}

	ctxzap.Info(ctx, "document text fetched", zap.Int("text_length", len(resp.Text)))
	return resp, nil
}
