package common

import (
	"context"

	"github.com/futig/safeguard-backend/internal/config"
	pkgRetry "github.com/futig/safeguard-backend/internal/pkg/retry"
	pkgHTTP "github.com/futig/safeguard-backend/pkg/http"
	"go.uber.org/zap"
)

const userAgent = "safeguard-backend/1.0"

func NewBaseConnector(cfg config.HTTPClientConfig, logger *zap.Logger) *pkgHTTP.Connector {
	connCfg := &pkgHTTP.ConnectorConfig{
		Logger:  logger,
		BaseURL: cfg.Url,
	}

	return pkgHTTP.NewConnector(
		connCfg,
		pkgHTTP.WithRequestTimeout(cfg.RequestTimeout),
		pkgHTTP.WithConnClientTimeout(cfg.ConnTimeout),
		pkgHTTP.WithClientKeepAlive(cfg.KeepAlive),
		pkgHTTP.WithIdleConnTimeout(cfg.IdleConnTimeout),
		pkgHTTP.WithResponseHeaderTimeout(cfg.ResponseHeaderTimeout),
		pkgHTTP.WithRequestLogging(),
		pkgHTTP.WithAuthToken(cfg.Token),
		pkgHTTP.WithUserAgent(userAgent),
	)
}

// CallWithRetry runs fn under the retry policy, giving up at once on non-retryable HTTP errors.
func CallWithRetry[T any](ctx context.Context, cfg *pkgRetry.RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	return pkgRetry.Do(ctx, cfg, func(ctx context.Context) (T, error) {
		res, err := fn(ctx)
		if err != nil && !pkgHTTP.IsRetryable(err) && ctx.Err() == nil {
			return res, pkgRetry.Permanent(err)
		}
		return res, err
	})
}
