package http

import (
	"net/http"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type payloadContextKey struct{}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// WithAuthToken sets a bearer token on every request when token is not empty.
func WithAuthToken(token string) HttpOpts {
	return WithTransport(func(next http.RoundTripper) http.RoundTripper {
		if token == "" {
			return next
		}
		return roundTripFunc(func(req *http.Request) (*http.Response, error) {
			clone := req.Clone(req.Context())
			clone.Header.Set("Authorization", "Bearer "+token)
			return next.RoundTrip(clone)
		})
	})
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(agent string) HttpOpts {
	return WithTransport(func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(req *http.Request) (*http.Response, error) {
			clone := req.Clone(req.Context())
			clone.Header.Set("User-Agent", agent)
			return next.RoundTrip(clone)
		})
	})
}

// WithRequestLogging logs method, URL, status and the JSON payload (at debug) of outbound calls.
func WithRequestLogging() HttpOpts {
	return WithTransport(func(next http.RoundTripper) http.RoundTripper {
		return roundTripFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("url", req.URL.Redacted()),
			}
			if payload, ok := ctx.Value(payloadContextKey{}).([]byte); ok && len(payload) > 0 {
				ctxzap.Debug(ctx, "HTTP outbound payload", append(fields, zap.ByteString("payload", payload))...)
			}

			resp, err := next.RoundTrip(req)
			if err != nil {
				ctxzap.Warn(ctx, "HTTP outbound request failed", append(fields, zap.Error(err))...)
				return nil, err
			}
			ctxzap.Debug(ctx, "HTTP outbound request", append(fields, zap.Int("status", resp.StatusCode))...)
			return resp, nil
		})
	})
}
