package docstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/entity"
	pkgRetry "github.com/futig/safeguard-backend/internal/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestConnector(url string) *Connector {
	return NewConnector(config.DocStoreConnectorConfig{
		HTTPClientConfig: config.HTTPClientConfig{
			Url:            url,
			RequestTimeout: time.Second,
			ConnTimeout:    time.Second,
		},
		TextEndpoint: "/documents/%s/text",
		Retry:        pkgRetry.RetryConfig{Attempts: 2, Delay: time.Millisecond, MaxDelay: time.Millisecond, Timeout: time.Second},
	}, zap.NewNop())
}

func TestConnector_FetchText(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		assert.Equal(t, "/documents/welding-101/text", r.URL.Path)
		_ = json.NewEncoder(w).Encode(entity.DocumentStoreTextResponse{ID: "welding-101", Title: "Welding", Text: "Use a shade 10 helmet."})
	}))
	defer srv.Close()

	doc, err := newTestConnector(srv.URL).FetchText(context.Background(), "welding-101")
	require.NoError(t, err)
	assert.Equal(t, "Welding", doc.Title)
	assert.Equal(t, int32(2), calls.Load())
}

func TestConnector_FetchTextNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestConnector(srv.URL).FetchText(context.Background(), "missing")
	assert.ErrorIs(t, err, entity.ErrDocumentNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMockConnector(t *testing.T) {
	m := NewMockConnector(zap.NewNop())
	m.Put("a", "A", "text")

	doc, err := m.FetchText(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "text", doc.Text)

	_, err = m.FetchText(context.Background(), "b")
	assert.ErrorIs(t, err, entity.ErrDocumentNotFound)
}
