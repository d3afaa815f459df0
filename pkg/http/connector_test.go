package http

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestConnector_DoRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/echo", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "abc", r.Header.Get("X-Request-ID"))

		var in map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["text"]})
	}))
	defer srv.Close()

	c := NewConnector(&ConnectorConfig{BaseURL: srv.URL, Logger: zap.NewNop()}, WithAuthToken("secret"), WithRequestLogging())

	var out map[string]string
	err := c.DoRequest(context.Background(), http.MethodPost, "/echo", map[string]string{"text": "hi"}, &out, WithHeader("X-Request-ID", "abc"))
	require.NoError(t, err)
	assert.Equal(t, "hi", out["echo"])
}

func TestConnector_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewConnector(&ConnectorConfig{BaseURL: srv.URL, Logger: zap.NewNop()})
	err := c.DoRequest(context.Background(), http.MethodGet, "/", nil, nil)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadGateway, httpErr.StatusCode)
	assert.True(t, IsRetryable(err))
	assert.True(t, IsStatus(err, http.StatusBadGateway))
}

func TestConnector_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "note.ogg", header.Filename)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := NewConnector(&ConnectorConfig{BaseURL: srv.URL, Logger: zap.NewNop()})
	var out struct {
		OK bool `json:"ok"`
	}
	err := c.DoMultipartRequest(context.Background(), http.MethodPost, "/upload", func(w *multipart.Writer) error {
		part, err := w.CreateFormFile("file", "note.ogg")
		if err != nil {
			return err
		}
		_, err = part.Write([]byte("audio"))
		return err
	}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestConnector_NetworkError(t *testing.T) {
	c := NewConnector(&ConnectorConfig{BaseURL: "http://127.0.0.1:1", Logger: zap.NewNop()})
	_, err := c.Download(context.Background(), "http://127.0.0.1:1/file")

	var netErr *NetworkError
	assert.True(t, errors.As(err, &netErr))
	assert.True(t, IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(&HTTPError{StatusCode: http.StatusBadRequest}))
	assert.True(t, IsRetryable(&HTTPError{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, IsRetryable(errors.New("other")))
}
