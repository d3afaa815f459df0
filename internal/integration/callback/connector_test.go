package callback

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

func newTestConnector() *Connector {
	return NewConnector(config.CallbackConnectorConfig{
		HTTPClientConfig: config.HTTPClientConfig{
			RequestTimeout: time.Second,
			ConnTimeout:    time.Second,
		},
		Retry: pkgRetry.RetryConfig{Attempts: 2, Delay: time.Millisecond, MaxDelay: time.Millisecond, Timeout: time.Second},
	}, zap.NewNop())
}

type receivedEvent struct {
	Event     entity.CallbackEventType `json:"event"`
	Timestamp string                   `json:"timestamp"`
	Data      entity.CallbackReplyData `json:"data"`
}

func TestConnector_SendReply(t *testing.T) {
	var calls atomic.Int32
	received := make(chan receivedEvent, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/hooks/reply", r.URL.Path)
		assert.Equal(t, "req-1", r.Header.Get("X-Request-ID"))

		var ev receivedEvent
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&ev))
		received <- ev
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	newTestConnector().SendReply(context.Background(), srv.URL+"/hooks/reply", "req-1", &entity.CallbackReplyData{
		SenderID: "whatsapp:+100",
		Text:     "Wear a shade 10 helmet.",
	})

	require.Len(t, received, 1)
	ev := <-received
	assert.Equal(t, entity.CallbackEventTypeReply, ev.Event)
	assert.NotEmpty(t, ev.Timestamp)
	assert.Equal(t, "whatsapp:+100", ev.Data.SenderID)
	assert.Equal(t, "Wear a shade 10 helmet.", ev.Data.Text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestConnector_SendClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	err := newTestConnector().Send(context.Background(), srv.URL, "req-2", &entity.CallbackEvent{
		Event: entity.CallbackEventTypeReply,
		Data:  &entity.CallbackReplyData{SenderID: "s", Text: "t"},
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMockConnector_RecordsEvents(t *testing.T) {
	m := NewMockConnector(zap.NewNop())
	m.SendReply(context.Background(), "http://gateway/reply", "req", &entity.CallbackReplyData{SenderID: "s", Text: "hi"})

	events := m.Events()
	require.Len(t, events, 1)
	assert.Equal(t, entity.CallbackEventTypeReply, events[0].Event)
}
