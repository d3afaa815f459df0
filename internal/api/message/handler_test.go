package message

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/pkg/validator"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssistant struct {
	mu   sync.Mutex
	msgs []*entity.InboundMessage
}

func (f *fakeAssistant) HandleMessage(_ context.Context, msg *entity.InboundMessage) *entity.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return &entity.Reply{Text: "Wear a shade 10-13 helmet.", ImageURL: "https://img.example/1.png"}
}

func (f *fakeAssistant) last(t *testing.T) *entity.InboundMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.msgs)
	return f.msgs[len(f.msgs)-1]
}

type callbackCall struct {
	url       string
	requestID string
	data      *entity.CallbackReplyData
}

type fakeCallback struct {
	calls chan callbackCall
}

func (f *fakeCallback) SendReply(_ context.Context, callbackURL, requestID string, data *entity.CallbackReplyData) {
	f.calls <- callbackCall{url: callbackURL, requestID: requestID, data: data}
}

func newRouter() (http.Handler, *fakeAssistant, *fakeCallback) {
	uc := &fakeAssistant{}
	cb := &fakeCallback{calls: make(chan callbackCall, 1)}
	v := validator.NewFileValidator(config.FileUploadConfig{MaxFileSize: 1 << 20, MaxUploadSize: 2 << 20})

	r := chi.NewRouter()
	RegisterRoutes(r, NewHandler(uc, v, cb))
	return r, uc, cb
}

func postJSON(h http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/messages", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandleMessage_Sync(t *testing.T) {
	h, uc, _ := newRouter()

	rec := postJSON(h, `{"sender_id":"+15550001","text":"what helmet for welding?"}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var reply entity.Reply
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reply))
	assert.Equal(t, "Wear a shade 10-13 helmet.", reply.Text)
	assert.Equal(t, "https://img.example/1.png", reply.ImageURL)

	msg := uc.last(t)
	assert.Equal(t, "+15550001", msg.SenderID)
	assert.Equal(t, entity.MessageKindText, msg.Kind)
}

func TestHandleMessage_Invalid(t *testing.T) {
	h, uc, _ := newRouter()

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"sender_id":`},
		{"missing sender", `{"text":"hi"}`},
		{"voice as json", `{"sender_id":"a","kind":"voice"}`},
		{"unknown kind", `{"sender_id":"a","text":"hi","kind":"video"}`},
		{"bad callback", `{"sender_id":"a","text":"hi","callback_url":"ftp://x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(h, tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, uc.msgs)
}

func TestHandleMessage_Callback(t *testing.T) {
	h, _, cb := newRouter()

	rec := postJSON(h,
		`{"sender_id":"+15550001","text":"fire extinguisher types","callback_url":"https://gateway.example/reply"}`,
		map[string]string{"X-Request-ID": "req-42"},
	)
	require.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case call := <-cb.calls:
		assert.Equal(t, "https://gateway.example/reply", call.url)
		assert.Equal(t, "req-42", call.requestID)
		assert.Equal(t, "+15550001", call.data.SenderID)
		assert.Equal(t, "Wear a shade 10-13 helmet.", call.data.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("callback was not delivered")
	}
}

func TestHandleMessage_Voice(t *testing.T) {
	h, uc, _ := newRouter()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("sender_id", "+15550002"))
	fw, err := mw.CreateFormFile("audio", "voice note.ogg")
	require.NoError(t, err)
	_, err = fw.Write([]byte("OggS-audio"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/messages", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	msg := uc.last(t)
	assert.Equal(t, entity.MessageKindVoice, msg.Kind)
	assert.Equal(t, []byte("OggS-audio"), msg.Audio)
	assert.Equal(t, "voice_note.ogg", msg.AudioFilename)
}
