package message

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/pkg/logger"
	"github.com/futig/safeguard-backend/internal/pkg/response"
	"github.com/futig/safeguard-backend/internal/pkg/validator"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Handler struct {
	usecase      AssistantUsecase
	callbackConn CallbackConnector
	validator    MessageValidator
}

func NewHandler(usecase AssistantUsecase, validator MessageValidator, callbackConn CallbackConnector) *Handler {
	return &Handler{
		usecase:      usecase,
		validator:    validator,
		callbackConn: callbackConn,
	}
}

// HandleMessage handles POST /messages.
// Without a callback_url the reply is returned in the response body. With one, the
// request is accepted and the reply is delivered to the callback when ready.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WithAction(r.Context(), "HandleMessage")

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = middleware.GetReqID(ctx)
	}

	msg, callbackURL, err := h.parse(w, r)
	if err != nil {
		response.Error(ctx, w, http.StatusBadRequest, err.Error(), err)
		return
	}

	if callbackURL == "" {
		reply := h.usecase.HandleMessage(ctx, msg)
		response.Success(ctx, w, reply)
		return
	}

	response.Accepted(ctx, w, "message is being processed")

	go func() {
		bgCtx := logger.AddFields(ctxzap.ToContext(context.Background(), ctxzap.Extract(ctx)),
			zap.String("action", "HandleMessage-async"),
		)

		reply := h.usecase.HandleMessage(bgCtx, msg)
		h.callbackConn.SendReply(bgCtx, callbackURL, requestID, &entity.CallbackReplyData{
			SenderID: msg.SenderID,
			Text:     reply.Text,
			ImageURL: reply.ImageURL,
		})
	}()
}

// parse reads a JSON text message or a multipart voice message.
func (h *Handler) parse(w http.ResponseWriter, r *http.Request) (*entity.InboundMessage, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		return h.parseVoice(w, r)
	}

	var req entity.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, "", fmt.Errorf("%w: invalid request body", entity.ErrInvalidFormat)
	}
	if err := h.validator.ValidateMessage(&req); err != nil {
		return nil, "", err
	}

	return &entity.InboundMessage{
		SenderID: req.SenderID,
		Text:     req.Text,
		Kind:     req.Kind,
	}, req.CallbackURL, nil
}

func (h *Handler) parseVoice(w http.ResponseWriter, r *http.Request) (*entity.InboundMessage, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.validator.MaxUploadSize())
	if err := r.ParseMultipartForm(h.validator.MaxUploadSize()); err != nil {
		return nil, "", fmt.Errorf("%w: invalid form data or size too large", entity.ErrInvalidFormat)
	}

	senderID := strings.TrimSpace(r.FormValue("sender_id"))
	if senderID == "" {
		return nil, "", fmt.Errorf("%w: sender_id", entity.ErrMissingField)
	}

	callbackURL := r.FormValue("callback_url")
	if callbackURL != "" {
		if err := validator.ValidateCallbackURL(callbackURL); err != nil {
			return nil, "", err
		}
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		return nil, "", fmt.Errorf("%w: audio", entity.ErrMissingField)
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read audio", entity.ErrInvalidFile)
	}

	return &entity.InboundMessage{
		SenderID:      senderID,
		Kind:          entity.MessageKindVoice,
		Audio:         audio,
		AudioFilename: validator.SanitizeFilename(header.Filename),
	}, callbackURL, nil
}
