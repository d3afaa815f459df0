package handlers

import (
	"context"
	"strconv"
	"unicode/utf8"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/futig/safeguard-backend/internal/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Telegram rejects photo captions longer than this.
const photoCaptionLimit = 1024

// Message represents a normalized Telegram message
type Message struct {
	ChatID    int64
	UserID    int64
	MessageID int
	Text      string
	Voice     *tgbotapi.Voice
}

// MessageHandler answers text and voice messages through the assistant.
type MessageHandler struct {
	assistant AssistantUsecase
	sender    Sender
	voices    VoiceDownloader
	logger    *zap.Logger
}

func NewMessageHandler(assistant AssistantUsecase, sender Sender, voices VoiceDownloader, logger *zap.Logger) *MessageHandler {
	return &MessageHandler{
		assistant: assistant,
		sender:    sender,
		voices:    voices,
		logger:    logger,
	}
}

// SenderID is the rate-limit and audit identity of a Telegram user.
func SenderID(userID int64) string {
	return "tg:" + strconv.FormatInt(userID, 10)
}

// Handle answers one message. Errors are delivery failures only; the assistant itself
// always produces a reply.
func (h *MessageHandler) Handle(ctx context.Context, msg *Message) error {
	ctx = logger.WithAction(ctx, "telegram_message")

	typing := NewTypingNotifier(h.sender, msg.ChatID, h.logger)
	typing.Start(ctx)

	in := &entity.InboundMessage{
		SenderID: SenderID(msg.UserID),
		Text:     msg.Text,
		Kind:     entity.MessageKindText,
	}

	if msg.Voice != nil {
		in.Kind = entity.MessageKindVoice
		in.Text = ""

		// On failure Audio stays empty and the assistant replies that the voice note was not understood.
		audio, err := h.voices.Download(ctx, msg.Voice.FileID)
		if err != nil {
			ctxzap.Warn(ctx, "failed to download voice message",
				zap.Error(err),
				zap.Int("duration", msg.Voice.Duration),
			)
		} else {
			in.Audio = audio
			in.AudioFilename = "voice.wav"
		}
	}

	reply := h.assistant.HandleMessage(ctx, in)
	typing.Stop()

	return h.deliver(ctx, msg.ChatID, reply)
}

// deliver sends the image with the answer as caption, or the answer alone when there is no
// image or the photo cannot be sent.
func (h *MessageHandler) deliver(ctx context.Context, chatID int64, reply *entity.Reply) error {
	if reply.ImageURL == "" {
		return h.sender.SendText(ctx, chatID, reply.Text)
	}

	caption, rest := reply.Text, ""
	if utf8.RuneCountInString(caption) > photoCaptionLimit {
		caption, rest = "", reply.Text
	}

	if err := h.sender.SendPhoto(ctx, chatID, reply.ImageURL, caption); err != nil {
		ctxzap.Warn(ctx, "failed to send photo, sending text only", zap.Error(err))
		return h.sender.SendText(ctx, chatID, reply.Text)
	}

	if rest != "" {
		return h.sender.SendText(ctx, chatID, rest)
	}
	return nil
}
