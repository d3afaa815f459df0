package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/futig/safeguard-backend/internal/pkg/retry"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

var _ Sender = &MessageSender{}

// MessageSender sends Markdown replies through the Bot API. Transient failures are retried;
// a reply Telegram cannot parse as Markdown is resent as plain text.
type MessageSender struct {
	bot      *tgbotapi.BotAPI
	retryCfg *retry.RetryConfig
	logger   *zap.Logger
}

func NewMessageSender(bot *tgbotapi.BotAPI, retryCfg *retry.RetryConfig, logger *zap.Logger) *MessageSender {
	return &MessageSender{
		bot:      bot,
		retryCfg: retryCfg,
		logger:   logger,
	}
}

func (s *MessageSender) SendText(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown

	err := s.send(ctx, msg)
	if isParseError(err) {
		ctxzap.Warn(ctx, "reply rejected as markdown, resending as plain text", zap.Error(err))
		msg.ParseMode = ""
		err = s.send(ctx, msg)
	}
	if err != nil {
		ctxzap.Error(ctx, "failed to send message", zap.Error(err), zap.Int64("chat_id", chatID))
	}
	return err
}

func (s *MessageSender) SendPhoto(ctx context.Context, chatID int64, imageURL, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(imageURL))
	photo.Caption = caption
	photo.ParseMode = tgbotapi.ModeMarkdown

	err := s.send(ctx, photo)
	if isParseError(err) {
		photo.ParseMode = ""
		err = s.send(ctx, photo)
	}
	return err
}

func (s *MessageSender) SendTyping(chatID int64) error {
	_, err := s.bot.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}

func (s *MessageSender) send(ctx context.Context, c tgbotapi.Chattable) error {
	_, err := retry.Do(ctx, s.retryCfg, func(context.Context) (tgbotapi.Message, error) {
		m, err := s.bot.Send(c)
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest {
			return m, retry.Permanent(err)
		}
		return m, err
	})
	return err
}

func isParseError(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "can't parse entities")
}
