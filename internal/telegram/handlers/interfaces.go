package handlers

import (
	"context"

	"github.com/futig/safeguard-backend/internal/entity"
)

type AssistantUsecase interface {
	HandleMessage(ctx context.Context, msg *entity.InboundMessage) *entity.Reply
}

// Sender delivers replies to a Telegram chat.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, imageURL, caption string) error
	SendTyping(chatID int64) error
}

type VoiceDownloader interface {
	Download(ctx context.Context, fileID string) ([]byte, error)
}
