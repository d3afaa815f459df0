package message

import (
	"context"

	"github.com/futig/safeguard-backend/internal/entity"
)

type AssistantUsecase interface {
	HandleMessage(ctx context.Context, msg *entity.InboundMessage) *entity.Reply
}

type CallbackConnector interface {
	SendReply(ctx context.Context, callbackURL string, requestID string, data *entity.CallbackReplyData)
}

type MessageValidator interface {
	ValidateMessage(req *entity.MessageRequest) error
	MaxUploadSize() int64
}
