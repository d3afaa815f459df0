package middleware

import (
	"context"

	"github.com/futig/safeguard-backend/internal/telegram/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Notifier sends a plain notice to a chat.
type Notifier interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// RecoveryMiddleware turns a panic in the chain into a generic notice to the user
type RecoveryMiddleware struct {
	notifier Notifier
}

func NewRecoveryMiddleware(notifier Notifier) *RecoveryMiddleware {
	return &RecoveryMiddleware{notifier: notifier}
}

func (m *RecoveryMiddleware) Handle(ctx context.Context, update tgbotapi.Update, next Next) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}

		ctxzap.Error(ctx, "panic recovered in telegram handler",
			zap.Any("panic", r),
			zap.Stack("stack"),
		)

		if _, chatID := updateIDs(update); chatID != 0 {
			_ = m.notifier.SendText(ctx, chatID, render.ErrGeneric)
		}
	}()

	next(ctx, update)
}
