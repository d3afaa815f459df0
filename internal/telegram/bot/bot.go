package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/telegram/handlers"
	"github.com/futig/safeguard-backend/internal/telegram/middleware"
	"github.com/futig/safeguard-backend/internal/telegram/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

// Bot receives updates by long polling and answers each one in its own goroutine
type Bot struct {
	api     *tgbotapi.BotAPI
	cfg     *config.TelegramConfig
	handler *handlers.MessageHandler
	sender  handlers.Sender
	logger  *zap.Logger

	loggingMW  *middleware.LoggingMiddleware
	recoveryMW *middleware.RecoveryMiddleware
	floodMW    *middleware.FloodMiddleware

	// bounds the number of updates answered at once
	slots       chan struct{}
	updatesChan tgbotapi.UpdatesChannel
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

func New(
	api *tgbotapi.BotAPI,
	cfg *config.TelegramConfig,
	handler *handlers.MessageHandler,
	sender handlers.Sender,
	logger *zap.Logger,
) *Bot {
	return &Bot{
		api:        api,
		cfg:        cfg,
		handler:    handler,
		sender:     sender,
		logger:     logger,
		loggingMW:  middleware.NewLoggingMiddleware(logger),
		recoveryMW: middleware.NewRecoveryMiddleware(sender),
		floodMW:    middleware.NewFloodMiddleware(cfg.FloodPerMinute, cfg.FloodBurst, sender),
		slots:      make(chan struct{}, max(cfg.MaxConcurrentUsers, 1)),
		stopChan:   make(chan struct{}),
	}
}

// Start starts the bot
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info("starting telegram bot",
		zap.String("username", b.api.Self.UserName),
	)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.UpdateTimeout
	b.updatesChan = b.api.GetUpdatesChan(u)

	go b.processUpdates(ctxzap.ToContext(ctx, b.logger))

	b.logger.Info("telegram bot started successfully")
	return nil
}

// Stop stops receiving updates and waits for the answers in flight
func (b *Bot) Stop() error {
	b.logger.Info("stopping telegram bot")

	close(b.stopChan)
	b.api.StopReceivingUpdates()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	shutdownTimeout := time.Duration(b.cfg.ShutdownTimeout) * time.Second
	select {
	case <-done:
		b.logger.Info("all handlers completed gracefully")
	case <-time.After(shutdownTimeout):
		b.logger.Warn("shutdown timeout exceeded, some handlers may not have completed",
			zap.Duration("timeout", shutdownTimeout),
		)
		return fmt.Errorf("shutdown timeout exceeded")
	}

	b.logger.Info("telegram bot stopped successfully")
	return nil
}

func (b *Bot) processUpdates(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			ctxzap.Info(ctx, "context cancelled, stopping update processing")
			return
		case <-b.stopChan:
			ctxzap.Info(ctx, "stop signal received, stopping update processing")
			return
		case update, ok := <-b.updatesChan:
			if !ok {
				return
			}

			b.slots <- struct{}{}
			b.wg.Add(1)
			go func(u tgbotapi.Update) {
				defer func() {
					<-b.slots
					b.wg.Done()
				}()
				b.handleUpdateWithMiddleware(ctx, u)
			}(update)
		}
	}
}

// handleUpdateWithMiddleware runs logging, recovery and flood control before the handler
func (b *Bot) handleUpdateWithMiddleware(ctx context.Context, update tgbotapi.Update) {
	b.loggingMW.Handle(ctx, update, func(ctx context.Context, u tgbotapi.Update) {
		b.recoveryMW.Handle(ctx, u, func(ctx context.Context, u tgbotapi.Update) {
			b.floodMW.Handle(ctx, u, b.handleUpdate)
		})
	})
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.From == nil || message.Chat == nil {
		return
	}
	chatID := message.Chat.ID

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	if message.Text == "" && message.Voice == nil {
		b.reply(ctx, chatID, render.ErrUnsupported)
		return
	}

	msg := &handlers.Message{
		ChatID:    chatID,
		UserID:    message.From.ID,
		MessageID: message.MessageID,
		Text:      message.Text,
		Voice:     message.Voice,
	}
	if err := b.handler.Handle(ctx, msg); err != nil {
		ctxzap.Error(ctx, "failed to deliver reply", zap.Error(err))
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	command := message.Command()
	ctxzap.Info(ctx, "command received", zap.String("command", command))

	switch command {
	case "start":
		b.reply(ctx, message.Chat.ID, render.MsgWelcome)
	case "help":
		b.reply(ctx, message.Chat.ID, render.MsgHelp)
	default:
		b.reply(ctx, message.Chat.ID, render.ErrUnknownCmd)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if err := b.sender.SendText(ctx, chatID, text); err != nil {
		ctxzap.Error(ctx, "failed to send message", zap.Error(err))
	}
}
