package telegram

import (
	"context"
	"fmt"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/telegram/bot"
	"github.com/futig/safeguard-backend/internal/telegram/handlers"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Bot is the main telegram bot interface
type Bot interface {
	Start(ctx context.Context) error
	Stop() error
}

// NewBot authorizes with the Bot API and wires the assistant behind the update loop
func NewBot(cfg *config.TelegramConfig, assistant handlers.AssistantUsecase, logger *zap.Logger) (Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}

	logger.Info("telegram bot authorized",
		zap.String("username", api.Self.UserName),
		zap.Int64("id", api.Self.ID),
	)

	sender := handlers.NewMessageSender(api, &cfg.SendRetry, logger)
	handler := handlers.NewMessageHandler(assistant, sender, handlers.NewVoiceDownloader(api), logger)

	return bot.New(api, cfg, handler, sender, logger), nil
}
