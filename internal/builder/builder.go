package builder

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/futig/safeguard-backend/internal/api"
	documentapi "github.com/futig/safeguard-backend/internal/api/document"
	messageapi "github.com/futig/safeguard-backend/internal/api/message"
	"github.com/futig/safeguard-backend/internal/integration/callback"
	"github.com/futig/safeguard-backend/internal/pkg/formatter"
	"github.com/futig/safeguard-backend/internal/telegram"
	"go.uber.org/zap"
)

// Build wires the HTTP API
func Build(environment string) (*App, error) {
	ctx := context.Background()

	cfg, logger, err := loadConfig(environment)
	if err != nil {
		return nil, err
	}

	logger.Info("Building application",
		zap.String("environment", cfg.Environment),
		zap.String("server_addr", cfg.ServerAddr),
		zap.String("index_backend", cfg.RAGCfg.IndexBackend),
	)

	core, err := BuildCore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	var callbackConnector messageapi.CallbackConnector
	if cfg.EnableMocks {
		callbackConnector = callback.NewMockConnector(logger)
	} else {
		callbackConnector = callback.NewConnector(cfg.CallbackConnectorCfg, logger)
	}

	documentHandler := documentapi.NewHandler(core.Documents, core.Validator)
	messageHandler := messageapi.NewHandler(core.Assistant, core.Validator, callbackConnector)
	logger.Info("API handlers initialized")

	router := api.SetupRouter(documentHandler, messageHandler, logger)

	server := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("Application built successfully",
		zap.String("environment", cfg.Environment),
	)

	return &App{
		server: server,
		core:   core,
		logger: logger,
	}, nil
}

// BuildTelegramBot wires the assistant behind the Telegram bot. Replies use Telegram markup.
func BuildTelegramBot(environment string) (telegram.Bot, *Core, error) {
	ctx := context.Background()

	cfg, logger, err := loadConfig(environment)
	if err != nil {
		return nil, nil, err
	}
	if cfg.TelegramCfg.BotToken == "" {
		return nil, nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required for the telegram bot")
	}
	cfg.PipelineCfg.Channel = formatter.ChannelTelegram

	logger.Info("Building Telegram bot",
		zap.String("environment", cfg.Environment),
	)

	core, err := BuildCore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	bot, err := telegram.NewBot(&cfg.TelegramCfg, core.Assistant, logger)
	if err != nil {
		core.Close()
		return nil, nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	logger.Info("Telegram bot built successfully",
		zap.String("environment", cfg.Environment),
	)
	return bot, core, nil
}

// BuildCLI wires the core for one-shot administrative commands
func BuildCLI(ctx context.Context, environment string) (*Core, error) {
	cfg, logger, err := loadConfig(environment)
	if err != nil {
		return nil, err
	}
	return BuildCore(ctx, cfg, logger)
}
