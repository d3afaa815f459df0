package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/futig/safeguard-backend/internal/builder"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var environment string

var rootCmd = &cobra.Command{
	Use:          "telegram-bot",
	Short:        "SafeGuardAI Telegram bot",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&environment, "env", envOr("APP_ENV", "local"), "environment name, selects the .env.<name> file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Println("Telegram bot error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	bot, core, err := builder.BuildTelegramBot(environment)
	if err != nil {
		return fmt.Errorf("build telegram bot: %w", err)
	}
	defer core.Close()
	logger := core.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("starting telegram bot...")
		if err := bot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errChan <- err
		}
	}()

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal",
			zap.String("signal", sig.String()))
		cancel()
		if err := bot.Stop(); err != nil {
			logger.Error("error stopping bot",
				zap.Error(err))
		}
		logger.Info("telegram bot stopped gracefully")
		return nil
	case err := <-errChan:
		logger.Error("telegram bot error",
			zap.Error(err))
		return err
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
