package main

import (
	"log"
	"os"

	"github.com/futig/safeguard-backend/internal/builder"
	"github.com/spf13/cobra"
)

var environment string

var rootCmd = &cobra.Command{
	Use:   "safeguard-api",
	Short: "SafeGuardAI HTTP API",
	Long: `Serves the message endpoint used by WhatsApp and other channels,
and the document administration endpoints.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := builder.Build(environment)
		if err != nil {
			return err
		}
		return app.Run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&environment, "env", envOr("APP_ENV", "local"), "environment name, selects the .env.<name> file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Println("Application error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
