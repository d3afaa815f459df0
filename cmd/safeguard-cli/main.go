// Command safeguard-cli manages the safety document index and asks the assistant
// questions from a terminal. Use a pgvector or qdrant backend so changes outlive
// the process.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/futig/safeguard-backend/internal/builder"
	"github.com/spf13/cobra"
)

var (
	environment string
	core        *builder.Core
)

var rootCmd = &cobra.Command{
	Use:          "safeguard-cli",
	Short:        "SafeGuardAI document and assistant administration",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := builder.BuildCLI(cmd.Context(), environment)
		if err != nil {
			return err
		}
		core = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if core != nil {
			core.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&environment, "env", envOr("APP_ENV", "local"), "environment name, selects the .env.<name> file")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
