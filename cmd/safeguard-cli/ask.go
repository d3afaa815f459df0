package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/spf13/cobra"
)

var (
	askSender string
	askText   string
	askAudio  string
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Send one message through the assistant and print the reply",
	RunE: func(cmd *cobra.Command, args []string) error {
		msg := &entity.InboundMessage{
			SenderID: askSender,
			Text:     askText,
			Kind:     entity.MessageKindText,
		}

		if askAudio != "" {
			audio, err := os.ReadFile(askAudio)
			if err != nil {
				return fmt.Errorf("read %s: %w", askAudio, err)
			}
			msg.Kind = entity.MessageKindVoice
			msg.Text = ""
			msg.Audio = audio
			msg.AudioFilename = filepath.Base(askAudio)
		} else if askText == "" {
			return fmt.Errorf("either --text or --audio is required")
		}

		reply := core.Assistant.HandleMessage(cmd.Context(), msg)
		cmd.Println(reply.Text)
		if reply.ImageURL != "" {
			cmd.Println()
			cmd.Println("Image:", reply.ImageURL)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askSender, "sender", "cli", "sender id used for rate limiting and the audit log")
	askCmd.Flags().StringVar(&askText, "text", "", "message text")
	askCmd.Flags().StringVar(&askAudio, "audio", "", "path to a voice recording to transcribe instead of --text")
	rootCmd.AddCommand(askCmd)
}
