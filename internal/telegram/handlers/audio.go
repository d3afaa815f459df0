package handlers

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/exec"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	maxVoiceFileSize = 10 * 1024 * 1024 // 10 MB
	downloadTimeout  = 30 * time.Second
)

// TelegramVoiceDownloader fetches voice notes and converts them to 16 kHz mono WAV for speech recognition.
type TelegramVoiceDownloader struct {
	bot    *tgbotapi.BotAPI
	client *http.Client
}

func NewVoiceDownloader(bot *tgbotapi.BotAPI) *TelegramVoiceDownloader {
	return &TelegramVoiceDownloader{
		bot: bot,
		client: &http.Client{
			Timeout: downloadTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
	}
}

func (d *TelegramVoiceDownloader) Download(ctx context.Context, fileID string) ([]byte, error) {
	file, err := d.bot.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("get file info: %w", err)
	}
	if file.FileSize > maxVoiceFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", file.FileSize, maxVoiceFileSize)
	}

	fileURL := file.Link(d.bot.Token)
	parsedURL, err := url.Parse(fileURL)
	if err != nil {
		return nil, fmt.Errorf("invalid file URL: %w", err)
	}
	if parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("insecure URL scheme: %s (expected https)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxVoiceFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file data: %w", err)
	}
	if len(data) > maxVoiceFileSize {
		return nil, fmt.Errorf("file too large: more than %d bytes", maxVoiceFileSize)
	}

	return convertToWav(ctx, data)
}

// convertToWav pipes OGG/Opus voice data through ffmpeg.
func convertToWav(ctx context.Context, input []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-i", "pipe:0",
		"-f", "wav",
		"-ar", "16000",
		"-ac", "1",
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("ffmpeg convert to wav: %w, stderr: %s", err, stderr.String())
		}
		return nil, fmt.Errorf("ffmpeg convert to wav: %w", err)
	}

	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg convert to wav: empty output")
	}
	return stdout.Bytes(), nil
}
