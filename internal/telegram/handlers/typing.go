package handlers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Telegram shows a chat action for about five seconds.
const typingInterval = 4 * time.Second

// TypingNotifier keeps the "typing" indicator on while an answer is prepared
type TypingNotifier struct {
	sender Sender
	chatID int64
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func NewTypingNotifier(sender Sender, chatID int64, logger *zap.Logger) *TypingNotifier {
	return &TypingNotifier{
		sender: sender,
		chatID: chatID,
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Start sends the first action immediately and repeats it until Stop or ctx is done.
func (t *TypingNotifier) Start(ctx context.Context) {
	t.send()

	go func() {
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t.send()
			case <-t.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop is safe to call more than once
func (t *TypingNotifier) Stop() {
	t.once.Do(func() { close(t.done) })
}

func (t *TypingNotifier) send() {
	if err := t.sender.SendTyping(t.chatID); err != nil {
		t.logger.Debug("failed to send typing action",
			zap.Error(err),
			zap.Int64("chat_id", t.chatID),
		)
	}
}
