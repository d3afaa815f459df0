// Package guard gates inbound messages: rate limit, length and prompt-injection checks.
package guard

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/futig/safeguard-backend/internal/config"
	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Guard struct {
	limiter   *RateLimiter
	screen    *InjectionScreen
	maxLength int
}

func New(cfg config.GuardConfig, rules config.InjectionRules) (*Guard, error) {
	screen, err := NewInjectionScreen(rules)
	if err != nil {
		return nil, err
	}

	return &Guard{
		limiter:   NewRateLimiter(cfg.RateLimit, cfg.RateWindow),
		screen:    screen,
		maxLength: cfg.MaxMessageLength,
	}, nil
}

// Check runs the checks in order and returns the sanitized text.
// A sender over quota is rejected before anything else. The quota slot itself is only
// consumed once the message has passed the length and injection checks.
func (g *Guard) Check(ctx context.Context, senderID, text string) (string, error) {
	log := ctxzap.Extract(ctx)

	if err := g.limiter.Peek(senderID); err != nil {
		log.Warn("sender over rate limit", zap.Error(err))
		return "", err
	}

	clean := Sanitize(text)
	if n := utf8.RuneCountInString(clean); n > g.maxLength {
		log.Info("message rejected as too long", zap.Int("length", n), zap.Int("max", g.maxLength))
		return "", &entity.MessageTooLongError{Length: n, Max: g.maxLength}
	}

	if rule := g.screen.Match(clean); rule != "" {
		log.Warn("message flagged by injection screen", zap.String("rule", rule))
		return "", entity.ErrSuspiciousInput
	}

	if err := g.limiter.Take(senderID); err != nil {
		log.Warn("sender over rate limit", zap.Error(err))
		return "", err
	}

	return clean, nil
}

// Remaining reports the sender's remaining quota in the current window.
func (g *Guard) Remaining(senderID string) int {
	return g.limiter.Remaining(senderID)
}

// Sanitize drops control characters (keeping newlines and tabs) and trims surrounding space.
func Sanitize(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, text)
	return strings.TrimSpace(cleaned)
}
