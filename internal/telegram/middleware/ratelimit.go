package middleware

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/futig/safeguard-backend/internal/telegram/render"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	warningInterval = 30 * time.Second
	inactiveAfter   = time.Hour
)

// userLimit is the flood state of one user
type userLimit struct {
	limiter       *rate.Limiter
	mu            sync.Mutex
	warningsSent  int
	lastWarningAt time.Time
}

// FloodMiddleware drops bursts of updates from one user before they reach the assistant.
// It complements the per-sender hourly quota, which counts answered questions.
type FloodMiddleware struct {
	users    *cache.Cache
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	notifier Notifier
	now      func() time.Time
}

func NewFloodMiddleware(requestsPerMinute, burst int, notifier Notifier) *FloodMiddleware {
	return &FloodMiddleware{
		users:    cache.New(inactiveAfter, 10*time.Minute),
		limit:    rate.Limit(float64(requestsPerMinute) / 60),
		burst:    max(burst, 1),
		notifier: notifier,
		now:      time.Now,
	}
}

func (m *FloodMiddleware) Handle(ctx context.Context, update tgbotapi.Update, next Next) {
	userID, chatID := updateIDs(update)
	if userID == 0 {
		next(ctx, update)
		return
	}

	if warning, ok := m.allow(userID); !ok {
		ctxzap.Warn(ctx, "telegram flood limit exceeded")
		if warning != "" {
			_ = m.notifier.SendText(ctx, chatID, warning)
		}
		return
	}

	next(ctx, update)
}

// allow reports whether the update may pass, and the warning to send when it may not.
func (m *FloodMiddleware) allow(userID int64) (string, bool) {
	user := m.user(userID)
	now := m.now()

	user.mu.Lock()
	defer user.mu.Unlock()

	if user.limiter.AllowN(now, 1) {
		user.warningsSent = 0
		return "", true
	}

	if now.Sub(user.lastWarningAt) < warningInterval {
		return "", false
	}
	user.warningsSent++
	user.lastWarningAt = now
	return render.FloodWarning(user.warningsSent), false
}

func (m *FloodMiddleware) user(userID int64) *userLimit {
	key := strconv.FormatInt(userID, 10)

	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.users.Get(key); ok {
		m.users.SetDefault(key, v)
		return v.(*userLimit)
	}

	user := &userLimit{limiter: rate.NewLimiter(m.limit, m.burst)}
	m.users.SetDefault(key, user)
	return user
}
