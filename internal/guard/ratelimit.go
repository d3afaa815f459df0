package guard

import (
	"sync"
	"time"

	"github.com/futig/safeguard-backend/internal/entity"
	"github.com/patrickmn/go-cache"
)

// RateLimiter keeps a rolling window of message timestamps per sender.
// Entries expire from the store once the sender has been quiet for a full window.
type RateLimiter struct {
	mu     sync.Mutex
	store  *cache.Cache
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		store:  cache.New(window, window),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Peek reports whether sender is currently over quota without recording anything.
func (r *RateLimiter) Peek(senderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	_, err := r.check(r.recent(senderID, now), now)
	return err
}

// Take records one message for sender if the quota allows it.
func (r *RateLimiter) Take(senderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	stamps, err := r.check(r.recent(senderID, now), now)
	if err != nil {
		return err
	}

	r.store.Set(senderID, append(stamps, now), r.window)
	return nil
}

// Remaining returns how many messages sender may still send in the current window.
func (r *RateLimiter) Remaining(senderID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return max(r.limit-len(r.recent(senderID, r.now())), 0)
}

func (r *RateLimiter) check(stamps []time.Time, now time.Time) ([]time.Time, error) {
	if len(stamps) < r.limit {
		return stamps, nil
	}

	// the slot frees up when the oldest counted message leaves the window
	oldest := stamps[len(stamps)-r.limit]
	return stamps, &entity.RateLimitError{RetryAfter: oldest.Add(r.window).Sub(now)}
}

// recent returns the sender's timestamps that are still inside the window.
func (r *RateLimiter) recent(senderID string, now time.Time) []time.Time {
	v, ok := r.store.Get(senderID)
	if !ok {
		return nil
	}

	stamps := v.([]time.Time)
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}

	kept := make([]time.Time, len(stamps)-i, len(stamps)-i+1)
	copy(kept, stamps[i:])
	return kept
}
