package commands

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// cooldown allows one call per user per period, each user with their own bucket.
// Buckets that have refilled are dropped, since a fresh one behaves the same.
type cooldown struct {
	period time.Duration
	now    func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newCooldown(period time.Duration, now func() time.Time) *cooldown {
	if now == nil {
		now = time.Now
	}
	return &cooldown{period: period, now: now, limiters: make(map[string]*rate.Limiter)}
}

// take consumes user's token. When the user is still cooling down it returns
// false and how long until the next call is allowed.
func (c *cooldown) take(user string) (bool, time.Duration) {
	if c.period <= 0 {
		return true, 0
	}
	now := c.now()

	c.mu.Lock()
	c.pruneLocked(now)
	lim, ok := c.limiters[user]
	if !ok {
		lim = rate.NewLimiter(rate.Every(c.period), 1)
		c.limiters[user] = lim
	}
	c.mu.Unlock()

	r := lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (c *cooldown) pruneLocked(now time.Time) {
	for user, lim := range c.limiters {
		if lim.TokensAt(now) >= float64(lim.Burst()) {
			delete(c.limiters, user)
		}
	}
}

func (c *cooldown) tracked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.limiters)
}
