package bot

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"photo-relay-bot/internal/config"
)

// MsgSlowDown is replied to ratelimited commands.
const MsgSlowDown = "⏳ Doucement, réessaie dans un instant."

// RateLimiter throttles commands per user and command.
// A key may be used at most once per delay and at most limit times per time span.
type RateLimiter struct {
	delay time.Duration
	span  time.Duration
	limit int

	mu   sync.Mutex
	hits map[string][]time.Time // key: "userID:/command", ascending
	now  func() time.Time
}

// NewRateLimiter creates a RateLimiter from configuration.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		delay: cfg.Delay,
		span:  cfg.TimeSpan,
		limit: cfg.Limit,
		hits:  make(map[string][]time.Time),
		now:   time.Now,
	}
}

// Enabled reports whether any limit is configured.
func (l *RateLimiter) Enabled() bool {
	return l.delay > 0 || l.spanLimited()
}

func (l *RateLimiter) spanLimited() bool {
	return l.limit > 0 && l.span > 0
}

// window is how long a hit stays relevant.
func (l *RateLimiter) window() time.Duration {
	return max(l.delay, l.span)
}

// Allow records a use of key at now and reports whether it is within limits.
// Rejected uses are not recorded.
func (l *RateLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	hits := recent(l.hits[key], now.Add(-l.window()))

	if l.delay > 0 && len(hits) > 0 && now.Sub(hits[len(hits)-1]) < l.delay {
		l.hits[key] = hits
		return false
	}
	if l.spanLimited() && len(recent(hits, now.Add(-l.span))) >= l.limit {
		l.hits[key] = hits
		return false
	}

	l.hits[key] = append(hits, now)
	return true
}

// Prune forgets keys without recent hits and returns how many were dropped.
func (l *RateLimiter) Prune(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window())
	dropped := 0
	for key, hits := range l.hits {
		if hits = recent(hits, cutoff); len(hits) == 0 {
			delete(l.hits, key)
			dropped++
		} else {
			l.hits[key] = hits
		}
	}
	return dropped
}

// Len returns the number of tracked keys.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

// recent returns the hits strictly after cutoff.
func recent(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// commandOf returns the bot command of a message text, without its @bot suffix.
func commandOf(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(fields[0], "@")
	return strings.ToLower(cmd)
}

// RateLimitMiddleware creates a middleware that throttles commands per user.
func RateLimitMiddleware(l *RateLimiter) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			cmd := commandOf(c.Text())
			if sender == nil || cmd == "" || !l.Enabled() {
				return next(c)
			}

			if !l.Allow(fmt.Sprintf("%d:%s", sender.ID, cmd), l.now()) {
				log.Debug().
					Int64("user_id", sender.ID).
					Str("command", cmd).
					Msg("Command ratelimited")
				return c.Reply(MsgSlowDown)
			}
			return next(c)
		}
	}
}
