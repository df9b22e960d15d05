package middleware

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/m3rciful/langbot/core/logger"
	tghelpers "github.com/m3rciful/langbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Update kinds understood by RateLimitOptions.Exclude.
const (
	KindMessage     = "message"
	KindCallback    = "callback"
	KindInlineQuery = "inline_query"
	KindOther       = "other"
)

// UpdateKind classifies u for rate limiting and logs.
func UpdateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return KindCallback
	case u.Message != nil:
		return KindMessage
	case u.Query != nil:
		return KindInlineQuery
	default:
		return KindOther
	}
}

// RateLimitOptions configures RateLimit.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude lists update kinds that are never limited.
	Exclude   []string
	OnLimited tele.HandlerFunc
	now       func() time.Time
}

// limiter remembers when each user was last let through.
type limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     map[int64]time.Time
}

// pruneAt is the map size above which stale users are forgotten.
const pruneAt = 4096

func (l *limiter) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seen, ok := l.last[userID]; ok && now.Sub(seen) < l.interval {
		return false
	}
	if len(l.last) >= pruneAt {
		for id, seen := range l.last {
			if now.Sub(seen) >= l.interval {
				delete(l.last, id)
			}
		}
	}
	l.last[userID] = now
	return true
}

// RateLimit drops updates that arrive from the same user within
// opts.Interval of the last accepted one.
func RateLimit(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Interval <= 0 {
		return func(next tele.HandlerFunc) tele.HandlerFunc { return next }
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}
	l := &limiter{interval: opts.Interval, last: make(map[int64]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			kind := UpdateKind(c.Update())
			if user == nil || slices.Contains(opts.Exclude, kind) || l.allow(user.ID, now()) {
				return next(c)
			}
			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				return opts.OnLimited(c)
			}
			return nil
		}
	}
}
