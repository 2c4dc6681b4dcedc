package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/calcbot/core/logger"
	tghelpers "github.com/m3rciful/calcbot/core/telegram/helpers"
)

// RateLimitOptions configures RateLimitMiddleware. Exclude holds update kinds
// (callback, message, inline_query) that are never throttled.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// sweepEvery bounds how many accepted updates pass between stale-entry sweeps.
const sweepEvery = 1024

type limiter struct {
	interval time.Duration

	mu      sync.Mutex
	seen    map[int64]time.Time
	counter int
}

func newLimiter(interval time.Duration) *limiter {
	return &limiter{interval: interval, seen: make(map[int64]time.Time)}
}

// allow reports whether id may pass at now and, if so, remembers the time.
func (l *limiter) allow(id int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.seen[id]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.seen[id] = now
	if l.counter++; l.counter%sweepEvery == 0 {
		for k, last := range l.seen {
			if now.Sub(last) >= l.interval {
				delete(l.seen, k)
			}
		}
	}
	return true
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Query != nil:
		return "inline_query"
	case upd.Message != nil:
		return "message"
	default:
		return "other"
	}
}

// RateLimitMiddleware drops updates from a user that arrive sooner than
// Interval after the previous one. OnLimited, if set, may answer the user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Interval <= 0 {
		return func(next tele.HandlerFunc) tele.HandlerFunc { return next }
	}
	lim := newLimiter(opts.Interval)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return next(c)
			}
			if _, skip := opts.Exclude[updateKind(c.Update())]; skip || lim.allow(user.ID, time.Now()) {
				return next(c)
			}

			logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelWarn, "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.Bool("rate_limited", true),
				slog.String("update_kind", updateKind(c.Update())),
			)
			if opts.OnLimited == nil {
				return nil
			}
			if err := opts.OnLimited(c); err != nil {
				logger.LogEvent(tghelpers.BuildContext(c), logger.TG, slog.LevelDebug, "tg.rate_limit.reply",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
			}
			return nil
		}
	}
}
