package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/calcbot/core/logger"
	tghelpers "github.com/m3rciful/calcbot/core/telegram/helpers"
)

// seenUpdates remembers recently logged update ids so a receipt is logged once
// even when the middleware is attached to several branches.
type seenUpdates struct {
	mu      sync.Mutex
	at      map[int]time.Time
	keepFor time.Duration
}

func (s *seenUpdates) firstTime(updateID int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ts := range s.at {
		if now.Sub(ts) > s.keepFor {
			delete(s.at, id)
		}
	}
	if _, ok := s.at[updateID]; ok {
		return false
	}
	s.at[updateID] = now
	return true
}

var receipts = &seenUpdates{at: make(map[int]time.Time), keepFor: 10 * time.Second}

// LoggerMiddleware sets the request id, stores the logging context for
// downstream helpers and logs a single receipt line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.NewContext(c)
		upd, user, chat := c.Update(), c.Sender(), c.Chat()

		if logger.ShouldSampleDebug() && receipts.firstTime(upd.ID, time.Now()) {
			attrs := []slog.Attr{slog.String("status", "ok")}
			if chat != nil {
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if user != nil {
				if user.Username != "" {
					attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
				}
				if user.LanguageCode != "" {
					attrs = append(attrs, slog.String("lang", user.LanguageCode))
				}
			}
			if t := c.Text(); t != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
			}
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "update.received", attrs...)
		}

		return next(c)
	}
}
