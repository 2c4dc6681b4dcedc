package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/calcbot/core/telegram/helpers"
)

func newContext(t *testing.T, updateID int, userID int64, text string) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return bot.NewContext(tele.Update{
		ID: updateID,
		Message: &tele.Message{
			Text:   text,
			Sender: &tele.User{ID: userID, Username: "vasya"},
			Chat:   &tele.Chat{ID: userID, Type: tele.ChatPrivate},
		},
	})
}

func TestLimiterAllow(t *testing.T) {
	lim := newLimiter(time.Second)
	now := time.Now()

	assert.True(t, lim.allow(1, now))
	assert.False(t, lim.allow(1, now.Add(500*time.Millisecond)))
	assert.True(t, lim.allow(2, now.Add(500*time.Millisecond)))
	assert.True(t, lim.allow(1, now.Add(1500*time.Millisecond)))
}

func TestRateLimitMiddlewareDropsBurst(t *testing.T) {
	var handled, limited int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	h := mw(func(tele.Context) error { handled++; return nil })

	require.NoError(t, h(newContext(t, 1, 10, "/start")))
	require.NoError(t, h(newContext(t, 2, 10, "/name: Vasya")))
	require.NoError(t, h(newContext(t, 3, 11, "/start")))

	assert.Equal(t, 2, handled)
	assert.Equal(t, 1, limited)
}

func TestRateLimitMiddlewareHonoursExclusions(t *testing.T) {
	var handled int
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"message": {}},
	})
	h := mw(func(tele.Context) error { handled++; return nil })

	for i := 0; i < 3; i++ {
		require.NoError(t, h(newContext(t, i, 10, "+")))
	}
	assert.Equal(t, 3, handled)
}

func TestLoggerMiddlewareStoresContext(t *testing.T) {
	c := newContext(t, 42, 7, "/start")
	var rid string
	h := LoggerMiddleware(func(c tele.Context) error {
		rid, _ = c.Get("rid").(string)
		_, ok := tghelpers.ContextFrom(c)
		assert.True(t, ok)
		return nil
	})

	require.NoError(t, h(c))
	assert.Equal(t, "42:7:7", rid)
}

func TestRecoverMiddlewareSwallowsPanic(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	assert.NotPanics(t, func() { _ = h(newContext(t, 1, 1, "x")) })
}

func TestSeenUpdatesFirstTime(t *testing.T) {
	s := &seenUpdates{at: make(map[int]time.Time), keepFor: time.Second}
	now := time.Now()

	assert.True(t, s.firstTime(1, now))
	assert.False(t, s.firstTime(1, now))
	assert.True(t, s.firstTime(1, now.Add(2*time.Second)))
}

func TestLimiterSweepsStaleUsers(t *testing.T) {
	lim := newLimiter(time.Second)
	start := time.Now()
	for i := 0; i < sweepEvery-1; i++ {
		require.True(t, lim.allow(int64(i), start))
	}
	require.True(t, lim.allow(-1, start.Add(time.Minute)))
	assert.Len(t, lim.seen, 1)
}

func TestRateLimitMiddlewareDisabled(t *testing.T) {
	var handled int
	h := RateLimitMiddleware(RateLimitOptions{})(func(tele.Context) error { handled++; return nil })
	for i := 0; i < 3; i++ {
		require.NoError(t, h(newContext(t, i, 10, "/start")))
	}
	assert.Equal(t, 3, handled)
}
