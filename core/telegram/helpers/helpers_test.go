package helpers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/calcbot/core/logger"
	"github.com/m3rciful/calcbot/core/telegram/sender"
)

func newContext(t *testing.T) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	return bot.NewContext(tele.Update{
		ID: 12,
		Message: &tele.Message{
			Text:   "/start",
			Sender: &tele.User{ID: 34},
			Chat:   &tele.Chat{ID: 56},
		},
	})
}

func TestBuildContextCachesMetadata(t *testing.T) {
	c := newContext(t)

	ctx := BuildContext(c)
	assert.Equal(t, "12:56:34", logger.RIDFrom(ctx))
	assert.Equal(t, int64(56), logger.ChatIDFrom(ctx))
	assert.Equal(t, int64(34), logger.UserIDFrom(ctx))
	assert.Equal(t, 12, logger.UpdateIDFrom(ctx))

	again := BuildContext(c)
	assert.Equal(t, ctx, again)

	withHandler := WithHandler(c, "start")
	assert.Equal(t, "start", logger.HandlerFrom(withHandler))
	cached, ok := ContextFrom(c)
	require.True(t, ok)
	assert.Equal(t, "start", logger.HandlerFrom(cached))
}

func TestDeliverInlineHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var before, ran bool
	err := deliverInline(ctx, time.Minute,
		func() error { before = true; return nil },
		func() error { ran = true; return nil },
	)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, before)
	assert.False(t, ran)
}

func TestDeliverInlineWaitsThenRuns(t *testing.T) {
	start := time.Now()
	var ran bool
	err := deliverInline(context.Background(), 20*time.Millisecond, nil, func() error { ran = true; return nil })

	require.NoError(t, err)
	assert.True(t, ran)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestParticipantsWithoutChat(t *testing.T) {
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	require.NoError(t, err)
	c := bot.NewContext(tele.Update{ID: 3})

	chatID, userID := Participants(c)
	assert.Zero(t, chatID)
	assert.Zero(t, userID)
	assert.Equal(t, "3:0:0", logger.RIDFrom(NewContext(c)))
}

func TestDeliverDropsMessageTheQueueRejects(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"ok":true,"result":{}}`))
	}))
	defer srv.Close()

	bot, err := tele.NewBot(tele.Settings{URL: srv.URL, Offline: true})
	require.NoError(t, err)
	c := bot.NewContext(tele.Update{ID: 1, Message: &tele.Message{
		Sender: &tele.User{ID: 7},
		Chat:   &tele.Chat{ID: 7},
	}})

	disp := sender.NewDispatcher(sender.Options{QueueSize: 1, Workers: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, disp.Enqueue(context.Background(), sender.Job{Key: 7, Run: func() error {
		close(started)
		<-release
		return nil
	}}))
	<-started
	require.NoError(t, disp.Enqueue(context.Background(), sender.Job{Key: 7, Run: func() error { return nil }}))

	SetDispatcher(disp)
	t.Cleanup(func() { SetDispatcher(nil) })

	err = Deliver(context.Background(), c, Delivery{Text: "late"})
	assert.ErrorIs(t, err, sender.ErrQueueFull)

	close(release)
	disp.Close()
	assert.Zero(t, calls.Load())
}
