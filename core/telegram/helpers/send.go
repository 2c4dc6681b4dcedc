package helpers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/calcbot/core/logger"
	"github.com/m3rciful/calcbot/core/telegram/sender"
	"github.com/m3rciful/calcbot/core/telegram/state"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

// Delivery describes one outbound message for the current chat.
type Delivery struct {
	Text    string
	Options *tele.SendOptions
	// Delay postpones the message; a typing action is shown meanwhile.
	Delay time.Duration
}

// Deliver queues d on the chat's ordered lane. ctx bounds the delay: cancelling
// it drops the message if it has not been sent yet. Without a dispatcher the
// message is sent inline. A job the queue rejects is dropped and the error
// returned, since sending it inline could overtake replies still on the lane.
func Deliver(ctx context.Context, c tele.Context, d Delivery) error {
	if ctx == nil {
		ctx = BuildContext(c)
	}
	run := func() error {
		if d.Options != nil {
			return c.Send(d.Text, d.Options)
		}
		return c.Send(d.Text)
	}
	var before func() error
	if d.Delay > 0 {
		before = func() error { return c.Notify(tele.Typing) }
	}

	disp := currentDispatcher()
	if disp == nil {
		return deliverInline(ctx, d.Delay, before, run)
	}

	err := disp.Enqueue(ctx, sender.Job{
		Key:      state.ChatKey(c),
		Action:   "send.text",
		Endpoint: "sendMessage",
		Delay:    d.Delay,
		Before:   before,
		Run:      run,
	})
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.drop",
			slog.String("action", "send.text"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	if err != nil {
		return fmt.Errorf("deliver: %w", err)
	}
	return nil
}

// SendText sends raw text (no parse mode) to the current recipient without delay.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	d := Delivery{Text: text}
	if len(opts) > 0 {
		d.Options = opts[0]
	}
	return Deliver(BuildContext(c), c, d)
}

func deliverInline(ctx context.Context, delay time.Duration, before, run func() error) error {
	if before != nil {
		_ = before()
	}
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return run()
}
