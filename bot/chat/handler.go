// Package chat binds the dialogue to Telegram: every chat owns one session.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/calcbot/bot/dialogue"
	"github.com/m3rciful/calcbot/bot/journal"
	"github.com/m3rciful/calcbot/bot/pacing"
	"github.com/m3rciful/calcbot/core/logger"
	coretelegram "github.com/m3rciful/calcbot/core/telegram"
	"github.com/m3rciful/calcbot/core/telegram/commands"
	"github.com/m3rciful/calcbot/core/telegram/helpers"
	"github.com/m3rciful/calcbot/core/telegram/keyboard"
	"github.com/m3rciful/calcbot/core/telegram/state"
)

const (
	cmdStart = "/start"
	cmdStop  = "/stop"

	operatorsPerRow = 4
)

// Options configures a Handler.
type Options struct {
	Typing   pacing.Typing
	Journal  journal.Recorder
	Username string
}

type deliverFunc func(ctx context.Context, c tele.Context, d helpers.Delivery) error

// Handler routes text updates into per-chat dialogue sessions.
type Handler struct {
	sessions state.Store[*dialogue.Session]
	typing   pacing.Typing
	journal  journal.Recorder
	username atomic.Value
	deliver  deliverFunc
}

// New builds a Handler with an empty in-memory session store.
func New(opts Options) *Handler {
	h := &Handler{
		sessions: state.NewMemoryStore(dialogue.NewSession),
		typing:   opts.Typing,
		journal:  journal.Quiet(opts.Journal),
		deliver:  helpers.Deliver,
	}
	h.SetUsername(opts.Username)
	return h
}

// SetUsername sets the bot username used to recognise "/start@name" mentions.
func (h *Handler) SetUsername(name string) {
	h.username.Store(strings.TrimPrefix(strings.TrimSpace(name), "@"))
}

// Register adds the menu commands and makes the handler the text fallback.
func (h *Handler) Register(reg *coretelegram.Registry) {
	reg.RegisterCommand(cmdStart, commands.Command{
		Handler:     h.Handle,
		Description: "Начать разговор",
	})
	reg.RegisterCommand(cmdStop, commands.Command{
		Handler:     h.Handle,
		Description: "Завершить разговор",
	})
	reg.SetTextFallback(h.Handle)
}

// Sessions reports the number of chats with a live session.
func (h *Handler) Sessions() int {
	return h.sessions.Len()
}

// Handle submits the update text to the chat's session and sends the reply.
func (h *Handler) Handle(c tele.Context) error {
	ctx := helpers.BuildContext(c)
	text := h.normalize(c.Text())
	userID := logger.UserIDFrom(ctx)

	var err error
	h.sessions.Do(state.ChatKey(c), func(s *dialogue.Session) {
		start := time.Now()
		before, fresh := s.Stage(), s.Fresh()
		in, reply, ok := s.Process(text)
		if !ok {
			return
		}
		if fresh && in.Kind != dialogue.KindStart {
			if err = h.sendIntro(ctx, c, s.Intro()); err != nil {
				return
			}
		}
		after := s.Stage()
		logStep(ctx, in, reply, before, after, start)

		_ = h.journal.Record(ctx, journal.Entry{
			Source:      journal.SourceTelegram,
			ChatID:      state.ChatKey(c),
			UserID:      userID,
			Input:       text,
			InputKind:   in.Kind.String(),
			StageBefore: before.String(),
			StageAfter:  after.String(),
			Reply:       reply.Text,
			ErrCode:     dialogue.ErrorCode(reply.Err),
		})

		err = h.deliver(ctx, c, helpers.Delivery{
			Text:    reply.Text,
			Options: &tele.SendOptions{ReplyMarkup: markupFor(after)},
			Delay:   h.typing.Delay(reply.Text),
		})
	})
	return err
}

// sendIntro tells a chat that opened with anything but /start how to begin.
func (h *Handler) sendIntro(ctx context.Context, c tele.Context, intro string) error {
	return h.deliver(ctx, c, helpers.Delivery{
		Text:    intro,
		Options: &tele.SendOptions{ReplyMarkup: keyboard.RemoveKeyboard()},
		Delay:   h.typing.Delay(intro),
	})
}

// normalize trims text and strips a "@bot" mention addressed to this bot from
// /start and /stop.
func (h *Handler) normalize(text string) string {
	text = strings.TrimSpace(text)
	cmd, mention, ok := strings.Cut(text, "@")
	if !ok || (cmd != cmdStart && cmd != cmdStop) {
		return text
	}
	username, _ := h.username.Load().(string)
	if username != "" && !strings.EqualFold(mention, username) {
		return text
	}
	return cmd
}

func markupFor(stage dialogue.Stage) *tele.ReplyMarkup {
	if stage != dialogue.StageAwaitingOperator {
		return keyboard.RemoveKeyboard()
	}
	labels := make([]string, 0, len(dialogue.Operators))
	for _, op := range dialogue.Operators {
		labels = append(labels, op.String())
	}
	return keyboard.ReplyButtons(keyboard.Chunk(labels, operatorsPerRow)...)
}

func logStep(ctx context.Context, in dialogue.Input, reply dialogue.Reply, from, to dialogue.Stage, start time.Time) {
	level := slog.LevelInfo
	if from == to && reply.Err == nil && !logger.ShouldSampleDebug() {
		level = slog.LevelDebug
	}
	attrs := []slog.Attr{
		slog.String("input_kind", in.Kind.String()),
		slog.String("stage_from", from.String()),
		slog.String("stage_to", to.String()),
		slog.Int("reply_len", len([]rune(reply.Text))),
		slog.Duration("duration", logger.Took(start)),
	}
	if in.Kind == dialogue.KindOperator {
		attrs = append(attrs, slog.String("op", in.Operator.String()))
	}
	if reply.Err != nil {
		attrs = append(attrs,
			slog.String("outcome", "rejected"),
			slog.String("err_code", dialogue.ErrorCode(reply.Err)),
		)
	}
	logger.LogEvent(ctx, logger.Dialogue, level, "dialogue.step", attrs...)
}
