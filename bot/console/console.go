// Package console runs the dialogue in a terminal: one process, one session.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/m3rciful/calcbot/bot/dialogue"
	"github.com/m3rciful/calcbot/bot/journal"
	"github.com/m3rciful/calcbot/bot/pacing"
	"github.com/m3rciful/calcbot/core/logger"
)

const (
	botLabel  = "Чат-бот:"
	userLabel = "Вы:"
)

// Options configures a Console.
type Options struct {
	Typing  pacing.Typing
	Journal journal.Recorder
	// Plain disables colours, e.g. when output is piped.
	Plain bool
	// Sleep waits before a reply is printed; nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

type styles struct {
	bot   lipgloss.Style
	user  lipgloss.Style
	err   lipgloss.Style
	reply lipgloss.Style
}

func newStyles(plain bool) styles {
	if plain {
		return styles{
			bot:   lipgloss.NewStyle(),
			user:  lipgloss.NewStyle(),
			err:   lipgloss.NewStyle(),
			reply: lipgloss.NewStyle(),
		}
	}
	return styles{
		bot:   lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		user:  lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		err:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		reply: lipgloss.NewStyle(),
	}
}

// Console reads user lines and prints the bot's replies.
type Console struct {
	session *dialogue.Session
	typing  pacing.Typing
	journal journal.Recorder
	styles  styles
	sleep   func(ctx context.Context, d time.Duration) error
}

// New opens a fresh session.
func New(opts Options) *Console {
	sleep := opts.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	return &Console{
		session: dialogue.NewSession(),
		typing:  opts.Typing,
		journal: journal.Quiet(opts.Journal),
		styles:  newStyles(opts.Plain),
		sleep:   sleep,
	}
}

// Run prints the intro and then serves lines from in until EOF or until ctx
// is cancelled. Cancellation is not an error.
func (c *Console) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if err := c.print(out, c.session.Intro(), false); err != nil {
		return err
	}

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("console: read input: %w", err)
					}
				default:
				}
				return nil
			}
			if err := c.handle(ctx, line, out); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

func (c *Console) handle(ctx context.Context, line string, out io.Writer) error {
	start := time.Now()
	before := c.session.Stage()
	input, reply, ok := c.session.Process(line)
	if !ok {
		return nil
	}
	after := c.session.Stage()

	attrs := []slog.Attr{
		slog.String("input_kind", input.Kind.String()),
		slog.String("stage_from", before.String()),
		slog.String("stage_to", after.String()),
		slog.Duration("duration", logger.Took(start)),
	}
	if reply.Err != nil {
		attrs = append(attrs, slog.String("err_code", dialogue.ErrorCode(reply.Err)))
	}
	logger.LogEvent(ctx, logger.Dialogue, slog.LevelDebug, "dialogue.step", attrs...)

	_ = c.journal.Record(ctx, journal.Entry{
		Source:      journal.SourceConsole,
		Input:       line,
		InputKind:   input.Kind.String(),
		StageBefore: before.String(),
		StageAfter:  after.String(),
		Reply:       reply.Text,
		ErrCode:     dialogue.ErrorCode(reply.Err),
	})

	if _, err := fmt.Fprintf(out, "%s %s\n", c.styles.user.Render(userLabel), line); err != nil {
		return fmt.Errorf("console: write: %w", err)
	}
	if err := c.sleep(ctx, c.typing.Delay(reply.Text)); err != nil {
		return err
	}
	return c.print(out, reply.Text, reply.Err != nil)
}

func (c *Console) print(out io.Writer, text string, failed bool) error {
	body := c.styles.reply
	if failed {
		body = c.styles.err
	}
	if _, err := fmt.Fprintf(out, "%s %s\n", c.styles.bot.Render(botLabel), body.Render(text)); err != nil {
		return fmt.Errorf("console: write: %w", err)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
