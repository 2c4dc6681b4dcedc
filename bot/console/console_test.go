package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/calcbot/bot/dialogue"
	"github.com/m3rciful/calcbot/bot/journal"
	"github.com/m3rciful/calcbot/bot/pacing"
)

type memJournal struct{ entries []journal.Entry }

func (m *memJournal) Record(_ context.Context, e journal.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func TestRunPlaysScriptedDialogue(t *testing.T) {
	var delays []time.Duration
	rec := &memJournal{}
	c := New(Options{
		Typing:  pacing.Default(),
		Journal: rec,
		Plain:   true,
		Sleep: func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
	})

	in := strings.NewReader("/start\n\n/name: Vasya\n/number: 7, 9\n+\nstop\n")
	var out bytes.Buffer
	require.NoError(t, c.Run(context.Background(), in, &out))

	want := strings.Join([]string{
		"Чат-бот: " + dialogue.MsgIntro,
		"Вы: /start",
		"Чат-бот: " + dialogue.MsgGreeting,
		"Вы: /name: Vasya",
		"Чат-бот: Привет Vasya, приятно познакомится. Я умею считать, введи числа которые надо посчитать",
		"Вы: /number: 7, 9",
		"Чат-бот: " + dialogue.MsgChooseOperator,
		"Вы: +",
		"Чат-бот: Результат: 16",
		"Вы: stop",
		"Чат-бот: " + dialogue.MsgFarewell,
	}, "\n") + "\n"
	assert.Equal(t, want, out.String())

	require.Len(t, delays, 5)
	assert.Equal(t, pacing.Default().Delay(dialogue.MsgGreeting), delays[0])

	require.Len(t, rec.entries, 5)
	assert.Equal(t, journal.SourceConsole, rec.entries[0].Source)
	assert.Equal(t, "operator", rec.entries[3].InputKind)
	assert.Equal(t, "stopped", rec.entries[4].StageAfter)
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	pr, pw := io.Pipe()
	defer pw.Close()

	c := New(Options{
		Plain: true,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})

	done := make(chan error, 1)
	var out bytes.Buffer
	go func() { done <- c.Run(ctx, pr, &out) }()

	_, err := pw.Write([]byte("/start\n"))
	require.NoError(t, err)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop after cancel")
	}
	assert.NotContains(t, out.String(), dialogue.MsgGreeting)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("tty gone") }

func TestRunReportsReadError(t *testing.T) {
	c := New(Options{Plain: true})
	err := c.Run(context.Background(), brokenReader{}, io.Discard)
	assert.ErrorContains(t, err, "console: read input")
}

func TestSleepCtx(t *testing.T) {
	assert.NoError(t, sleepCtx(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
