package telegram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/calcbot/core/config"
	"github.com/m3rciful/calcbot/core/telegram/commands"
)

func noop(tele.Context) error { return nil }

type fakeSetter struct {
	got []interface{}
	err error
}

func (f *fakeSetter) SetCommands(opts ...interface{}) error {
	f.got = opts
	return f.err
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Начать"})
	reg.RegisterCommand("/stop", commands.Command{Handler: noop, Description: "Закончить", Aliases: []string{"bye"}})
	reg.RegisterCommand("nostash", commands.Command{Handler: noop, Description: "x"})
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "dup"})
	reg.RegisterCommand("/empty", commands.Command{Handler: noop})

	require.Len(t, reg.Commands(), 2)
	assert.Equal(t, "Начать", reg.Commands()["/start"].Description)

	key, _, ok := reg.LookupCommand("stop")
	assert.True(t, ok)
	assert.Equal(t, "/stop", key)

	key, _, ok = reg.LookupCommand("/bye")
	assert.True(t, ok)
	assert.Equal(t, "/stop", key)

	_, _, ok = reg.LookupCommand("/name: Vasya")
	assert.False(t, ok)
}

func TestRegistryListCommandsSkipsHidden(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/stop", commands.Command{Handler: noop, Description: "Закончить"})
	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Начать"})
	reg.RegisterCommand("/debug", commands.Command{Handler: noop, Description: "debug", Hidden: true})

	assert.Equal(t, []tele.Command{
		{Text: "start", Description: "Начать"},
		{Text: "stop", Description: "Закончить"},
	}, reg.ListCommands(true))
	assert.Len(t, reg.ListCommands(false), 3)
}

func TestSetupCommands(t *testing.T) {
	reg := NewRegistry()
	setter := &fakeSetter{}
	SetupCommands(setter, reg)
	assert.Nil(t, setter.got)

	reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Начать"})
	SetupCommands(setter, reg)
	require.Len(t, setter.got, 1)
	assert.Equal(t, []tele.Command{{Text: "start", Description: "Начать"}}, setter.got[0])

	setter.err = errors.New("forbidden")
	assert.NotPanics(t, func() { SetupCommands(setter, reg) })
}

func TestDispatcherOptionsFrom(t *testing.T) {
	cfg := &coreconfig.Config{Sender: coreconfig.SenderConfig{QueueSize: 10, MaxRetries: 2, RetryBackoffMS: 500}}
	opts := DispatcherOptionsFrom(cfg)
	assert.Equal(t, 10, opts.QueueSize)
	assert.Equal(t, 2, opts.MaxRetries)
	assert.Equal(t, int64(500), opts.RetryBackoff.Milliseconds())
}
