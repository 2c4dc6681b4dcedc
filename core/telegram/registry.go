package telegram

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/calcbot/core/logger"
	"github.com/m3rciful/calcbot/core/telegram/commands"
)

// Registry maps slash commands to handlers and keeps the handler for text
// that is not a command.
type Registry struct {
	commands     map[string]commands.Command
	textFallback tele.HandlerFunc
}

func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]commands.Command)}
}

// RegisterCommand adds cmd under name, which must start with a slash.
// Rejected registrations are logged and ignored.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	if reason := r.rejectReason(name, cmd); reason != "" {
		wireLog(slog.LevelWarn, "register.command.skip", slog.String("name", name), slog.String("reason", reason))
		return
	}
	r.commands[name] = cmd
}

func (r *Registry) rejectReason(name string, cmd commands.Command) string {
	switch {
	case r == nil || cmd.Handler == nil || cmd.Description == "":
		return "invalid"
	case !strings.HasPrefix(name, "/") || len(name) == 1:
		return "no_slash_prefix"
	}
	if _, dup := r.commands[name]; dup {
		return "duplicate"
	}
	return ""
}

// ListCommands returns the menu entries sorted by name. With visibleOnly set,
// hidden commands are left out.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for _, name := range slices.Sorted(maps.Keys(r.commands)) {
		cmd := r.commands[name]
		if visibleOnly && cmd.Hidden {
			continue
		}
		list = append(list, tele.Command{Text: name[1:], Description: cmd.Description})
	}
	return list
}

// LookupCommand resolves name or one of the aliases to the registered key.
// The leading slash is optional, so "stop" finds "/stop".
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	key := "/" + strings.TrimPrefix(strings.TrimSpace(name), "/")
	if cmd, ok := r.commands[key]; ok {
		return key, cmd, true
	}
	for registered, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if "/"+strings.TrimPrefix(alias, "/") == key {
				return registered, cmd, true
			}
		}
	}
	return "", commands.Command{}, false
}

func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.textFallback = h
}

func (r *Registry) TextFallback() tele.HandlerFunc {
	return r.textFallback
}

// CommandSetter is satisfied by *tele.Bot.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// SetupCommands publishes the visible commands as the chat menu.
func SetupCommands(bot CommandSetter, reg *Registry) {
	if bot == nil || reg == nil {
		return
	}
	list := reg.ListCommands(true)
	if len(list) == 0 {
		return
	}
	if err := bot.SetCommands(list); err != nil {
		wireLog(slog.LevelError, "register.commands.set_failed", slog.String("err", err.Error()))
		return
	}
	wireLog(slog.LevelDebug, "register.commands.set", slog.Int("count", len(list)))
}

func wireLog(level slog.Level, event string, attrs ...slog.Attr) {
	logger.TWire.LogAttrs(context.Background(), level, event, attrs...)
}
