// Package app wires configuration, infrastructure and the front ends of calcbot.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/m3rciful/calcbot/bot/chat"
	"github.com/m3rciful/calcbot/bot/console"
	"github.com/m3rciful/calcbot/bot/journal"
	"github.com/m3rciful/calcbot/bot/pacing"
	"github.com/m3rciful/calcbot/core/bootstrap"
	coreconfig "github.com/m3rciful/calcbot/core/config"
	coredatabase "github.com/m3rciful/calcbot/core/database"
	"github.com/m3rciful/calcbot/core/logger"
	coretelegram "github.com/m3rciful/calcbot/core/telegram"
	"github.com/m3rciful/calcbot/core/telegram/router"
)

// Config is the calcbot configuration: the shared core sections plus the
// optional journal database.
type Config struct {
	coreconfig.Config `yaml:",inline"`
	Database          coredatabase.Config `yaml:"database"`
}

// CoreConfig exposes the embedded core configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads path, applies environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// App holds the initialized infrastructure shared by the front ends.
type App struct {
	cfg     *Config
	infra   *bootstrap.Result
	journal journal.Recorder
	typing  pacing.Typing
}

// Bootstrap initializes logging and, when enabled, the journal database.
func Bootstrap(cfg *Config) (*App, error) {
	return bootstrapWith(cfg, bootstrap.Options{})
}

func bootstrapWith(cfg *Config, opts bootstrap.Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	opts.Config = cfg.CoreConfig()
	opts.Database = cfg.Database

	infra, err := bootstrap.Run(opts)
	if err != nil {
		return nil, err
	}
	return &App{
		cfg:     cfg,
		infra:   infra,
		journal: journal.Open(infra.DB),
		typing:  pacing.FromConfig(cfg.Typing),
	}, nil
}

// TelegramRunOptions builds the bot: /start and /stop commands, the text
// route feeding every chat's dialogue and the shared middleware chain.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	handler := chat.New(chat.Options{
		Typing:  a.typing,
		Journal: a.journal,
	})

	reg := coretelegram.NewRegistry()
	handler.Register(reg)

	routes := router.CommandRoutes(reg)
	routes = append(routes, router.TextRoutes(reg, router.TextOptions{})...)

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, nil),
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			if rt.Bot != nil && rt.Bot.Me != nil {
				handler.SetUsername(rt.Bot.Me.Username)
			}
			return nil
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			logger.LogEvent(ctx, logger.Dialogue, slog.LevelInfo, "dialogue.sessions",
				slog.Int("count", handler.Sessions()),
			)
			return nil
		},
	}, nil
}

// Console returns a terminal front end sharing the app's pacing and journal.
func (a *App) Console(plain bool) *console.Console {
	return console.New(console.Options{
		Typing:  a.typing,
		Journal: a.journal,
		Plain:   plain,
	})
}

// Close releases the database handle.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	return a.infra.Close()
}
