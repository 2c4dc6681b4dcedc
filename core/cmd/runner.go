package cmd

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/calcbot/core/config"
	"github.com/m3rciful/calcbot/core/logger"
	coretelegram "github.com/m3rciful/calcbot/core/telegram"
)

const defaultConfigEnvVar = "CONFIG_PATH"

// ConfigCarrier is any bot config that embeds the core settings.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp builds the options RunTelegram needs. Implementations that also
// satisfy io.Closer are closed once the bot stops.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options wires a bot binary together. The config path comes from ConfigPath,
// then the ConfigEnvVar variable, then DefaultConfigPath.
type Options struct {
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	// Test seams; nil means logger.Shutdown and coretelegram.RunTelegram.
	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// ResolveConfigPath applies the precedence described on Options.
func ResolveConfigPath(opts Options) (string, error) {
	env := cmp.Or(opts.ConfigEnvVar, defaultConfigEnvVar)
	if p := cmp.Or(opts.ConfigPath, os.Getenv(env), opts.DefaultConfigPath); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("cmd: config path not provided via flag, %s or DefaultConfigPath", env)
}

// Run loads the config, bootstraps the app and serves Telegram until ctx is
// done or the process receives SIGINT/SIGTERM.
func Run(ctx context.Context, opts Options) (err error) {
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return errors.New("cmd: LoadConfig and Bootstrap are required")
	}
	path, err := ResolveConfigPath(opts)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config %s: %w", path, err)
	}
	if cfg.CoreConfig() == nil {
		return errors.New("cmd: loaded config is missing core configuration")
	}

	app, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	if app == nil {
		return errors.New("cmd: bootstrap returned no app")
	}
	defer func() { err = errors.Join(err, teardown(app, opts.ShutdownLogger)) }()

	runOpts, err := app.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	announceLifecycle(&runOpts, startedAt)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

// announceLifecycle logs readiness after the app's own OnStart and the
// shutdown notice before its OnStop.
func announceLifecycle(opts *coretelegram.RunOptions, startedAt time.Time) {
	log := logger.Component("app")
	onStart, onStop := opts.OnStart, opts.OnStop

	opts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		log.Info("app ready",
			slog.String("event", "ready"),
			slog.Duration("startup_duration", logger.Took(startedAt)),
		)
		return nil
	}
	opts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		log.Info("shutting down", slog.String("event", "shutdown"))
		if onStop == nil {
			return nil
		}
		return onStop(ctx, rt)
	}
}

// teardown closes the app and then the logger. Close failures are logged
// rather than returned; a logger failure is returned.
func teardown(app TelegramApp, shutdownLogger func() error) error {
	if closer, ok := app.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Component("app").Warn("app close failed",
				slog.String("event", "shutdown"),
				slog.String("err", err.Error()),
			)
		}
	}
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	if err := shutdownLogger(); err != nil {
		return fmt.Errorf("cmd: logger shutdown: %w", err)
	}
	return nil
}
