package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/m3rciful/calcbot/bot/app"
	"github.com/m3rciful/calcbot/core/buildinfo"
	corecmd "github.com/m3rciful/calcbot/core/cmd"
	coreconfig "github.com/m3rciful/calcbot/core/config"
	"github.com/m3rciful/calcbot/core/logger"
)

const (
	configEnvVar      = "CONFIG_PATH"
	defaultConfigPath = "config.yaml"
)

type rootFlags struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "calcbot",
		Short:         "Scripted calculator chat bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return loadEnvFile(flags.envFile)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config.yaml (overrides $"+configEnvVar+")")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "dotenv file loaded when present")

	root.AddCommand(
		newTelegramCmd(flags),
		newConsoleCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newTelegramCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "telegram",
		Short: "Run the Telegram bot (long polling or webhook)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return corecmd.Run(cmd.Context(), telegramOptions(flags))
		},
	}
}

func telegramOptions(flags *rootFlags) corecmd.Options {
	return corecmd.Options{
		ConfigPath:        flags.configPath,
		ConfigEnvVar:      configEnvVar,
		DefaultConfigPath: defaultConfigPath,
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := app.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := carrier.(*app.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", carrier)
			}
			a, err := app.Bootstrap(cfg)
			if err != nil {
				return nil, err
			}
			return a, nil
		},
	}
}

func newConsoleCmd(flags *rootFlags) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Talk to the bot in this terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := consoleConfig(flags)
			if err != nil {
				return err
			}
			a, err := app.Bootstrap(cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := logger.Shutdown(); err != nil {
					log.Printf("logger shutdown error: %v", err)
				}
			}()
			defer a.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if !plain {
				plain = !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd())
			}
			return a.Console(plain).Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "disable colours")
	return cmd
}

// consoleConfig loads the config file when one is found. The console needs no
// Telegram credentials, so a missing default file falls back to built-in
// defaults. Logs are silenced unless logging.output says otherwise.
func consoleConfig(flags *rootFlags) (*app.Config, error) {
	path, err := corecmd.ResolveConfigPath(corecmd.Options{
		ConfigPath:        flags.configPath,
		ConfigEnvVar:      configEnvVar,
		DefaultConfigPath: defaultConfigPath,
	})
	if err != nil {
		return nil, err
	}

	cfg, err := app.LoadConfig(path)
	if err != nil {
		explicit := flags.configPath != "" || os.Getenv(configEnvVar) != ""
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = &app.Config{}
		if err := coreconfig.Normalize(&cfg.Config); err != nil {
			return nil, err
		}
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = logger.OutputNone
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "calcbot %s\n", buildinfo.String())
			return err
		},
	}
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
