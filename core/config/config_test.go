package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaultsAndEnv(t *testing.T) {
	path := writeConfig(t, `
telegram:
  token: from-file
  run_mode: polling
rate_limit:
  interval_ms: 500
  exclude_updates: [" Callback "]
`)
	t.Setenv("BOT_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Telegram.Token)
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)
	assert.Equal(t, TypingConfig{BaseMS: 1200, PerCharMS: 20, MaxMS: 2200}, cfg.Typing)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")
}

func TestNormalizeRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"run mode", Config{Telegram: TelegramConfig{RunMode: "carrier-pigeon"}}, "invalid telegram.run_mode"},
		{"longpoll timeout", Config{Telegram: TelegramConfig{LongPollTimeoutSeconds: -1}}, "longpoll_timeout_seconds"},
		{"exclude update", Config{RateLimit: RateLimitConfig{ExcludeUpdates: []string{"poll"}}}, "exclude_updates"},
		{"typing negative", Config{Typing: TypingConfig{BaseMS: -5}}, "typing delays"},
		{"typing cap", Config{Typing: TypingConfig{BaseMS: 500, MaxMS: 100}}, "typing.max_ms"},
		{"sender negative", Config{Sender: SenderConfig{QueueSize: -1}}, "sender settings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			assert.ErrorContains(t, Normalize(&cfg), tt.want)
		})
	}
}

func TestNormalizeKeepsDisabledTyping(t *testing.T) {
	cfg := Config{Typing: TypingConfig{Disabled: true}}
	require.NoError(t, Normalize(&cfg))
	assert.Equal(t, TypingConfig{Disabled: true}, cfg.Typing)
}

func TestValidateTelegram(t *testing.T) {
	cfg := Config{Telegram: TelegramConfig{RunMode: RunModeLongpoll}}
	assert.ErrorContains(t, ValidateTelegram(&cfg), "token is required")

	cfg.Telegram.Token = "123:abc"
	assert.NoError(t, ValidateTelegram(&cfg))

	cfg.Telegram.RunMode = RunModeWebhook
	assert.ErrorContains(t, ValidateTelegram(&cfg), "webhook.url")

	cfg.Webhook = WebhookConfig{URL: "https://example.org/hook", Listen: "0.0.0.0", Port: 8443}
	assert.NoError(t, ValidateTelegram(&cfg))
}
