package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	errNilConfig = errors.New("nil config")

	runModeAliases = map[string]string{
		"":              RunModeLongpoll,
		"polling":       RunModeLongpoll,
		RunModeLongpoll: RunModeLongpoll,
		RunModeWebhook:  RunModeWebhook,
	}
	excludableUpdates = []string{UpdateCallback, UpdateMessage, UpdateInlineQuery}

	defaultTyping = TypingConfig{BaseMS: 1200, PerCharMS: 20, MaxMS: 2200}
)

// Normalize fills defaults and rejects values no front end can run with.
// Every problem found is reported. Telegram credentials are left to
// ValidateTelegram so the console works without a token.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errNilConfig
	}
	return errors.Join(
		normalizeTelegram(&cfg.Telegram),
		normalizeRateLimit(&cfg.RateLimit),
		normalizeTyping(&cfg.Typing),
		checkSender(cfg.Sender),
	)
}

func normalizeTelegram(t *TelegramConfig) error {
	mode, ok := runModeAliases[strings.ToLower(strings.TrimSpace(t.RunMode))]
	if !ok {
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", t.RunMode)
	}
	t.RunMode = mode
	if t.LongPollTimeoutSeconds < 0 {
		return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
	}
	return nil
}

func normalizeRateLimit(r *RateLimitConfig) error {
	if r.IntervalMS < 0 {
		return errors.New("rate_limit.interval_ms must be >= 0")
	}
	for i, raw := range r.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(raw))
		if kind != "" && !slices.Contains(excludableUpdates, kind) {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: %s",
				raw, strings.Join(excludableUpdates, ", "))
		}
		r.ExcludeUpdates[i] = kind
	}
	return nil
}

func normalizeTyping(t *TypingConfig) error {
	if min(t.BaseMS, t.PerCharMS, t.MaxMS) < 0 {
		return errors.New("typing delays must be >= 0")
	}
	if t.Disabled {
		return nil
	}
	if *t == (TypingConfig{}) {
		*t = defaultTyping
	}
	if t.MaxMS > 0 && t.MaxMS < t.BaseMS {
		return fmt.Errorf("typing.max_ms (%d) must not be lower than typing.base_ms (%d)", t.MaxMS, t.BaseMS)
	}
	return nil
}

func checkSender(s SenderConfig) error {
	if min(s.QueueSize, s.MaxRetries, s.RetryBackoffMS, s.MaxDurationMS) < 0 {
		return errors.New("sender settings must be >= 0")
	}
	return nil
}

// ValidateTelegram checks what the Bot API front end needs on top of
// Normalize: a token and, in webhook mode, a reachable endpoint.
func ValidateTelegram(cfg *Config) error {
	if cfg == nil {
		return errNilConfig
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram token is required")
	}
	if cfg.Telegram.RunMode != RunModeWebhook {
		return nil
	}
	const suffix = " when telegram.run_mode is 'webhook'"
	var errs []error
	if strings.TrimSpace(cfg.Webhook.URL) == "" {
		errs = append(errs, errors.New("webhook.url is required"+suffix))
	}
	if strings.TrimSpace(cfg.Webhook.Listen) == "" {
		errs = append(errs, errors.New("webhook.listen is required"+suffix))
	}
	if cfg.Webhook.Port <= 0 {
		errs = append(errs, errors.New("webhook.port must be > 0"+suffix))
	}
	return errors.Join(errs...)
}
