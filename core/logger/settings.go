package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	coreconfig "github.com/m3rciful/calcbot/core/config"
)

// Log sinks accepted by logging.output. File output is configured separately.
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
	OutputNone   = "none"
)

const (
	defaultSampleNum = 1
	defaultSampleDen = 50
	defaultProfile   = "prod"
)

// settings is the logging section resolved into concrete values.
type settings struct {
	format    logFormat
	keyOrder  []string
	level     slog.Level
	profile   string
	sampleNum int
	sampleDen int
	trace     bool
	sinks     []io.Writer
	closers   []io.Closer
}

func resolveSettings(cfg *coreconfig.Config) (settings, error) {
	var lc coreconfig.LoggingConfig
	if cfg != nil {
		lc = cfg.Logging
	}
	s := settings{
		profile:  strings.ToLower(strings.TrimSpace(lc.Profile)),
		level:    parseLevel(lc.Level),
		keyOrder: parseKeyOrder(lc.KeysOrder),
		trace:    envFlag("TRACE") || envFlag("LOG_TRACE"),
	}
	if s.profile == "" {
		s.profile = defaultProfile
	}
	s.format = parseFormat(lc.Format, s.profile)
	s.sampleNum, s.sampleDen = parseSample(lc.DebugSample)

	var err error
	s.sinks, s.closers, err = openSinks(lc)
	return s, err
}

// parseFormat defaults to kv for debug/dev profiles and json otherwise.
func parseFormat(raw, profile string) logFormat {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	if profile == "debug" || profile == "dev" {
		return formatKV
	}
	return formatJSON
}

func parseKeyOrder(raw string) []string {
	var order []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" && k != "default" {
			order = append(order, k)
		}
	}
	if len(order) == 0 {
		return slices.Clone(defaultKeyOrder)
	}
	return order
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// parseSample reads logging.debug_sample. Empty or out of range values fall
// back to 1/50; an unparsable spec disables sampling.
func parseSample(raw string) (int, int) {
	if strings.TrimSpace(raw) == "" {
		return defaultSampleNum, defaultSampleDen
	}
	num, den := parseRatioSpec(raw)
	switch {
	case num == 0 && den == 0:
		return 0, 0
	case num <= 0 || den <= 0:
		return defaultSampleNum, defaultSampleDen
	}
	return num, den
}

func openSinks(lc coreconfig.LoggingConfig) ([]io.Writer, []io.Closer, error) {
	var sinks []io.Writer
	switch out := strings.ToLower(strings.TrimSpace(lc.Output)); out {
	case "", OutputStdout:
		sinks = append(sinks, os.Stdout)
	case OutputStderr:
		sinks = append(sinks, os.Stderr)
	case OutputNone:
	default:
		return nil, nil, fmt.Errorf("logger: unknown output %q", out)
	}

	dir, name := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.BotFile)
	if dir == "" || name == "" {
		return sinks, nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("logger: create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: open log file: %w", err)
	}
	return append(sinks, f), []io.Closer{f}, nil
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
