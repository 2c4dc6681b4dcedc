package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/calcbot/core/logger"
	tghelpers "github.com/m3rciful/calcbot/core/telegram/helpers"
)

const maxErrLen = 256

// summary is the handler.handled line written once per routed update.
type summary struct {
	handler string
	start   time.Time
	status  string
	err     error
}

func (s summary) attrs() (slog.Level, []slog.Attr) {
	status, outcome := s.status, "ok"
	if s.err != nil {
		outcome = "fail"
	}
	if status == "" {
		status = logger.Status(s.err)
	}
	attrs := []slog.Attr{
		slog.String("handler", s.handler),
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Duration("duration", logger.Took(s.start)),
	}
	if s.err == nil {
		return slog.LevelDebug, attrs
	}
	return slog.LevelWarn, append(attrs,
		slog.String("err", logger.SanitizeLimit(s.err.Error(), maxErrLen)),
		slog.String("err_code", deriveErrorCode(s.err)),
		slog.String("cause", s.handler),
	)
}

func (s summary) log(c tele.Context) {
	level, attrs := s.attrs()
	logger.LogEvent(tghelpers.WithHandler(c, s.handler), logger.TG, level, "handler.handled", attrs...)
}

// handleWithSummary tags c with name, runs fn and logs how it went.
func handleWithSummary(c tele.Context, name string, start time.Time, fn tele.HandlerFunc) error {
	tghelpers.WithHandler(c, name)
	err := fn(c)
	summary{handler: name, start: start, err: err}.log(c)
	return err
}

func logHandlerSummary(c tele.Context, name string, start time.Time, status string, err error) {
	summary{handler: name, start: start, status: status, err: err}.log(c)
}

// normalizeHandlerName turns "/Start" into "start".
func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.Join(strings.Fields(name), "_"))
}

// deriveErrorCode reads Code() from the error chain, falling back to the
// concrete type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.Join(strings.Fields(coded.Code()), "_"); code != "" {
			return strings.ToUpper(code)
		}
	}
	name := strings.TrimLeft(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(name)
}
