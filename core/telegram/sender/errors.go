package sender

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Error kinds reported as err_code on send.fail.
const (
	kindTimeout = "timeout"
	kindDNS     = "dns"
	kindDial    = "dial"
	kindTLS     = "tls"
	kind4xx     = "http_4xx"
	kind5xx     = "http_5xx"
	kindUnknown = "unknown"
)

var tokenRe = regexp.MustCompile(`bot[0-9]+:[A-Za-z0-9_-]+`)

// classifyError maps a send failure onto a coarse kind. Transport causes win
// over HTTP status so a timeout behind a url.Error still reads as timeout.
func classifyError(err error) string {
	if err == nil {
		return ""
	}
	if kind := transportKind(err); kind != "" {
		return kind
	}
	if errors.As(err, new(tls.AlertError)) {
		return kindTLS
	}
	switch code := statusCode(err); {
	case code >= 500:
		return kind5xx
	case code >= 400:
		return kind4xx
	}
	return kindUnknown
}

func transportKind(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return kindTimeout
	}
	if dnsErr := (*net.DNSError)(nil); errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return kindTimeout
		}
		return kindDNS
	}
	if netErr := net.Error(nil); errors.As(err, &netErr) && netErr.Timeout() {
		return kindTimeout
	}
	if opErr := (*net.OpError)(nil); errors.As(err, &opErr) && opErr.Op == "dial" {
		return kindDial
	}
	if urlErr := (*url.Error)(nil); errors.As(err, &urlErr) && urlErr.Err != nil && urlErr.Err != err {
		return transportKind(urlErr.Err)
	}
	return ""
}

// statusCode extracts the HTTP status carried by a Bot API error. Plain errors
// are probed for a trailing "(NNN)" the way telebot formats them.
func statusCode(err error) int {
	var apiErr *tele.Error
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Code
	case errors.As(err, new(tele.FloodError)):
		return http.StatusTooManyRequests
	case errors.As(err, new(tele.GroupError)):
		return http.StatusBadRequest
	}

	msg := strings.TrimSpace(err.Error())
	open := strings.LastIndexByte(msg, '(')
	if open < 0 || !strings.HasSuffix(msg, ")") {
		return 0
	}
	code, convErr := strconv.Atoi(strings.TrimSpace(msg[open+1 : len(msg)-1]))
	if convErr != nil {
		return 0
	}
	return code
}

// sanitizeErrorMessage hides bot tokens that transport errors embed in URLs.
func sanitizeErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	return tokenRe.ReplaceAllLiteralString(err.Error(), "bot<redacted>")
}
