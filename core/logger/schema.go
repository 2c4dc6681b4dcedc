package logger

import "strings"

// enum is a closed set of values for one field; keys are lower case.
type enum map[string]string

func newEnum(values ...string) enum {
	e := make(enum, len(values))
	for _, v := range values {
		e[v] = v
	}
	return e
}

func (e enum) normalize(raw string) (string, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", false
	}
	v, ok := e[raw]
	if !ok {
		return raw, false
	}
	return v, true
}

var (
	levelNames = enum{
		"debug":   "DEBUG",
		"info":    "INFO",
		"warn":    "WARN",
		"warning": "WARN",
		"error":   "ERROR",
	}
	statusValues    = newEnum("ok", "fail", "skip", "retry", "rate_limited", "cancelled")
	inputKindValues = newEnum("start", "name", "numbers", "operator", "stop", "unknown")
	outcomeValues   = newEnum("ok", "fail", "rejected", "cancelled", "rate_limited")
)

// normalizeLevel maps slog level names onto the canonical upper case set.
// Custom levels such as "INFO+2" pass through upper cased.
func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if v, ok := levelNames.normalize(level); ok {
		return v
	}
	return strings.ToUpper(level)
}

func normalizeStatus(s string) (string, bool)    { return statusValues.normalize(s) }
func normalizeInputKind(k string) (string, bool) { return inputKindValues.normalize(k) }
func normalizeOutcome(o string) (string, bool)   { return outcomeValues.normalize(o) }

// defaultKeyOrder puts the fields people grep for first; the remaining ones
// follow alphabetically.
var defaultKeyOrder = strings.Fields(`
	ts level component event status
	rid rid_full ts_unix_nano update_id user_id chat_id chat_type handler
	operation op input_kind stage_from stage_to outcome
	duration_ms delay_ms lane reply_len messages kb count payload lang username
	mode listen public_url http_code
	db host port exchange_id
	err err_code cause retryable attempts backoff_ms rate_limited
	collapsed repeats pending_count
`)
