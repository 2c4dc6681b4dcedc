package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

type logFormat string

const (
	formatJSON logFormat = "json"
	formatKV   logFormat = "kv"

	timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as single kv or json lines with a stable
// key order and hands them to the async writer.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = slices.Clone(defaultKeyOrder)
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return fmt.Errorf("logger: writer not initialized")
	}
	isJSON := h.cfg.format == formatJSON

	e := make(entry, 16)
	ts := r.Time.UTC()
	e["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	e["level"] = normalizeLevel(r.Level.String())
	if isJSON {
		e["ts_unix_nano"] = ts.UnixNano()
	}

	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		e.addAttr(prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		e.addAttr(prefix, a)
		return true
	})
	e.addContext(ctx)

	if rid := e.str("rid"); rid != "" {
		if compact := CompactRID(rid); compact != rid {
			if isJSON {
				e.setDefault("rid_full", rid)
			}
			e["rid"] = compact
		}
	}
	e.fallback("event", r.Message, "unknown")
	e.fallback("component", "app")
	e.normalizeEnums()
	e.prune()

	var (
		line []byte
		err  error
	)
	if isJSON {
		line, err = e.encodeJSON(h.cfg.keyOrder)
	} else {
		line = e.encodeKV(h.cfg.keyOrder)
	}
	if err != nil {
		return err
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(slices.Clip(h.attrs), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(slices.Clip(h.groups), name)
	return &clone
}

// entry holds the fields of one line. Empty strings and nils are dropped
// before encoding.
type entry map[string]any

func (e entry) str(key string) string {
	switch v := e[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// setDefault stores v unless key is already present or v is a zero value.
func (e entry) setDefault(key string, v any) {
	if _, ok := e[key]; ok {
		return
	}
	switch x := v.(type) {
	case string:
		if x == "" {
			return
		}
	case int64:
		if x == 0 {
			return
		}
	}
	e[key] = v
}

// fallback fills key with the first non-empty value unless it is already set.
func (e entry) fallback(key string, values ...string) {
	if e.str(key) != "" {
		return
	}
	for _, v := range values {
		if v != "" {
			e[key] = v
			return
		}
	}
}

// addAttr flattens groups into dotted keys.
func (e entry) addAttr(prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, child := range a.Value.Group() {
			e.addAttr(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, v, ok := attrValue(key, a.Value.Resolve()); ok {
		e[k] = v
	}
}

func (e entry) addContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	e.setDefault("rid", RIDFrom(ctx))
	e.setDefault("user_id", UserIDFrom(ctx))
	e.setDefault("update_id", int64(UpdateIDFrom(ctx)))
	e.setDefault("chat_id", ChatIDFrom(ctx))
	e.setDefault("handler", HandlerFrom(ctx))
}

var enumFields = []struct {
	key       string
	normalize func(string) (string, bool)
	// keepUnknown leaves unrecognised values in place instead of dropping them.
	keepUnknown bool
}{
	{key: "status", normalize: normalizeStatus, keepUnknown: true},
	{key: "input_kind", normalize: normalizeInputKind},
	{key: "outcome", normalize: normalizeOutcome},
}

func (e entry) normalizeEnums() {
	e["level"] = normalizeLevel(e.str("level"))
	for _, f := range enumFields {
		raw := e.str(f.key)
		if raw == "" {
			continue
		}
		switch v, ok := f.normalize(raw); {
		case ok:
			e[f.key] = v
		case !f.keepUnknown:
			delete(e, f.key)
		}
	}
}

func (e entry) prune() {
	for k, v := range e {
		switch x := v.(type) {
		case nil:
			delete(e, k)
		case string:
			if x == "" {
				delete(e, k)
			}
		case fmt.Stringer:
			if x.String() == "" {
				delete(e, k)
			}
		}
	}
}

// keys lists the fields present in order first, then the rest alphabetically.
func (e entry) keys(order []string) []string {
	out := make([]string, 0, len(e))
	for _, k := range order {
		if _, ok := e[k]; ok {
			out = append(out, k)
		}
	}
	var rest []string
	for k := range e {
		if !slices.Contains(out, k) {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(out, rest...)
}

func (e entry) encodeJSON(order []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range e.keys(order) {
		val, err := json.Marshal(e[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %q: %w", k, err)
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k))
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (e entry) encodeKV(order []string) []byte {
	var buf bytes.Buffer
	for i, k := range e.keys(order) {
		if i > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(kvValue(e[k]))
	}
	return buf.Bytes()
}

func kvValue(v any) string {
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	default:
		s = fmt.Sprint(v)
	}
	if strings.IndexFunc(s, needsQuote) >= 0 {
		return strconv.Quote(s)
	}
	return s
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}

// attrValue converts v into a JSON-friendly value. Durations become whole
// milliseconds under a *_ms key.
func attrValue(key string, v slog.Value) (string, any, bool) {
	switch v.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(v.String()), true
	case slog.KindBool:
		return key, v.Bool(), true
	case slog.KindInt64:
		return key, v.Int64(), true
	case slog.KindUint64:
		if u := v.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, v.Uint64(), true
	case slog.KindFloat64:
		return key, v.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(v.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, v.Time().UTC().Format(time.RFC3339Nano), true
	}

	switch x := v.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey maps a duration attribute onto its millisecond field name.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_ms"):
		return key
	default:
		return key + "_ms"
	}
}
