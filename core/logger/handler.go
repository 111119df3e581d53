package logger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
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

// defaultKeyOrder puts identity and correlation keys first; the rest follow alphabetically.
var defaultKeyOrder = []string{
	"ts", "level", "component", "event", "status", "rid", "rid_full",
	"update_id", "user_id", "chat_id", "chat_type", "handler", "cb_key",
	"outcome", "duration_ms", "update_ms", "messages", "kb",
	"stage", "lang", "category", "forward_ref", "admin_chat_id", "auto_reply",
	"payload", "username", "mode", "listen", "public_url", "sessions",
	"err", "err_code", "error_kind", "cause", "attempts", "rate_limited",
}

var knownStatus = map[string]bool{
	"ok": true, "fail": true, "skip": true, "retry": true, "rate_limited": true, "cancelled": true,
}

var knownOutcome = map[string]bool{
	"ok": true, "fail": true, "cancelled": true, "rate_limited": true,
}

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders flat records as JSON or key=value lines.
// Group names become dotted key prefixes.
type structuredHandler struct {
	cfg    handlerConfig
	attrs  []slog.Attr
	prefix string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = defaultKeyOrder
	}
	return &structuredHandler{cfg: cfg}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errors.New("logger: writer not initialized")
	}
	rec := record{
		"ts":    r.Time.UTC().Truncate(time.Millisecond).Format(timeFormatMillis),
		"level": r.Level.String(),
	}
	for _, a := range h.attrs {
		rec.add(h.prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.add(h.prefix, a)
		return true
	})
	rec.fillContext(MetaFrom(ctx))
	rec.finish(r.Message, h.cfg.format == formatJSON)

	var line []byte
	if h.cfg.format == formatJSON {
		var err error
		if line, err = rec.json(h.cfg.keyOrder); err != nil {
			return err
		}
	} else {
		line = rec.kv(h.cfg.keyOrder)
	}
	return h.cfg.writer.Write(append(line, '\n'))
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.prefix = joinKey(h.prefix, name)
	return &clone
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	}
	return prefix + "." + key
}

// record is one log line before encoding.
type record map[string]any

func (rec record) add(prefix string, a slog.Attr) {
	key := joinKey(prefix, a.Key)
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, child := range v.Group() {
			rec.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if d, ok := durationOf(v); ok {
		rec[msKey(key)] = RoundMS(d).Milliseconds()
		return
	}
	rec[key] = plainValue(v)
}

func durationOf(v slog.Value) (time.Duration, bool) {
	if v.Kind() == slog.KindDuration {
		return v.Duration(), true
	}
	if v.Kind() == slog.KindAny {
		d, ok := v.Any().(time.Duration)
		return d, ok
	}
	return 0, false
}

// msKey renames duration attributes so every duration is logged in milliseconds.
func msKey(key string) string {
	if key == "duration" {
		return "duration_ms"
	}
	if strings.HasSuffix(key, "_ms") {
		return key
	}
	return key + "_ms"
}

func plainValue(v slog.Value) any {
	switch v.Kind() {
	case slog.KindString:
		return strings.TrimSpace(v.String())
	case slog.KindBool:
		return v.Bool()
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return v.Uint64()
	case slog.KindFloat64:
		return v.Float64()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	}
	switch x := v.Any().(type) {
	case nil:
		return nil
	case error:
		return x.Error()
	case string:
		return strings.TrimSpace(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func (rec record) setDefault(key string, val any, present bool) {
	if !present {
		return
	}
	if _, ok := rec[key]; !ok {
		rec[key] = val
	}
}

func (rec record) fillContext(m Meta) {
	rec.setDefault("rid", m.RID, m.RID != "")
	rec.setDefault("update_id", m.UpdateID, m.UpdateID != 0)
	rec.setDefault("user_id", m.UserID, m.UserID != 0)
	rec.setDefault("chat_id", m.ChatID, m.ChatID != 0)
	rec.setDefault("handler", m.Handler, m.Handler != "")
}

func (rec record) str(key string) string {
	s, _ := rec[key].(string)
	return s
}

// finish applies the defaults and normalizations every line goes through.
func (rec record) finish(msg string, keepFullRID bool) {
	if rid := rec.str("rid"); rid != "" {
		if compact := CompactRID(rid); compact != rid {
			rec["rid"] = compact
			if keepFullRID {
				rec.setDefault("rid_full", rid, true)
			}
		}
	}
	if rec.str("event") == "" {
		rec["event"] = msg
		if msg == "" {
			rec["event"] = "unknown"
		}
	}
	if rec.str("component") == "" {
		rec["component"] = "app"
	}
	if s := strings.ToLower(rec.str("status")); knownStatus[s] {
		rec["status"] = s
	}
	if o, ok := rec["outcome"].(string); ok {
		if o = strings.ToLower(o); knownOutcome[o] {
			rec["outcome"] = o
		} else {
			delete(rec, "outcome")
		}
	}
	for k, v := range rec {
		if v == nil || v == "" {
			delete(rec, k)
		}
	}
}

// keys lists order entries present in rec, then the remaining keys sorted.
func (rec record) keys(order []string) []string {
	out := make([]string, 0, len(rec))
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		if _, ok := rec[k]; ok && !seen[k] {
			out = append(out, k)
			seen[k] = true
		}
	}
	rest := len(out)
	for k := range rec {
		if !seen[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out[rest:])
	return out
}

func (rec record) json(order []string) ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range rec.keys(order) {
		v, err := json.Marshal(rec[k])
		if err != nil {
			return nil, fmt.Errorf("logger: encode %s: %w", k, err)
		}
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendQuote(buf, k)
		buf = append(buf, ':')
		buf = append(buf, v...)
	}
	return append(buf, '}'), nil
}

func (rec record) kv(order []string) []byte {
	var buf []byte
	for i, k := range rec.keys(order) {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, k...)
		buf = append(buf, '=')
		s := fmt.Sprint(rec[k])
		if strings.IndexFunc(s, needsQuote) >= 0 {
			buf = strconv.AppendQuote(buf, s)
		} else {
			buf = append(buf, s...)
		}
	}
	return buf
}

func needsQuote(r rune) bool {
	return r <= ' ' || r == '=' || r == '"'
}
