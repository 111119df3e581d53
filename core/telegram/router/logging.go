package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/metrics"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
	"github.com/m3rciful/relaybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// summary describes one handler invocation. Every routed update ends with
// exactly one handler.handled line and one handler metric sample.
type summary struct {
	handler string
	start   time.Time
	// skipped marks updates the router deliberately dropped.
	skipped bool
	extras  []slog.Attr
}

func newSummary(handler string, extras ...slog.Attr) *summary {
	return &summary{handler: normalizeHandlerName(handler), start: time.Now(), extras: extras}
}

// run tags the update context with the handler name, calls fn and records the result.
func (s *summary) run(c tele.Context, fn func() error) error {
	tghelpers.WithHandler(c, s.handler)
	err := fn()
	s.done(c, err)
	return err
}

// skip records a dropped update. fallback, when set, still runs.
func (s *summary) skip(c tele.Context, reason string, fallback tele.HandlerFunc) error {
	s.skipped = true
	s.extras = append(s.extras, slog.String("reason", reason))
	var err error
	if fallback != nil {
		err = fallback(c)
	}
	s.done(c, err)
	return err
}

func (s *summary) done(c tele.Context, err error) {
	ctx := tghelpers.WithHandler(c, s.handler)
	took := time.Since(s.start)

	outcome, status := "ok", "ok"
	if err != nil {
		outcome, status = "fail", "fail"
	}
	if s.skipped {
		status = "skip"
	}
	metrics.Default().ObserveHandler(s.handler, outcome, took)

	msgs, kb := middleware.GetCounters(c)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", took),
	}
	if age, ok := tghelpers.UpdateAge(c); ok {
		attrs = append(attrs, slog.Duration("update", age))
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "handler.handled", append(attrs, s.extras...)...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode derives a stable upper-case code from err, preferring a Code method
// anywhere in the wrap chain and falling back to the innermost error type name.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	root := err
	for next := errors.Unwrap(root); next != nil; next = errors.Unwrap(root) {
		root = next
	}
	t := reflect.TypeOf(root)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
