package router

import (
	"log/slog"

	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/callbacks"
	"github.com/m3rciful/relaybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	// NotFound overrides the registry fallback for unknown keys.
	NotFound tele.HandlerFunc
}

// CallbackRoute returns the single OnCallback route that dispatches by button key.
// Every callback is answered first so the client stops its spinner, even when
// the key is unknown.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		key, _ := callbacks.Parse(cb)
		_ = c.Respond()

		if h, ok := reg.GetCallback(key); ok {
			return newSummary("callback."+key, slog.String("cb_key", key)).run(c, func() error {
				return h(c)
			})
		}

		fallback := opts.NotFound
		if fallback == nil {
			fallback = reg.CallbackNotFound()
		}
		return newSummary("callback.unknown", slog.String("cb_key", key)).skip(c, "not_found", fallback)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
