package router

import (
	"strings"

	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MessageOptions controls how non-command messages are dispatched.
type MessageOptions struct {
	// OnMessage receives every text or media message that is not a registered command.
	// When nil the registry text fallback is used.
	OnMessage tele.HandlerFunc
	// AdminID guards admin-only commands reached through aliases.
	AdminID int64
}

// messageEndpoints lists the update kinds treated as user messages.
var messageEndpoints = []string{
	tele.OnText,
	tele.OnMedia,
	tele.OnSticker,
	tele.OnLocation,
	tele.OnContact,
}

// MessageRoutes builds handlers for text and media messages.
// Slash-prefixed text runs the matching command or alias and is dropped when
// nothing matches; everything else goes to OnMessage.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{AdminID: opts.AdminID})
	onMessage := opts.OnMessage
	if onMessage == nil && reg != nil {
		onMessage = reg.TextFallback()
	}

	handler := func(c tele.Context) error {
		text := strings.TrimSpace(c.Text())
		if reg != nil && strings.HasPrefix(text, "/") {
			key, cmd, ok := reg.LookupCommand(strings.Fields(text)[0])
			if !ok {
				return newSummary("unknown_command").skip(c, "no_such_command", nil)
			}
			run := cmd.Handler
			if cmd.AdminOnly {
				run = adminOnly(run)
			}
			return newSummary(key).run(c, func() error { return run(c) })
		}

		if onMessage == nil {
			return newSummary("unknown_message").skip(c, "no_fallback", nil)
		}
		return newSummary("message").run(c, func() error { return onMessage(c) })
	}

	wrapped := middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler))
	routes := make([]tg.Route, 0, len(messageEndpoints))
	for _, ep := range messageEndpoints {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: wrapped})
	}
	return routes
}
