package helpers

import (
	"context"
	"time"

	"github.com/m3rciful/relaybot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Keys stored on tele.Context by the update logging middleware.
const (
	RIDKey         = "rid"
	UpdateStartKey = "update_start"

	contextKey = "relay.ctx"
)

// StoreContext attaches ctx to the update so later handlers reuse its log metadata.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextFrom returns the context stored by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok && ctx != nil
}

// MarkUpdate records the request id and receipt time of the update being handled.
func MarkUpdate(c tele.Context, rid string, at time.Time) {
	c.Set(RIDKey, rid)
	c.Set(UpdateStartKey, at)
}

// UpdateAge reports how long ago the update was received by the middleware chain.
func UpdateAge(c tele.Context) (time.Duration, bool) {
	if c == nil {
		return 0, false
	}
	at, ok := c.Get(UpdateStartKey).(time.Time)
	if !ok || at.IsZero() {
		return 0, false
	}
	return time.Since(at), true
}

// BuildContext returns the stored context or derives one carrying the request id
// and the update, user and chat identifiers. Handlers pass it to the relay
// controller so its logs line up with the router summary.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}

	upd := c.Update()
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}

	rid, _ := c.Get(RIDKey).(string)
	if rid == "" {
		rid = logger.BuildRID(upd.ID, chatID, userID)
	}

	ctx := logger.WithRID(logger.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the stored context with the handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" || logger.HandlerFrom(ctx) == handler {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
