package middleware

import (
	tele "gopkg.in/telebot.v4"
)

const countersKey = "relay.out"

// outCounters tracks what a handler sent back to the current chat.
type outCounters struct {
	messages int
	keyboard bool
}

func (n *outCounters) track(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	n.messages++
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			n.keyboard = n.keyboard || (v != nil && v.ReplyMarkup != nil)
		case *tele.ReplyMarkup:
			n.keyboard = n.keyboard || v != nil
		}
	}
	return nil
}

// countingContext counts successful replies made through the update context.
// Messages sent to other chats through the bot API are not counted.
type countingContext struct {
	tele.Context
	n *outCounters
}

func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.n.track(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.n.track(c.Context.Reply(what, opts...), opts)
}

func (c countingContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return c.n.track(c.Context.EditOrSend(what, opts...), opts)
}

// MessageMetricsMiddleware counts replies so the handler summary can report them.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &outCounters{}
		c.Set(countersKey, n)
		return next(countingContext{Context: c, n: n})
	}
}

// GetCounters returns the number of replies and whether any carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	n, ok := c.Get(countersKey).(*outCounters)
	if !ok || n == nil {
		return 0, false
	}
	return n.messages, n.keyboard
}
