package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var dispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher installs the background sender; nil makes SendAsync run calls inline.
func SetDispatcher(d *sender.Dispatcher) {
	dispatcher.Store(d)
}

// SendAsync hands run to the dispatcher. When there is none, or its queue
// rejects the job, run executes on the calling goroutine instead.
func SendAsync(c tele.Context, action, endpoint string, run func() error) error {
	d := dispatcher.Load()
	if d == nil {
		return run()
	}
	ctx := BuildContext(c)
	err := d.Enqueue(ctx, action, endpoint, run)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sender.ErrQueueFull), errors.Is(err, sender.ErrQueueClosed):
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("reason", err.Error()),
		)
		return run()
	}
	return err
}

// ClearMarkup removes the inline keyboard from msg in the background.
func ClearMarkup(c tele.Context, msg tele.Editable) error {
	return SendAsync(c, sender.ActionClearMarkup, "editMessageReplyMarkup", func() error {
		_, err := c.Bot().EditReplyMarkup(msg, nil)
		return err
	})
}
