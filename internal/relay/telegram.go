package relay

import (
	"context"
	"fmt"
	"strings"

	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/callbacks"
	"github.com/m3rciful/relaybot/core/telegram/commands"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// botAPI is the part of the Telegram client used for chats other than the current one.
type botAPI interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Copy(to tele.Recipient, msg tele.Editable, opts ...interface{}) (*tele.Message, error)
}

// teleOutbox adapts a single update's tele.Context to Outbox.
type teleOutbox struct {
	c   tele.Context
	api botAPI
}

func newTeleOutbox(c tele.Context) *teleOutbox {
	return &teleOutbox{c: c, api: c.Bot()}
}

func (o *teleOutbox) Send(_ context.Context, chatID int64, msg OutboundMessage) error {
	opts := sendOptions(msg)
	if chat := o.c.Chat(); chat != nil && chat.ID == chatID {
		return o.c.Send(msg.Text, opts)
	}
	_, err := o.api.Send(tele.ChatID(chatID), msg.Text, opts)
	return err
}

func (o *teleOutbox) Copy(_ context.Context, toChatID int64, from MessageRef) error {
	_, err := o.api.Copy(tele.ChatID(toChatID), editable(from))
	return err
}

func (o *teleOutbox) ClearKeyboard(_ context.Context, ref MessageRef) error {
	return tghelpers.ClearMarkup(o.c, editable(ref))
}

func sendOptions(msg OutboundMessage) *tele.SendOptions {
	opts := &tele.SendOptions{
		DisableWebPagePreview: msg.DisablePreview,
		ReplyMarkup:           msg.Keyboard.Markup(),
	}
	if msg.HTML {
		opts.ParseMode = tele.ModeHTML
	}
	return opts
}

func editable(ref MessageRef) *tele.Message {
	return &tele.Message{ID: ref.MessageID, Chat: &tele.Chat{ID: ref.ChatID}}
}

func userFrom(c tele.Context) (User, bool) {
	s := c.Sender()
	if s == nil {
		return User{}, false
	}
	u := User{
		ID:       s.ID,
		ChatID:   s.ID,
		FullName: strings.TrimSpace(s.FirstName + " " + s.LastName),
		Username: s.Username,
	}
	if chat := c.Chat(); chat != nil {
		u.ChatID = chat.ID
	}
	return u, true
}

// originFrom returns the message carrying the pressed inline button.
func originFrom(c tele.Context) MessageRef {
	cb := c.Callback()
	if cb == nil || cb.Message == nil || cb.Message.Chat == nil {
		return MessageRef{}
	}
	return MessageRef{ChatID: cb.Message.Chat.ID, MessageID: cb.Message.ID}
}

func inboundFrom(c tele.Context) (Inbound, bool) {
	m := c.Message()
	if m == nil || m.Chat == nil {
		return Inbound{}, false
	}
	return Inbound{
		Ref:  MessageRef{ChatID: m.Chat.ID, MessageID: m.ID},
		Text: m.Text,
	}, true
}

// Handlers exposes Controller operations as telebot handlers.
type Handlers struct {
	ctrl *Controller
}

// NewHandlers wraps ctrl.
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{ctrl: ctrl}
}

// Register installs the conversation commands, callbacks and message fallback.
func (h *Handlers) Register(reg *tg.Registry) error {
	for name, cmd := range map[string]commands.Command{
		"/start": {
			Handler:     h.Start,
			Description: "Start over",
		},
		"/stats": {
			Handler:     h.Stats,
			Description: "Relay statistics",
			AdminOnly:   true,
			Hidden:      true,
		},
	} {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return fmt.Errorf("relay: register command %s: %w", name, err)
		}
	}

	for key, handler := range map[string]tele.HandlerFunc{
		CallbackLanguage:   h.SelectLanguage,
		CallbackCategory:   h.SelectCategory,
		CallbackChangeLang: h.ChangeLanguage,
		CallbackFinish:     h.Finish,
	} {
		if err := reg.RegisterCallback(key, handler); err != nil {
			return fmt.Errorf("relay: register callback %s: %w", key, err)
		}
	}

	// Unknown buttons are answered by the router and otherwise ignored.
	reg.SetCallbackNotFound(func(tele.Context) error { return nil })
	reg.SetTextFallback(h.Message)
	return nil
}

// Start handles /start.
func (h *Handlers) Start(c tele.Context) error {
	u, ok := userFrom(c)
	if !ok {
		return nil
	}
	return h.ctrl.Start(tghelpers.BuildContext(c), newTeleOutbox(c), u)
}

// SelectLanguage handles lang|<code> buttons.
func (h *Handlers) SelectLanguage(c tele.Context) error {
	u, ok := userFrom(c)
	if !ok {
		return nil
	}
	return h.ctrl.SelectLanguage(tghelpers.BuildContext(c), newTeleOutbox(c), u, callbacks.CallbackPayload(c))
}

// SelectCategory handles cat|<id> buttons.
func (h *Handlers) SelectCategory(c tele.Context) error {
	u, ok := userFrom(c)
	if !ok {
		return nil
	}
	return h.ctrl.SelectCategory(tghelpers.BuildContext(c), u, callbacks.CallbackPayload(c))
}

// ChangeLanguage handles the change_lang button.
func (h *Handlers) ChangeLanguage(c tele.Context) error {
	u, ok := userFrom(c)
	if !ok {
		return nil
	}
	return h.ctrl.ChangeLanguage(tghelpers.BuildContext(c), newTeleOutbox(c), u, originFrom(c))
}

// Finish handles the finish button.
func (h *Handlers) Finish(c tele.Context) error {
	u, ok := userFrom(c)
	if !ok {
		return nil
	}
	return h.ctrl.Finish(tghelpers.BuildContext(c), newTeleOutbox(c), u, originFrom(c))
}

// Message handles any text or media message that is not a command.
func (h *Handlers) Message(c tele.Context) error {
	u, ok := userFrom(c)
	if !ok {
		return nil
	}
	in, ok := inboundFrom(c)
	if !ok {
		return nil
	}
	return h.ctrl.HandleMessage(tghelpers.BuildContext(c), newTeleOutbox(c), u, in)
}

// Stats answers the admin-only /stats command.
func (h *Handlers) Stats(c tele.Context) error {
	return c.Send(FormatStats(h.ctrl.Stats()))
}
