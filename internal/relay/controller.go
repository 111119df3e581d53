// Package relay implements the conversation that leads a user from /start
// through language and category selection to a message relayed to the admin chat.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/metrics"
	"github.com/m3rciful/relaybot/core/telegram/netutil"
	"github.com/m3rciful/relaybot/core/telegram/state"
)

const component = "relay"

// Options configures a Controller.
type Options struct {
	// AdminChatID receives forwarded messages. Group chats are negative.
	AdminChatID int64
	// AutoReply sends the acknowledgement to the user after a forward.
	AutoReply bool
	// AdminLang selects the language of the forward header.
	AdminLang string
	Metrics   *metrics.Collector
	// NewRef overrides the forward reference generator.
	NewRef func() string
}

// Controller drives the per-user conversation state machine.
type Controller struct {
	store state.Store
	opts  Options
}

// NewController validates opts and returns a Controller backed by store.
func NewController(store state.Store, opts Options) (*Controller, error) {
	if store == nil {
		return nil, errors.New("relay: nil session store")
	}
	if opts.AdminChatID == 0 {
		return nil, errors.New("relay: admin chat id is required")
	}
	if _, ok := catalog[opts.AdminLang]; !ok {
		opts.AdminLang = LangRU
	}
	if opts.NewRef == nil {
		opts.NewRef = newForwardRef
	}
	return &Controller{store: store, opts: opts}, nil
}

// Start resets the session and shows the trilingual greeting with the language picker.
func (c *Controller) Start(ctx context.Context, out Outbox, u User) error {
	c.save(u.ID, state.Session{Stage: state.StageAwaitingLanguage})
	logger.Info(ctx, component, "relay.start")
	return out.Send(ctx, u.ChatID, greetingMessage())
}

// SelectLanguage stores the language and shows the category menu.
// Unknown codes are ignored.
func (c *Controller) SelectLanguage(ctx context.Context, out Outbox, u User, code string) error {
	lang, err := ParseLanguage(code)
	if err != nil {
		logger.Debug(ctx, component, "relay.lang.ignored",
			slog.String("lang", code),
			slog.String("reason", err.Error()),
		)
		return nil
	}
	c.save(u.ID, state.Session{Stage: state.StageAwaitingCategory, Language: lang})
	logger.Info(ctx, component, "relay.lang", slog.String("lang", lang))
	return out.Send(ctx, u.ChatID, menuMessage(lang))
}

// SelectCategory arms the session so the next message is forwarded.
// Unknown categories and users without a language are ignored. Nothing is sent.
func (c *Controller) SelectCategory(ctx context.Context, u User, id string) error {
	sess, ok := c.store.Get(u.ID)
	if !ok || !sess.HasLanguage() {
		logger.Debug(ctx, component, "relay.category.ignored",
			slog.String("category", id),
			slog.String("reason", "no_language"),
		)
		return nil
	}
	cat, ok := LookupCategory(id)
	if !ok {
		logger.Debug(ctx, component, "relay.category.ignored",
			slog.String("category", id),
			slog.String("reason", "unknown"),
		)
		return nil
	}
	c.armCategory(ctx, u, sess, cat)
	return nil
}

// HandleMessage reacts to any non-command message.
// Group traffic inside the admin chat is ignored.
func (c *Controller) HandleMessage(ctx context.Context, out Outbox, u User, msg Inbound) error {
	if u.ChatID == c.opts.AdminChatID && u.ChatID != u.ID {
		return nil
	}
	sess, ok := c.store.Get(u.ID)
	hasLang := ok && sess.HasLanguage()

	if hasLang {
		if cat, found := CategoryByLabel(sess.Language, msg.Text); found {
			c.armCategory(ctx, u, sess, cat)
			return nil
		}
	}

	switch {
	case hasLang && sess.Stage == state.StageAwaitingMessage:
		return c.forward(ctx, out, u, sess, msg)
	case !hasLang:
		return out.Send(ctx, u.ChatID, languagePromptMessage())
	default:
		return out.Send(ctx, u.ChatID, menuMessage(sess.Language))
	}
}

// ChangeLanguage returns to the language picker without the greeting.
// The previous language is kept until a new one is picked.
func (c *Controller) ChangeLanguage(ctx context.Context, out Outbox, u User, origin MessageRef) error {
	sess, _ := c.store.Get(u.ID)
	c.save(u.ID, state.Session{Stage: state.StageAwaitingLanguage, Language: sess.Language})
	c.clearKeyboard(ctx, out, origin)
	logger.Info(ctx, component, "relay.change_lang", slog.String("lang", sess.Language))
	return out.Send(ctx, u.ChatID, languagePromptMessage())
}

// Finish drops the session and says goodbye in the session language.
func (c *Controller) Finish(ctx context.Context, out Outbox, u User, origin MessageRef) error {
	sess, _ := c.store.Get(u.ID)
	c.store.Clear(u.ID)
	c.clearKeyboard(ctx, out, origin)
	logger.Info(ctx, component, "relay.finish", slog.String("lang", sess.Language))
	return out.Send(ctx, u.ChatID, OutboundMessage{Text: textsFor(sess.Language).goodbye})
}

// Stats summarises activity for the admin.
func (c *Controller) Stats() metrics.Stats {
	st := c.opts.Metrics.Snapshot()
	st.ActiveSessions = c.store.Len()
	return st
}

func (c *Controller) forward(ctx context.Context, out Outbox, u User, sess state.Session, msg Inbound) error {
	cat, ok := LookupCategory(sess.Category)
	if !ok {
		cat = Category{ID: sess.Category}
	}
	header := forwardHeader{User: u, Lang: sess.Language, Category: cat, Ref: c.opts.NewRef()}
	admin := c.opts.AdminChatID

	err := out.Send(ctx, admin, OutboundMessage{Text: header.render(c.opts.AdminLang)})
	if err == nil {
		err = out.Copy(ctx, admin, msg.Ref)
	}
	c.opts.Metrics.ObserveForward(cat.ID, sess.Language, err)
	if err != nil {
		logger.Error(ctx, component, "relay.forward",
			slog.String("status", "fail"),
			slog.String("category", cat.ID),
			slog.String("forward_ref", header.Ref),
			slog.Int64("admin_chat_id", admin),
			slog.String("err", netutil.Redact(err)),
			slog.String("error_kind", netutil.Classify(err)),
		)
		return fmt.Errorf("relay: forward to admin: %w", err)
	}
	logger.Info(ctx, component, "relay.forward",
		slog.String("status", "ok"),
		slog.String("lang", sess.Language),
		slog.String("category", cat.ID),
		slog.String("forward_ref", header.Ref),
		slog.Int64("admin_chat_id", admin),
	)

	if c.opts.AutoReply {
		if err := out.Send(ctx, u.ChatID, OutboundMessage{Text: textsFor(sess.Language).ack}); err != nil {
			logger.Warn(ctx, component, "relay.ack",
				slog.String("status", "fail"),
				slog.String("err", netutil.Redact(err)),
				slog.String("error_kind", netutil.Classify(err)),
			)
		} else {
			c.opts.Metrics.ObserveAutoReply()
		}
	}

	c.save(u.ID, state.Session{Stage: state.StageAwaitingCategory, Language: sess.Language})
	return out.Send(ctx, u.ChatID, menuMessage(sess.Language))
}

func (c *Controller) armCategory(ctx context.Context, u User, sess state.Session, cat Category) {
	sess.Stage = state.StageAwaitingMessage
	sess.Category = cat.ID
	c.save(u.ID, sess)
	logger.Info(ctx, component, "relay.category",
		slog.String("lang", sess.Language),
		slog.String("category", cat.ID),
	)
}

func (c *Controller) clearKeyboard(ctx context.Context, out Outbox, ref MessageRef) {
	if ref.MessageID == 0 {
		return
	}
	if err := out.ClearKeyboard(ctx, ref); err != nil {
		logger.Warn(ctx, component, "relay.keyboard.clear",
			slog.String("status", "fail"),
			slog.String("err", netutil.Redact(err)),
			slog.String("error_kind", netutil.Classify(err)),
		)
	}
}

func (c *Controller) save(userID int64, sess state.Session) {
	c.store.Set(userID, sess)
	c.opts.Metrics.ObserveStage(string(sess.Stage))
}
