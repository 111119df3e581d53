package relay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/relaybot/core/metrics"
	"github.com/m3rciful/relaybot/core/telegram/state"
)

const (
	adminChat = int64(-100777)
	userID    = int64(501)
)

type sent struct {
	chatID int64
	msg    OutboundMessage
}

type copied struct {
	toChatID int64
	from     MessageRef
}

type fakeOutbox struct {
	sends   []sent
	copies  []copied
	cleared []MessageRef

	failSendTo map[int64]error
	failCopy   error
	failClear  error
}

func (f *fakeOutbox) Send(_ context.Context, chatID int64, msg OutboundMessage) error {
	if err := f.failSendTo[chatID]; err != nil {
		return err
	}
	f.sends = append(f.sends, sent{chatID: chatID, msg: msg})
	return nil
}

func (f *fakeOutbox) Copy(_ context.Context, toChatID int64, from MessageRef) error {
	if f.failCopy != nil {
		return f.failCopy
	}
	f.copies = append(f.copies, copied{toChatID: toChatID, from: from})
	return nil
}

func (f *fakeOutbox) ClearKeyboard(_ context.Context, ref MessageRef) error {
	f.cleared = append(f.cleared, ref)
	return f.failClear
}

func (f *fakeOutbox) to(chatID int64) []OutboundMessage {
	var out []OutboundMessage
	for _, s := range f.sends {
		if s.chatID == chatID {
			out = append(out, s.msg)
		}
	}
	return out
}

func (f *fakeOutbox) all() []OutboundMessage {
	out := make([]OutboundMessage, 0, len(f.sends))
	for _, s := range f.sends {
		out = append(out, s.msg)
	}
	return out
}

func (f *fakeOutbox) reset() {
	f.sends, f.copies, f.cleared = nil, nil, nil
}

func newTestController(t *testing.T, autoReply bool) (*Controller, state.Store, *metrics.Collector) {
	t.Helper()
	store := state.NewMemoryStore(16, time.Hour)
	col := metrics.New()
	ctrl, err := NewController(store, Options{
		AdminChatID: adminChat,
		AutoReply:   autoReply,
		AdminLang:   LangEN,
		Metrics:     col,
		NewRef:      func() string { return "ref00001" },
	})
	require.NoError(t, err)
	return ctrl, store, col
}

func testUser() User {
	return User{ID: userID, ChatID: userID, FullName: "Ann Lee", Username: "ann"}
}

func inbound(id int, text string) Inbound {
	return Inbound{Ref: MessageRef{ChatID: userID, MessageID: id}, Text: text}
}

func countGreetings(msgs []OutboundMessage) int {
	n := 0
	for _, m := range msgs {
		if m.Text == greetingHTML {
			n++
		}
	}
	return n
}

func TestNewControllerValidates(t *testing.T) {
	_, err := NewController(nil, Options{AdminChatID: 1})
	assert.Error(t, err)

	_, err = NewController(state.NewMemoryStore(1, 0), Options{})
	assert.Error(t, err)

	ctrl, err := NewController(state.NewMemoryStore(1, 0), Options{AdminChatID: 1, AdminLang: "de"})
	require.NoError(t, err)
	assert.Equal(t, LangRU, ctrl.opts.AdminLang)
}

func TestStartSendsGreetingWithLanguagePicker(t *testing.T) {
	ctrl, store, _ := newTestController(t, false)
	out := &fakeOutbox{}
	ctx := context.Background()

	require.NoError(t, ctrl.Start(ctx, out, testUser()))

	msgs := out.to(userID)
	require.Len(t, msgs, 1)
	assert.Equal(t, greetingHTML, msgs[0].Text)
	assert.True(t, msgs[0].HTML)
	assert.True(t, msgs[0].DisablePreview)
	require.Len(t, msgs[0].Keyboard, 1)
	require.Len(t, msgs[0].Keyboard[0], 3)
	assert.Equal(t, CallbackLanguage, msgs[0].Keyboard[0][1].Unique)
	assert.Equal(t, LangEN, msgs[0].Keyboard[0][1].Data)

	sess, ok := store.Get(userID)
	require.True(t, ok)
	assert.Equal(t, state.StageAwaitingLanguage, sess.Stage)
	assert.Empty(t, sess.Language)
}

func TestStartResetsExistingSession(t *testing.T) {
	ctrl, store, _ := newTestController(t, false)
	store.Set(userID, state.Session{Stage: state.StageAwaitingMessage, Language: LangUK, Category: "idea"})

	require.NoError(t, ctrl.Start(context.Background(), &fakeOutbox{}, testUser()))

	sess, _ := store.Get(userID)
	assert.Equal(t, state.Session{Stage: state.StageAwaitingLanguage, UpdatedAt: sess.UpdatedAt}, sess)
}

func TestSelectLanguageShowsMenuWithoutGreeting(t *testing.T) {
	ctrl, store, _ := newTestController(t, false)
	out := &fakeOutbox{}
	ctx := context.Background()

	require.NoError(t, ctrl.SelectLanguage(ctx, out, testUser(), LangEN))

	msgs := out.to(userID)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Choose a category:", msgs[0].Text)
	assert.Zero(t, countGreetings(msgs))

	kb := msgs[0].Keyboard
	require.Len(t, kb, len(categories)+2)
	for i, c := range categories {
		assert.Equal(t, CallbackCategory, kb[i][0].Unique)
		assert.Equal(t, c.ID, kb[i][0].Data)
		assert.Equal(t, c.Label(LangEN), kb[i][0].Text)
	}
	assert.Equal(t, CallbackChangeLang, kb[len(kb)-2][0].Unique)
	assert.Equal(t, CallbackFinish, kb[len(kb)-1][0].Unique)

	sess, _ := store.Get(userID)
	assert.Equal(t, state.StageAwaitingCategory, sess.Stage)
	assert.Equal(t, LangEN, sess.Language)
	assert.Empty(t, sess.Category)
}

func TestSelectLanguageIgnoresUnknownCode(t *testing.T) {
	ctrl, store, _ := newTestController(t, false)
	out := &fakeOutbox{}

	require.NoError(t, ctrl.SelectLanguage(context.Background(), out, testUser(), "de"))

	assert.Empty(t, out.sends)
	_, ok := store.Get(userID)
	assert.False(t, ok)
}

func TestSelectCategoryNeverNotifiesAdmin(t *testing.T) {
	ctrl, store, _ := newTestController(t, false)
	out := &fakeOutbox{}
	ctx := context.Background()
	require.NoError(t, ctrl.SelectLanguage(ctx, out, testUser(), LangRU))
	out.reset()

	for _, c := range categories {
		require.NoError(t, ctrl.SelectCategory(ctx, testUser(), c.ID))
		sess, _ := store.Get(userID)
		assert.Equal(t, state.StageAwaitingMessage, sess.Stage)
		assert.Equal(t, c.ID, sess.Category)
	}
	assert.Empty(t, out.sends)
	assert.Empty(t, out.copies)
}

func TestSelectCategoryIgnored(t *testing.T) {
	ctrl, store, _ := newTestController(t, false)
	ctx := context.Background()

	// No session at all.
	require.NoError(t, ctrl.SelectCategory(ctx, testUser(), "idea"))
	_, ok := store.Get(userID)
	assert.False(t, ok)

	// Language picker still open.
	require.NoError(t, ctrl.Start(ctx, &fakeOutbox{}, testUser()))
	require.NoError(t, ctrl.SelectCategory(ctx, testUser(), "idea"))
	sess, _ := store.Get(userID)
	assert.Equal(t, state.StageAwaitingLanguage, sess.Stage)

	// Unknown id.
	require.NoError(t, ctrl.SelectLanguage(ctx, &fakeOutbox{}, testUser(), LangEN))
	require.NoError(t, ctrl.SelectCategory(ctx, testUser(), "support"))
	sess, _ = store.Get(userID)
	assert.Equal(t, state.StageAwaitingCategory, sess.Stage)
	assert.Empty(t, sess.Category)
}

func TestHandleMessageForwardsExactlyOnce(t *testing.T) {
	ctrl, store, col := newTestController(t, false)
	out := &fakeOutbox{}
	ctx := context.Background()
	require.NoError(t, ctrl.SelectLanguage(ctx, out, testUser(), LangEN))
	require.NoError(t, ctrl.SelectCategory(ctx, testUser(), "prayer"))
	out.reset()

	require.NoError(t, ctrl.HandleMessage(ctx, out, testUser(), inbound(42, "Hello")))

	require.Len(t, out.copies, 1)
	assert.Equal(t, copied{toChatID: adminChat, from: MessageRef{ChatID: userID, MessageID: 42}}, out.copies[0])

	admin := out.to(adminChat)
	require.Len(t, admin, 1)
	header := admin[0].Text
	assert.Contains(t, header, "📨 New request")
	assert.Contains(t, header, "Ann Lee (id=501)")
	assert.Contains(t, header, "@ann")
	assert.Contains(t, header, "Language: en")
	assert.Contains(t, header, "Category: 🙏 Personal prayer & support")
	assert.Contains(t, header, "From chat: 501")
	assert.Contains(t, header, "Ref: ref00001")
	assert.False(t, admin[0].HTML)

	// Back to the menu, no acknowledgement without auto-reply.
	user := out.to(userID)
	require.Len(t, user, 1)
	assert.Equal(t, "Choose a category:", user[0].Text)

	sess, _ := store.Get(userID)
	assert.Equal(t, state.StageAwaitingCategory, sess.Stage)
	assert.Empty(t, sess.Category)
	assert.Equal(t, LangEN, sess.Language)

	st := ctrl.Stats()
	assert.Equal(t, uint64(1), st.Forwarded)
	assert.Zero(t, st.AutoReplies)
	assert.Equal(t, 1, st.ActiveSessions)
	assert.Equal(t, uint64(1), col.Snapshot().Forwarded)
}

func TestHandleMessageAutoReply(t *testing.T) {
	ctrl, _, _ := newTestController(t, true)
	out := &fakeOutbox{}
	ctx := context.Background()
	require.NoError(t, ctrl.SelectLanguage(ctx, out, testUser(), LangUK))
	require.NoError(t, ctrl.SelectCategory(ctx, testUser(), "visit"))
	out.reset()

	require.NoError(t, ctrl.HandleMessage(ctx, out, testUser(), inbound(7, "Привіт")))

	user := out.to(userID)
	require.Len(t, user, 2)
	assert.Equal(t, "✅ Дякуємо! Ми зв'яжемося з вами.", user[0].Text)
	assert.Equal(t, "Оберіть категорію:", user[1].Text)
	assert.Equal(t, uint64(1), ctrl.Stats().AutoReplies)
}

func TestHandleMessageAckFailureIsNotFatal(t *testing.T) {
	ctrl, store, _ := newTestController(t, true)
	ctx := context.Background()
	store.Set(userID, state.Session{Stage: state.StageAwaitingMessage, Language: LangEN, Category: "idea"})

	out := &fakeOutbox{failSendTo: map[int64]error{userID: errors.New("blocked by user")}}
	err := ctrl.HandleMessage(ctx, out, testUser(), inbound(3, "idea text"))

	// The menu send fails too, but only after the forward and state reset.
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "forward to admin")
	assert.Len(t, out.copies, 1)
	sess, _ := store.Get(userID)
	assert.Equal(t, state.StageAwaitingCategory, sess.Stage)
	assert.Zero(t, ctrl.Stats().AutoReplies)
}

func TestHandleMessageAdminFailureKeepsStage(t *testing.T) {
	boom := errors.New("chat not found")

	t.Run("header", func(t *testing.T) {
		ctrl, store, _ := newTestController(t, true)
		store.Set(userID, state.Session{Stage: state.StageAwaitingMessage, Language: LangEN, Category: "pastor"})
		out := &fakeOutbox{failSendTo: map[int64]error{adminChat: boom}}

		err := ctrl.HandleMessage(context.Background(), out, testUser(), inbound(9, "hi"))
		require.ErrorIs(t, err, boom)
		assert.True(t, strings.HasPrefix(err.Error(), "relay: forward to admin:"))
		assert.Empty(t, out.copies)
		assert.Empty(t, out.to(userID))

		sess, _ := store.Get(userID)
		assert.Equal(t, state.StageAwaitingMessage, sess.Stage)
		assert.Equal(t, "pastor", sess.Category)
		assert.Equal(t, uint64(1), ctrl.Stats().ForwardFailed)
	})

	t.Run("copy", func(t *testing.T) {
		ctrl, store, _ := newTestController(t, true)
		store.Set(userID, state.Session{Stage: state.StageAwaitingMessage, Language: LangEN, Category: "pastor"})
		out := &fakeOutbox{failCopy: boom}

		err := ctrl.HandleMessage(context.Background(), out, testUser(), inbound(9, "hi"))
		require.ErrorIs(t, err, boom)
		assert.Empty(t, out.to(userID))
		sess, _ := store.Get(userID)
		assert.Equal(t, state.StageAwaitingMessage, sess.Stage)
	})
}

func TestHandleMessageBeforeLanguage(t *testing.T) {
	ctrl, _, _ := newTestController(t, true)
	ctx := context.Background()

	for name, prepare := range map[string]func(){
		"no session": func() {},
		"after start": func() {
			require.NoError(t, ctrl.Start(ctx, &fakeOutbox{}, testUser()))
		},
	} {
		t.Run(name, func(t *testing.T) {
			prepare()
			out := &fakeOutbox{}
			require.NoError(t, ctrl.HandleMessage(ctx, out, testUser(), inbound(1, "hello?")))

			assert.Empty(t, out.copies)
			msgs := out.to(userID)
			require.Len(t, msgs, 1)
			assert.Equal(t, languagePrompt, msgs[0].Text)
			assert.Zero(t, countGreetings(msgs))
			assert.Empty(t, out.to(adminChat))
		})
	}
}

func TestHandleMessageWithoutCategoryShowsMenu(t *testing.T) {
	ctrl, _, _ := newTestController(t, true)
	out := &fakeOutbox{}
	ctx := context.Background()
	require.NoError(t, ctrl.SelectLanguage(ctx, out, testUser(), LangRU))
	out.reset()

	require.NoError(t, ctrl.HandleMessage(ctx, out, testUser(), inbound(2, "просто текст")))

	assert.Empty(t, out.copies)
	msgs := out.to(userID)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Выберите категорию:", msgs[0].Text)
}

func TestHandleMessageTypedLabelSelectsCategory(t *testing.T) {
	ctrl, store, _ := newTestController(t, true)
	out := &fakeOutbox{}
	ctx := context.Background()
	require.NoError(t, ctrl.SelectLanguage(ctx, out, testUser(), LangEN))
	out.reset()

	require.NoError(t, ctrl.HandleMessage(ctx, out, testUser(), inbound(5, "🏠 I need a visit")))

	assert.Empty(t, out.sends)
	assert.Empty(t, out.copies)
	sess, _ := store.Get(userID)
	assert.Equal(t, state.StageAwaitingMessage, sess.Stage)
	assert.Equal(t, "visit", sess.Category)

	// A label from another language is an ordinary message.
	require.NoError(t, ctrl.HandleMessage(ctx, out, testUser(), inbound(6, "🏠 Нуждаюсь в посещении")))
	assert.Len(t, out.copies, 1)
}

func TestHandleMessageIgnoresAdminGroup(t *testing.T) {
	ctrl, _, _ := newTestController(t, true)
	out := &fakeOutbox{}
	u := User{ID: 900, ChatID: adminChat, FullName: "Moderator"}

	require.NoError(t, ctrl.HandleMessage(context.Background(), out, u, Inbound{Text: "reply to someone"}))
	assert.Empty(t, out.sends)
}

func TestChangeLanguage(t *testing.T) {
	ctrl, store, _ := newTestController(t, false)
	out := &fakeOutbox{}
	ctx := context.Background()
	require.NoError(t, ctrl.Start(ctx, out, testUser()))
	require.NoError(t, ctrl.SelectLanguage(ctx, out, testUser(), LangRU))
	require.NoError(t, ctrl.SelectCategory(ctx, testUser(), "idea"))
	out.reset()

	origin := MessageRef{ChatID: userID, MessageID: 77}
	require.NoError(t, ctrl.ChangeLanguage(ctx, out, testUser(), origin))

	msgs := out.to(userID)
	require.Len(t, msgs, 1)
	assert.Equal(t, languagePrompt, msgs[0].Text)
	assert.Zero(t, countGreetings(msgs))
	assert.Equal(t, []MessageRef{origin}, out.cleared)

	sess, _ := store.Get(userID)
	assert.Equal(t, state.StageAwaitingLanguage, sess.Stage)
	assert.Empty(t, sess.Category)
	assert.Equal(t, LangRU, sess.Language)

	// A message now only gets the picker, never a forward.
	out.reset()
	require.NoError(t, ctrl.HandleMessage(ctx, out, testUser(), inbound(8, "text")))
	assert.Empty(t, out.copies)
	assert.Equal(t, languagePrompt, out.to(userID)[0].Text)

	// Picking a language shows the menu right away.
	out.reset()
	require.NoError(t, ctrl.SelectLanguage(ctx, out, testUser(), LangEN))
	require.Len(t, out.to(userID), 1)
	assert.Equal(t, "Choose a category:", out.to(userID)[0].Text)
	assert.Zero(t, countGreetings(out.to(userID)))
}

func TestChangeLanguageClearFailureIsNotFatal(t *testing.T) {
	ctrl, _, _ := newTestController(t, false)
	out := &fakeOutbox{failClear: errors.New("message is not modified")}

	err := ctrl.ChangeLanguage(context.Background(), out, testUser(), MessageRef{ChatID: userID, MessageID: 1})
	require.NoError(t, err)
	assert.Len(t, out.to(userID), 1)
}

func TestFinish(t *testing.T) {
	ctrl, store, _ := newTestController(t, false)
	out := &fakeOutbox{}
	ctx := context.Background()
	require.NoError(t, ctrl.SelectLanguage(ctx, out, testUser(), LangUK))
	out.reset()

	origin := MessageRef{ChatID: userID, MessageID: 12}
	require.NoError(t, ctrl.Finish(ctx, out, testUser(), origin))

	msgs := out.to(userID)
	require.Len(t, msgs, 1)
	assert.Equal(t, "✅ Дякуємо за спілкування! Щоб повернутися, натисніть /start", msgs[0].Text)
	assert.Empty(t, msgs[0].Keyboard)
	assert.Equal(t, []MessageRef{origin}, out.cleared)
	_, ok := store.Get(userID)
	assert.False(t, ok)

	// Without a session the goodbye falls back to English.
	out.reset()
	require.NoError(t, ctrl.Finish(ctx, out, testUser(), MessageRef{}))
	assert.Equal(t, "✅ Thank you for chatting! To return, just type /start", out.to(userID)[0].Text)
	assert.Empty(t, out.cleared)

	// The next /start shows the full greeting again.
	out.reset()
	require.NoError(t, ctrl.Start(ctx, out, testUser()))
	assert.Equal(t, 1, countGreetings(out.to(userID)))
}

func TestScenarioEnglishWithAutoReply(t *testing.T) {
	ctrl, _, _ := newTestController(t, true)
	out := &fakeOutbox{}
	ctx := context.Background()
	u := testUser()

	require.NoError(t, ctrl.Start(ctx, out, u))
	require.NoError(t, ctrl.SelectLanguage(ctx, out, u, LangEN))
	require.NoError(t, ctrl.SelectCategory(ctx, u, "prayer"))
	require.NoError(t, ctrl.HandleMessage(ctx, out, u, inbound(100, "Hello")))

	assert.Equal(t, 1, countGreetings(out.all()))
	require.Len(t, out.copies, 1)
	assert.Equal(t, 100, out.copies[0].from.MessageID)
	assert.Len(t, out.to(adminChat), 1)

	var texts []string
	for _, m := range out.to(userID) {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{
		greetingHTML,
		"Choose a category:",
		"✅ Thank you! We will get back to you.",
		"Choose a category:",
	}, texts)
}

func TestScenarioNoAutoReply(t *testing.T) {
	ctrl, _, _ := newTestController(t, false)
	out := &fakeOutbox{}
	ctx := context.Background()
	u := testUser()

	require.NoError(t, ctrl.Start(ctx, out, u))
	require.NoError(t, ctrl.SelectLanguage(ctx, out, u, LangEN))
	require.NoError(t, ctrl.SelectCategory(ctx, u, "idea"))
	require.NoError(t, ctrl.HandleMessage(ctx, out, u, inbound(100, "Hello")))

	assert.Len(t, out.copies, 1)
	for _, m := range out.to(userID) {
		assert.NotEqual(t, textsFor(LangEN).ack, m.Text)
	}
}
