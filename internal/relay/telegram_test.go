package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/metrics"
	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/state"
)

type fakeContext struct {
	tele.Context
	sender   *tele.User
	chat     *tele.Chat
	callback *tele.Callback
	message  *tele.Message
}

func (f *fakeContext) Sender() *tele.User       { return f.sender }
func (f *fakeContext) Chat() *tele.Chat         { return f.chat }
func (f *fakeContext) Callback() *tele.Callback { return f.callback }
func (f *fakeContext) Message() *tele.Message   { return f.message }

func TestUserFrom(t *testing.T) {
	_, ok := userFrom(&fakeContext{})
	assert.False(t, ok)

	u, ok := userFrom(&fakeContext{
		sender: &tele.User{ID: 5, FirstName: "Ann", LastName: "Lee", Username: "ann"},
		chat:   &tele.Chat{ID: 5},
	})
	require.True(t, ok)
	assert.Equal(t, User{ID: 5, ChatID: 5, FullName: "Ann Lee", Username: "ann"}, u)

	u, _ = userFrom(&fakeContext{sender: &tele.User{ID: 6, FirstName: "Bo"}})
	assert.Equal(t, int64(6), u.ChatID)
	assert.Equal(t, "Bo", u.FullName)
}

func TestOriginAndInbound(t *testing.T) {
	msg := &tele.Message{ID: 31, Chat: &tele.Chat{ID: 9}, Text: "hi"}

	assert.Equal(t, MessageRef{}, originFrom(&fakeContext{}))
	assert.Equal(t, MessageRef{ChatID: 9, MessageID: 31}, originFrom(&fakeContext{callback: &tele.Callback{Message: msg}}))

	in, ok := inboundFrom(&fakeContext{message: msg})
	require.True(t, ok)
	assert.Equal(t, Inbound{Ref: MessageRef{ChatID: 9, MessageID: 31}, Text: "hi"}, in)

	_, ok = inboundFrom(&fakeContext{})
	assert.False(t, ok)
}

func TestSendOptions(t *testing.T) {
	opts := sendOptions(greetingMessage())
	assert.Equal(t, tele.ModeHTML, opts.ParseMode)
	assert.True(t, opts.DisableWebPagePreview)
	require.NotNil(t, opts.ReplyMarkup)
	require.Len(t, opts.ReplyMarkup.InlineKeyboard, 1)
	btn := opts.ReplyMarkup.InlineKeyboard[0][0]
	assert.Equal(t, CallbackLanguage, btn.Unique)
	assert.Equal(t, LangRU, btn.Data)

	plain := sendOptions(OutboundMessage{Text: "ack"})
	assert.Empty(t, plain.ParseMode)
	assert.Nil(t, plain.ReplyMarkup)

	menu := sendOptions(menuMessage(LangEN))
	assert.Len(t, menu.ReplyMarkup.InlineKeyboard, len(categories)+2)
}

func TestEditable(t *testing.T) {
	m := editable(MessageRef{ChatID: -100, MessageID: 4})
	id, chatID := m.MessageSig()
	assert.Equal(t, "4", id)
	assert.Equal(t, int64(-100), chatID)
}

func TestHandlersRegister(t *testing.T) {
	ctrl, err := NewController(state.NewMemoryStore(4, time.Minute), Options{AdminChatID: -1, Metrics: metrics.New()})
	require.NoError(t, err)

	reg := tg.NewRegistry()
	require.NoError(t, NewHandlers(ctrl).Register(reg))

	assert.Equal(t, []string{CallbackCategory, CallbackChangeLang, CallbackFinish, CallbackLanguage}, reg.ListCallbacks())
	_, cmd, ok := reg.LookupCommand("stats")
	require.True(t, ok)
	assert.True(t, cmd.AdminOnly)

	visible := reg.ListCommands(true)
	require.Len(t, visible, 1)
	assert.Equal(t, "start", visible[0].Text)
	assert.NotNil(t, reg.TextFallback())
	assert.NoError(t, reg.CallbackNotFound()(&fakeContext{}))

	// A second registration collides.
	assert.Error(t, NewHandlers(ctrl).Register(reg))
}

func TestFormatStats(t *testing.T) {
	out := FormatStats(metrics.Stats{Forwarded: 3, ForwardFailed: 1, AutoReplies: 2, ActiveSessions: 5})
	assert.Equal(t, "📊 Active sessions: 5\nForwarded: 3 (failed: 1)\nAuto replies: 2", out)
}
