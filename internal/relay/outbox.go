package relay

import (
	"context"

	"github.com/m3rciful/relaybot/core/telegram/keyboard"
)

// Callback uniques carried by the inline buttons.
const (
	CallbackLanguage   = "lang"
	CallbackCategory   = "cat"
	CallbackChangeLang = "change_lang"
	CallbackFinish     = "finish"
)

// User identifies who triggered an update.
type User struct {
	ID       int64
	ChatID   int64
	FullName string
	Username string
}

// MessageRef points at an existing chat message.
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Inbound is a message sent by a user.
type Inbound struct {
	Ref  MessageRef
	Text string
}

// OutboundMessage is a text message produced by the controller.
type OutboundMessage struct {
	Text           string
	HTML           bool
	DisablePreview bool
	Keyboard       keyboard.Layout
}

// Outbox delivers controller output to the messaging platform.
type Outbox interface {
	Send(ctx context.Context, chatID int64, msg OutboundMessage) error
	// Copy duplicates an existing message into another chat.
	Copy(ctx context.Context, toChatID int64, from MessageRef) error
	// ClearKeyboard removes the inline keyboard of a sent message.
	ClearKeyboard(ctx context.Context, ref MessageRef) error
}

func greetingMessage() OutboundMessage {
	return OutboundMessage{
		Text:           greetingHTML,
		HTML:           true,
		DisablePreview: true,
		Keyboard:       languageKeyboard(),
	}
}

func languagePromptMessage() OutboundMessage {
	return OutboundMessage{Text: languagePrompt, Keyboard: languageKeyboard()}
}

func menuMessage(lang string) OutboundMessage {
	return OutboundMessage{Text: textsFor(lang).prompt, Keyboard: menuKeyboard(lang)}
}

func languageKeyboard() keyboard.Layout {
	row := make([]keyboard.InlineBtn, 0, len(languages))
	for _, l := range languages {
		row = append(row, keyboard.InlineBtn{Text: l.Button, Unique: CallbackLanguage, Data: l.Code})
	}
	return keyboard.Layout{}.Row(row...)
}

func menuKeyboard(lang string) keyboard.Layout {
	t := textsFor(lang)
	buttons := make([]keyboard.InlineBtn, 0, len(categories))
	for _, c := range categories {
		buttons = append(buttons, keyboard.InlineBtn{Text: c.Label(lang), Unique: CallbackCategory, Data: c.ID})
	}
	return keyboard.Layout{}.
		Column(buttons...).
		Row(keyboard.InlineBtn{Text: t.changeLang, Unique: CallbackChangeLang}).
		Row(keyboard.InlineBtn{Text: t.finish, Unique: CallbackFinish})
}
