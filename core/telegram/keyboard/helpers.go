// Package keyboard builds inline keyboards from plain button descriptions.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn is a callback button. Unique selects the handler, Data is its payload.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// Layout is an inline keyboard described row by row.
type Layout [][]InlineBtn

// Row appends one row holding btns.
func (l Layout) Row(btns ...InlineBtn) Layout {
	if len(btns) == 0 {
		return l
	}
	return append(l, btns)
}

// Column appends each button on a row of its own.
func (l Layout) Column(btns ...InlineBtn) Layout {
	return append(l, Chunk(btns, 1)...)
}

// Markup converts the layout into telebot markup.
// An empty layout yields nil so it can be passed straight to SendOptions.
func (l Layout) Markup() *tele.ReplyMarkup {
	if len(l) == 0 {
		return nil
	}
	markup := &tele.ReplyMarkup{}
	markup.InlineKeyboard = make([][]tele.InlineButton, len(l))
	for i, row := range l {
		markup.InlineKeyboard[i] = make([]tele.InlineButton, len(row))
		for j, btn := range row {
			markup.InlineKeyboard[i][j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
	}
	return markup
}

// Chunk splits items into rows of at most n; n below 1 means one per row.
func Chunk[T any](items []T, n int) [][]T {
	n = max(n, 1)
	rows := make([][]T, 0, (len(items)+n-1)/n)
	for start := 0; start < len(items); start += n {
		rows = append(rows, items[start:min(start+n, len(items))])
	}
	return rows
}
