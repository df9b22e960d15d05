// Package keyboard builds inline keyboards from plain button descriptions.
package keyboard

import tele "gopkg.in/telebot.v4"

// Button describes one inline button. A non-empty URL makes it a link
// button; otherwise Unique and Data form the callback payload.
type Button struct {
	Text   string
	Unique string
	Data   string
	URL    string
}

func (b Button) inline(markup *tele.ReplyMarkup) tele.InlineButton {
	if b.URL != "" {
		return *markup.URL(b.Text, b.URL).Inline()
	}
	return *markup.Data(b.Text, b.Unique, b.Data).Inline()
}

// Markup builds an inline keyboard from rows of buttons. Empty rows are
// skipped.
func Markup(rows ...[]Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, len(row))
		for i, b := range row {
			r[i] = b.inline(markup)
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, r)
	}
	return markup
}

// Column places every button on its own row.
func Column(buttons ...Button) *tele.ReplyMarkup {
	return Markup(Rows(buttons, 1)...)
}

// Grid lays buttons out n per row and appends the extra rows below them.
func Grid(buttons []Button, n int, extra ...[]Button) *tele.ReplyMarkup {
	return Markup(append(Rows(buttons, n), extra...)...)
}

// Rows splits buttons into rows of at most n. n below one means one per row.
func Rows(buttons []Button, n int) [][]Button {
	if n < 1 {
		n = 1
	}
	rows := make([][]Button, 0, (len(buttons)+n-1)/n)
	for len(buttons) > n {
		rows = append(rows, buttons[:n:n])
		buttons = buttons[n:]
	}
	if len(buttons) > 0 {
		rows = append(rows, buttons)
	}
	return rows
}
