package tgui

import (
	tele "gopkg.in/telebot.v4"
)

// Btn creates a callback button with raw callback_data. The data is not
// prefixed with telebot's "\f<unique>" marker, so handlers see it verbatim.
func Btn(text, data string) tele.Btn {
	return tele.Btn{Text: text, Data: data}
}

// URLBtn creates a URL button.
func URLBtn(text, url string) tele.Btn {
	return tele.Btn{Text: text, URL: url}
}

// InlineRow returns an inline keyboard with all buttons on one row.
// A zero-button keyboard is still a valid (empty) inline keyboard.
func InlineRow(btns ...tele.Btn) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{}
	rm.Inline(rm.Row(btns...))
	return rm
}

// Reply returns a resizable, one-time reply keyboard with one text button
// per label.
func Reply(rows [][]string) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{ResizeKeyboard: true, OneTimeKeyboard: true}
	out := make([]tele.Row, 0, len(rows))
	for _, labels := range rows {
		btns := make([]tele.Btn, 0, len(labels))
		for _, l := range labels {
			btns = append(btns, rm.Text(l))
		}
		out = append(out, rm.Row(btns...))
	}
	rm.Reply(out...)
	return rm
}
