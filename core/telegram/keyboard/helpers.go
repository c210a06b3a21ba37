// Package keyboard builds inline markups.
package keyboard

import tele "gopkg.in/telebot.v4"

// MaxCallbackData is the Telegram limit for callback_data in bytes.
const MaxCallbackData = 64

// InlineBtn describes one inline button; Unique routes the callback.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
// Empty rows are skipped.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
		inline = append(inline, r)
	}
	markup.InlineKeyboard = inline
	return markup
}

// EchoRows builds buttons that send their own label back under unique.
// Labels that would overflow callback_data are left out; nil means no
// button survived.
func EchoRows(unique string, rows [][]string) *tele.ReplyMarkup {
	// "\f" + unique + "|" + label
	room := MaxCallbackData - len(unique) - 2
	btns := make([][]InlineBtn, 0, len(rows))
	total := 0
	for _, row := range rows {
		r := make([]InlineBtn, 0, len(row))
		for _, label := range row {
			if label == "" || len(label) > room {
				continue
			}
			r = append(r, InlineBtn{Text: label, Unique: unique, Data: label})
		}
		total += len(r)
		btns = append(btns, r)
	}
	if total == 0 {
		return nil
	}
	return InlineButtonsRows(btns...)
}
