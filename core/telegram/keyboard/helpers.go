package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes a convenience wrapper for inline button properties.
// Leave Unique empty to send Data verbatim as callback data.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// Rows is an inline keyboard layout before it becomes markup.
type Rows [][]InlineBtn

// Empty reports whether rows hold no buttons.
func (r Rows) Empty() bool {
	for _, row := range r {
		if len(row) > 0 {
			return false
		}
	}
	return true
}

// InlineButtons builds an inline keyboard where each provided button is placed on its own row.
func InlineButtons(buttons []InlineBtn) *tele.ReplyMarkup {
	rows := make([][]InlineBtn, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, []InlineBtn{b})
	}
	return InlineButtonsRows(rows...)
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
		inline[i] = r
	}
	markup.InlineKeyboard = inline
	return markup
}

// Markup converts rows into reply markup, or nil when there is nothing to show.
func (r Rows) Markup() *tele.ReplyMarkup {
	if r.Empty() {
		return nil
	}
	return InlineButtonsRows(r...)
}
