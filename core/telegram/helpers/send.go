package helpers

import (
	"github.com/m3rciful/memebot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// SendOptions builds plain-text send options with an optional inline
// keyboard and reply target. replyTo <= 0 means no reply.
func SendOptions(rows keyboard.Rows, replyTo int) *tele.SendOptions {
	opts := &tele.SendOptions{ReplyMarkup: rows.Markup()}
	if replyTo > 0 {
		opts.ReplyTo = &tele.Message{ID: replyTo}
		opts.AllowWithoutReply = true
	}
	return opts
}

// SendText sends raw text (no parse mode) to the current chat.
func SendText(c tele.Context, text string, rows keyboard.Rows) error {
	return c.Send(text, SendOptions(rows, 0))
}
