package middleware

import (
	"github.com/m3rciful/memebot/core/config"

	tele "gopkg.in/telebot.v4"
)

// UpdateKind classifies an update for rate limit exclusions and metrics.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return config.UpdateCallback
	case upd.Message != nil && upd.Message.Photo != nil:
		return config.UpdatePhoto
	case upd.Message != nil:
		return config.UpdateMessage
	}
	return "other"
}
