package router

import (
	"time"

	tg "github.com/m3rciful/memebot/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// MessageRoutes builds handlers for plain text and photo messages.
// Commands never reach here: telebot routes them to their own endpoints.
func MessageRoutes(reg *tg.Registry) []tg.Route {
	text := func(c tele.Context) error {
		start := time.Now()
		if fb := reg.TextFallback(); fb != nil {
			return handleWithSummary(c, "text", start, func() error { return fb(c) })
		}
		logHandlerSummary(c, "text", start, "skip", nil)
		return nil
	}
	photo := func(c tele.Context) error {
		start := time.Now()
		if h := reg.PhotoHandler(); h != nil {
			return handleWithSummary(c, "photo", start, func() error { return h(c) })
		}
		logHandlerSummary(c, "photo", start, "skip", nil)
		return nil
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: text},
		{Endpoint: tele.OnPhoto, Handler: photo},
	}
}
