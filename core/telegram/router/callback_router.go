package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/memebot/core/telegram"
	"github.com/m3rciful/memebot/core/telegram/callbacks"

	tele "gopkg.in/telebot.v4"
)

// CallbackRoute routes button presses to the handler registered for their
// action. The callback is always answered so the client stops spinning.
func CallbackRoute(reg *tg.Registry) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}
		_ = c.Respond()

		cmd := callbacks.FromCallback(cb)
		name := "callback." + normalizeHandlerName(string(cmd.Action))
		extras := []slog.Attr{slog.String("cb_action", string(cmd.Action))}

		h, ok := reg.Callback(cmd.Action)
		if !ok {
			h = reg.CallbackNotFound()
			extras = append(extras, slog.String("reason", "not_found"))
		}
		if h == nil {
			logHandlerSummary(c, name, start, "skip", nil, extras...)
			return nil
		}
		return handleWithSummary(c, name, start, func() error { return h(c) }, extras...)
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: handler}
}
