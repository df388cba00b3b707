package middleware

import (
	"github.com/m3rciful/memebot/core/metrics"

	tele "gopkg.in/telebot.v4"
)

// UpdateMetrics counts every update that reaches the handlers by kind.
func UpdateMetrics(m *metrics.Metrics) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			m.UpdateReceived(UpdateKind(c.Update()))
			return next(c)
		}
	}
}
