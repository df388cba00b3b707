package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/m3rciful/memebot/core/config"
	"github.com/m3rciful/memebot/core/logger"
	"github.com/m3rciful/memebot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// BuildPoller returns the poller for long-poll mode. Webhook mode has no
// poller: updates come in through the HTTP handler and are fed to the bot
// with ProcessUpdate.
func BuildPoller(cfg config.BotConfig) tele.Poller {
	if strings.EqualFold(cfg.RunMode, config.RunModeWebhook) {
		return nil
	}
	timeout := cfg.LongPoll.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &tele.LongPoller{Timeout: timeout}
}

// NewBot builds the telebot client. Webhook mode runs handlers synchronously
// on the goroutine the HTTP handler dispatched the update to, so shutdown can
// wait for them.
func NewBot(cfg config.BotConfig, client *http.Client) (*tele.Bot, error) {
	webhook := strings.EqualFold(cfg.RunMode, config.RunModeWebhook)
	bot, err := tele.NewBot(tele.Settings{
		URL:         cfg.APIURL,
		Token:       cfg.Token,
		Poller:      BuildPoller(cfg),
		Client:      client,
		Synchronous: webhook,
		OnError:     onError,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	return bot, nil
}

func onError(err error, c tele.Context) {
	ctx := context.Background()
	attrs := []slog.Attr{
		slog.String("error", sender.Redact(err)),
		slog.String("error_kind", sender.Classify(err)),
	}
	if c != nil {
		if chat := c.Chat(); chat != nil {
			attrs = append(attrs, slog.Int64("chat_id", chat.ID))
		}
		attrs = append(attrs, slog.Int("update_id", c.Update().ID))
	}
	logger.Error(ctx, logger.CompTG, "handler.error", attrs...)
}
