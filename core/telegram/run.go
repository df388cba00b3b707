package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/memebot/core/config"
	"github.com/m3rciful/memebot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *config.Config
	Bot      *tele.Bot
	Registry *Registry

	Middlewares []Middleware
	Routes      []Route

	// HTTP is served on http.port in both run modes. A handler with a
	// Drain method is drained after the server stops.
	HTTP http.Handler

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot      *tele.Bot
	Registry *Registry
}

// WebhookURL is the public endpoint Telegram posts updates to.
func WebhookURL(cfg config.BotConfig) string {
	return strings.TrimRight(cfg.Webhook.PublicURL, "/") + "/bot/" + cfg.Token
}

// RunTelegram wires handlers, starts the HTTP server and receives updates
// until ctx is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}
	if opts.Bot == nil {
		return fmt.Errorf("telegram: nil bot provided")
	}
	cfg := opts.Config
	bot := opts.Bot
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	rt := Runtime{Bot: bot, Registry: reg}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}
	InitBotCommands(bot, reg)

	var srv *http.Server
	srvErr := make(chan error, 1)
	if opts.HTTP != nil {
		srv = &http.Server{
			Addr:         net.JoinHostPort("", strconv.Itoa(cfg.HTTP.Port)),
			Handler:      opts.HTTP,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
			IdleTimeout:  cfg.HTTP.IdleTimeout,
		}
		go func() {
			logger.Info(ctx, logger.CompHTTP, "http.listen", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				srvErr <- err
			}
		}()
	}

	webhook := cfg.Bot.RunMode == config.RunModeWebhook
	pollDone := make(chan struct{})
	if webhook {
		hook := &tele.Webhook{
			Endpoint:    &tele.WebhookEndpoint{PublicURL: WebhookURL(cfg.Bot)},
			SecretToken: cfg.Bot.Webhook.SecretToken,
			DropUpdates: cfg.Bot.Webhook.DropPending,
		}
		if err := bot.SetWebhook(hook); err != nil {
			shutdown(srv, cfg.HTTP.ShutdownTimeout)
			return fmt.Errorf("telegram: set webhook: %w", err)
		}
		logger.Info(ctx, logger.CompTG, "mode",
			slog.String("mode", config.RunModeWebhook),
			slog.String("public_url", cfg.Bot.Webhook.PublicURL),
		)
		close(pollDone)
	} else {
		if err := bot.RemoveWebhook(cfg.Bot.Webhook.DropPending); err != nil {
			logger.Warn(ctx, logger.CompTG, "delete_webhook", slog.Any("err", err))
		}
		logger.Info(ctx, logger.CompTG, "mode",
			slog.String("mode", config.RunModeLongpoll),
			slog.Duration("timeout", cfg.Bot.LongPoll.Timeout),
		)
		go func() {
			bot.Start()
			close(pollDone)
		}()
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			stopBot(bot, webhook, pollDone)
			shutdown(srv, cfg.HTTP.ShutdownTimeout)
			return err
		}
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-srvErr:
		runErr = fmt.Errorf("telegram: http server: %w", err)
	}

	stopBot(bot, webhook, pollDone)
	shutdown(srv, cfg.HTTP.ShutdownTimeout)
	drain(opts.HTTP, cfg.HTTP.ShutdownTimeout)

	if opts.OnStop != nil {
		if err := opts.OnStop(context.WithoutCancel(ctx), rt); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

func stopBot(bot *tele.Bot, webhook bool, done <-chan struct{}) {
	if !webhook {
		bot.Stop()
	}
	<-done
}

func shutdown(srv *http.Server, timeout time.Duration) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn(ctx, logger.CompHTTP, "http.shutdown", slog.Any("err", err))
		_ = srv.Close()
	}
}

type drainer interface {
	Drain(ctx context.Context) error
}

func drain(h http.Handler, timeout time.Duration) {
	d, ok := h.(drainer)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := d.Drain(ctx); err != nil {
		logger.Warn(ctx, logger.CompHTTP, "webhook.drain", slog.Any("err", err))
	}
}
