// Package app assembles the meme bot from configuration: session store,
// providers, renderer, conversation engine, Telegram handlers and the
// inbound HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/m3rciful/memebot/core/bootstrap"
	"github.com/m3rciful/memebot/core/config"
	"github.com/m3rciful/memebot/core/httpclient"
	"github.com/m3rciful/memebot/core/logger"
	"github.com/m3rciful/memebot/core/metrics"
	tg "github.com/m3rciful/memebot/core/telegram"
	"github.com/m3rciful/memebot/core/telegram/router"
	"github.com/m3rciful/memebot/meme/bot"
	"github.com/m3rciful/memebot/meme/conversation"
	"github.com/m3rciful/memebot/meme/provider"
	"github.com/m3rciful/memebot/meme/render"
	"github.com/m3rciful/memebot/meme/staging"

	tele "gopkg.in/telebot.v4"
)

const readyPollInterval = 2 * time.Second

// Options override parts of the wiring. Zero values build everything from config.
type Options struct {
	Bootstrap    bootstrap.Options
	TelegramHTTP *http.Client
	ProviderHTTP *http.Client
}

// App owns every long-lived component of a running bot.
type App struct {
	cfg      *config.Config
	session  *bootstrap.Result
	metrics  *metrics.Metrics
	bot      *tele.Bot
	registry *tg.Registry
	engine   *conversation.Engine
	sweeper  *staging.Sweeper
	http     *tg.HTTPHandler
}

// New opens the session backend and builds the bot. Close releases the store.
func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	bootOpts := opts.Bootstrap
	bootOpts.Config = cfg
	res, err := bootstrap.Run(ctx, bootOpts)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, session: res, metrics: metrics.New()}
	if err := a.build(opts); err != nil {
		_ = res.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(opts Options) error {
	cfg := a.cfg

	tgClient := opts.TelegramHTTP
	if tgClient == nil {
		tgClient = httpclient.Build(httpclient.Telegram())
	}
	b, err := tg.NewBot(cfg.Bot, tgClient)
	if err != nil {
		return err
	}
	a.bot = b

	provClient := opts.ProviderHTTP
	if provClient == nil {
		provClient = httpclient.Build(httpclient.Options{Timeout: cfg.Providers.Timeout})
	}
	renderer, err := render.New(cfg.Render)
	if err != nil {
		return fmt.Errorf("app: renderer: %w", err)
	}

	a.sweeper = staging.New(cfg.Staging, a.metrics)
	if err := a.sweeper.Prepare(); err != nil {
		return fmt.Errorf("app: staging dir: %w", err)
	}

	msgs := conversation.NewMessages(cfg.Messages)
	a.engine, err = conversation.NewEngine(conversation.Deps{
		Store:      a.session.Store,
		Locker:     a.session.Locker,
		Messenger:  bot.NewMessenger(b),
		Memes:      provider.NewImgflip(cfg.Providers.Imgflip, provClient),
		Images:     provider.NewOpenAI(cfg.Providers.OpenAI, provClient),
		Words:      provider.NewWords(),
		Fetcher:    provider.NewFetcher(provClient),
		Renderer:   renderer,
		Messages:   &msgs,
		Observer:   a.metrics,
		StagingDir: cfg.Staging.Dir,
	})
	if err != nil {
		return err
	}

	a.registry = tg.NewRegistry()
	if err := bot.NewHandlers(a.engine).Register(a.registry); err != nil {
		return fmt.Errorf("app: register handlers: %w", err)
	}

	httpOpts := tg.HTTPOptions{
		Token:       cfg.Bot.Token,
		SecretToken: cfg.Bot.Webhook.SecretToken,
		Ready:       a.engine.Ready,
	}
	if cfg.Metrics.Enabled {
		httpOpts.Metrics = a.metrics
		httpOpts.MetricsPath = cfg.Metrics.Path
	}
	if cfg.Bot.RunMode == config.RunModeWebhook {
		httpOpts.Process = b.ProcessUpdate
	}
	a.http = tg.NewHTTPHandler(httpOpts)
	return nil
}

// Bot returns the Telegram client.
func (a *App) Bot() *tele.Bot { return a.bot }

// Engine returns the conversation engine.
func (a *App) Engine() *conversation.Engine { return a.engine }

// Metrics returns the process metrics.
func (a *App) Metrics() *metrics.Metrics { return a.metrics }

// TelegramRunOptions describes handlers, middlewares and lifecycle hooks for
// tg.RunTelegram. OnStart marks the engine ready once the store answers and
// starts the staging sweeper.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{AdminID: a.cfg.Bot.AdminID})
	routes = append(routes, router.CallbackRoute(a.registry))
	routes = append(routes, router.MessageRoutes(a.registry)...)

	return tg.RunOptions{
		Config:      a.cfg,
		Bot:         a.bot,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(a.cfg, a.metrics, nil),
		Routes:      routes,
		HTTP:        a.http,
		OnStart: func(ctx context.Context, _ tg.Runtime) error {
			go a.sweeper.Run(ctx)
			go a.awaitStore(ctx)
			return nil
		},
	}, nil
}

func (a *App) awaitStore(ctx context.Context) {
	if err := bootstrap.WaitReady(ctx, a.session.Store, readyPollInterval); err != nil {
		return
	}
	a.engine.MarkReady()
	logger.Info(ctx, logger.CompStore, "session.ready",
		slog.String("backend", a.cfg.Session.Backend),
	)
}

// Close releases the session store.
func (a *App) Close() error {
	return a.session.Close()
}
