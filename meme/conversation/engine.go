package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/memebot/core/logger"
	"github.com/m3rciful/memebot/core/telegram/keyboard"
	"github.com/m3rciful/memebot/meme/provider"
	"github.com/m3rciful/memebot/meme/session"
)

const (
	providerImgflip = "imgflip"
	providerOpenAI  = "openai"
	providerFiles   = "files"
)

// Deps wires an Engine. Store, Messenger, Memes, Images, Words, Fetcher and
// Renderer are required.
type Deps struct {
	Store     session.Store
	Locker    session.Locker
	Messenger Messenger
	Memes     MemeProvider
	Images    ImageGenerator
	Words     WordSource
	Fetcher   Fetcher
	Renderer  Renderer
	Messages  *Messages
	Observer  Observer

	StagingDir string

	// NewID names finished files; defaults to random UUIDs.
	NewID func() string
}

// Engine runs one inbound event at a time per call: load the session, apply
// the transition, interpret its effects and persist the result.
type Engine struct {
	store    session.Store
	locker   session.Locker
	msgr     Messenger
	memes    MemeProvider
	images   ImageGenerator
	words    WordSource
	fetcher  Fetcher
	renderer Renderer
	msgs     Messages
	obs      Observer
	staging  string
	newID    func() string

	ready atomic.Bool
}

// NewEngine validates deps. The engine rejects events until MarkReady.
func NewEngine(d Deps) (*Engine, error) {
	switch {
	case d.Store == nil:
		return nil, errors.New("conversation: store is required")
	case d.Messenger == nil:
		return nil, errors.New("conversation: messenger is required")
	case d.Memes == nil, d.Images == nil, d.Words == nil, d.Fetcher == nil:
		return nil, errors.New("conversation: providers are required")
	case d.Renderer == nil:
		return nil, errors.New("conversation: renderer is required")
	}
	e := &Engine{
		store:    d.Store,
		locker:   d.Locker,
		msgr:     d.Messenger,
		memes:    d.Memes,
		images:   d.Images,
		words:    d.Words,
		fetcher:  d.Fetcher,
		renderer: d.Renderer,
		obs:      d.Observer,
		staging:  d.StagingDir,
		newID:    d.NewID,
	}
	if d.Messages != nil {
		e.msgs = *d.Messages
	} else {
		e.msgs = NewMessages(nil)
	}
	if e.locker == nil {
		e.locker = session.NoLock{}
	}
	if e.obs == nil {
		e.obs = nopObserver{}
	}
	if e.staging == "" {
		e.staging = "images"
	}
	if e.newID == nil {
		e.newID = uuid.NewString
	}
	return e, nil
}

// MarkReady lets Handle accept events. Call it once the store answers.
func (e *Engine) MarkReady() { e.ready.Store(true) }

// Ready reports whether events are accepted.
func (e *Engine) Ready() bool { return e.ready.Load() }

// Handle processes one event for one chat. Failures inside the dialogue are
// answered with an apology and persisted as Finished; the returned error only
// reports what the caller can act on: readiness, locking and persistence.
func (e *Engine) Handle(ctx context.Context, in Inbound) error {
	if in.Event == nil {
		return nil
	}
	kind := in.Event.Kind()
	if !e.ready.Load() {
		e.obs.EventHandled(kind, string(KindStoreNotReady))
		return ErrNotReady
	}

	key := ChatKey(in.ChatID)
	unlock, err := e.locker.Lock(ctx, key)
	if err != nil {
		e.obs.EventHandled(kind, "lock_failed")
		return fmt.Errorf("lock session %s: %w", key, err)
	}
	defer unlock()

	start := time.Now()
	cur := e.load(ctx, key)
	next, runErr := e.process(ctx, in, cur)
	result := "ok"
	if runErr != nil {
		result = string(KindOf(runErr))
		logger.Error(ctx, logger.CompEngine, "event.failed",
			slog.String("chat_key", key),
			slog.String("event_kind", kind),
			slog.String("state", string(cur.Name())),
			slog.String("err_code", result),
			slog.Any("err", runErr),
		)
		next = e.apologize(ctx, in)
	}

	nextName := cur.Name()
	if next != nil {
		if err := e.save(ctx, key, next); err != nil {
			e.obs.EventHandled(kind, "store_failed")
			return err
		}
		nextName = next.Name()
		e.obs.Transition(string(cur.Name()), string(nextName))
	}

	logger.Info(ctx, logger.CompEngine, "event.handled",
		slog.String("status", logger.Status(runErr)),
		slog.String("chat_key", key),
		slog.String("event_kind", kind),
		slog.String("state", string(cur.Name())),
		slog.String("next_state", string(nextName)),
		slog.Duration("duration", logger.Took(start)),
	)
	e.obs.EventHandled(kind, result)
	return nil
}

// Snapshot returns the stored record of a chat.
func (e *Engine) Snapshot(ctx context.Context, chatID int64) (Record, error) {
	data, err := e.store.Get(ctx, ChatKey(chatID))
	if errors.Is(err, session.ErrNotFound) {
		return ToRecord(Idle{}), nil
	}
	if err != nil {
		return Record{}, fmt.Errorf("load session: %w", err)
	}
	s, err := Decode(data)
	return ToRecord(s), err
}

func (e *Engine) load(ctx context.Context, key string) State {
	data, err := e.store.Get(ctx, key)
	if errors.Is(err, session.ErrNotFound) {
		return Idle{}
	}
	if err != nil {
		logger.Error(ctx, logger.CompStore, "session.load_failed",
			slog.String("chat_key", key),
			slog.Any("err", err),
		)
		return Idle{}
	}
	s, err := Decode(data)
	if err != nil {
		logger.Warn(ctx, logger.CompStore, "session.malformed",
			slog.String("chat_key", key),
			slog.String("err_code", string(KindMalformedSession)),
			slog.Any("err", err),
		)
	}
	return s
}

func (e *Engine) save(ctx context.Context, key string, s State) error {
	data, err := Encode(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := e.store.Set(ctx, key, data); err != nil {
		return fmt.Errorf("save session %s: %w", key, err)
	}
	return nil
}

func (e *Engine) process(ctx context.Context, in Inbound, cur State) (next State, err error) {
	defer func() {
		if r := recover(); r != nil {
			next = nil
			err = &Error{Kind: KindUnhandled, Op: "panic", Err: fmt.Errorf("%v", r)}
		}
	}()
	return e.run(ctx, in, Transition(cur, in.Event))
}

// apologize answers a failed event. Its own send failure is only logged.
func (e *Engine) apologize(ctx context.Context, in Inbound) State {
	step := Unhandled()
	for _, eff := range step.Effects {
		if send, ok := eff.(SendText); ok {
			if _, err := e.sendText(ctx, in, send); err != nil {
				logger.Warn(ctx, logger.CompEngine, "recovery.send_failed", slog.Any("err", err))
			}
		}
	}
	return step.Next
}

// run interprets step. Continuation steps run before the remaining effects
// of their parent; the last non-nil Next wins.
func (e *Engine) run(ctx context.Context, in Inbound, step Step) (State, error) {
	next := step.Next
	for _, eff := range step.Effects {
		sub, err := e.apply(ctx, in, eff)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			continue
		}
		n, err := e.run(ctx, in, *sub)
		if err != nil {
			return nil, err
		}
		if n != nil {
			next = n
		}
	}
	return next, nil
}

func (e *Engine) apply(ctx context.Context, in Inbound, eff Effect) (*Step, error) {
	switch eff := eff.(type) {
	case SendText:
		_, err := e.sendText(ctx, in, eff)
		return nil, err
	case SendPhoto:
		_, err := e.sendPhoto(ctx, in, Photo{URL: eff.URL, Path: eff.Path}, eff.Keyboard)
		return nil, err
	case ShowTemplates:
		shown := e.showTemplates(ctx, in, eff.Templates)
		if eff.Then == nil {
			return nil, nil
		}
		return then(eff.Then(shown)), nil
	case SearchMemes:
		var urls []string
		err := e.call(ctx, providerImgflip, "search_memes", func() (err error) {
			urls, err = e.memes.SearchMemes(ctx, eff.Term)
			return err
		})
		if eff.Then == nil {
			return nil, nil
		}
		return then(eff.Then(urls, err)), nil
	case SearchRandomTemplates:
		word := e.words.Random()
		logger.Debug(ctx, logger.CompEngine, "template.seed", slog.String("term", word))
		var templates []provider.Template
		err := e.call(ctx, providerImgflip, "search_templates", func() (err error) {
			templates, err = e.memes.SearchTemplates(ctx, word)
			return err
		})
		if eff.Then == nil {
			return nil, nil
		}
		return then(eff.Then(templates, err)), nil
	case CaptionTemplate:
		var url string
		err := e.call(ctx, providerImgflip, "caption", func() (err error) {
			url, err = e.memes.Caption(ctx, eff.TemplateID, eff.Top, eff.Bottom)
			return err
		})
		if eff.Then == nil {
			return nil, nil
		}
		return then(eff.Then(url, err)), nil
	case GenerateImage:
		var url string
		err := e.call(ctx, providerOpenAI, "generate", func() (err error) {
			url, err = e.images.Generate(ctx, eff.Prompt)
			return err
		})
		if eff.Then == nil {
			return nil, nil
		}
		return then(eff.Then(url, err)), nil
	case RenderMeme:
		path, err := e.renderMeme(ctx, in, eff)
		if err != nil {
			logger.Warn(ctx, logger.CompRender, "render.failed",
				slog.String("err_code", string(KindOf(err))),
				slog.Any("err", err),
			)
		}
		if eff.Then == nil {
			return nil, nil
		}
		return then(eff.Then(path, err)), nil
	}
	return nil, &Error{Kind: KindUnhandled, Op: "apply", Err: fmt.Errorf("unknown effect %T", eff)}
}

func then(s Step) *Step { return &s }

// call times a provider request and logs its outcome.
func (e *Engine) call(ctx context.Context, name, op string, fn func() error) error {
	start := time.Now()
	err := fn()
	took := time.Since(start)
	e.obs.ProviderCall(name, op, took, err)

	attrs := []slog.Attr{
		slog.String("provider", name),
		slog.String("op", op),
		slog.Duration("duration", logger.RoundMS(took)),
	}
	switch {
	case err == nil:
		logger.Debug(ctx, logger.CompProvider, "provider.call", append(attrs, slog.String("outcome", "ok"))...)
	case errors.Is(err, provider.ErrNoResults):
		logger.Info(ctx, logger.CompProvider, "provider.call", append(attrs, slog.String("outcome", "not_found"))...)
	case errors.Is(err, provider.ErrContentRejected):
		logger.Info(ctx, logger.CompProvider, "provider.call", append(attrs, slog.String("outcome", "rejected"))...)
	default:
		logger.Warn(ctx, logger.CompProvider, "provider.call",
			append(attrs,
				slog.String("outcome", "fail"),
				slog.String("err_code", string(KindOf(err))),
				slog.Any("err", err),
			)...,
		)
	}
	return err
}

func (e *Engine) sendText(ctx context.Context, in Inbound, eff SendText) (int, error) {
	text := e.msgs.Text(eff.Text, in.FirstName)
	id, err := e.msgr.SendText(ctx, in.ChatID, text, SendOptions{
		Keyboard: e.rows(eff.Keyboard, in.FirstName),
		ReplyTo:  eff.ReplyTo,
	})
	if err != nil {
		return 0, &Error{Kind: KindUnhandled, Op: "send_text", Err: err}
	}
	e.obs.MessageSent("text")
	return id, nil
}

func (e *Engine) sendPhoto(ctx context.Context, in Inbound, photo Photo, kb Keyboard) (int, error) {
	id, err := e.msgr.SendPhoto(ctx, in.ChatID, photo, SendOptions{Keyboard: e.rows(kb, in.FirstName)})
	if err != nil {
		return 0, &Error{Kind: KindUnhandled, Op: "send_photo", Err: err}
	}
	e.obs.MessageSent("photo")
	return id, nil
}

// showTemplates sends each template with its Select button. Templates that
// fail to send are skipped so the rest stay selectable.
func (e *Engine) showTemplates(ctx context.Context, in Inbound, templates []provider.Template) []TemplateMessage {
	shown := make([]TemplateMessage, 0, len(templates))
	for _, t := range templates {
		if t.ID == "" || t.ImageURL == "" {
			continue
		}
		id, err := e.sendPhoto(ctx, in, Photo{URL: t.ImageURL}, selectKeyboard(t.ID))
		if err != nil {
			logger.Warn(ctx, logger.CompEngine, "template.send_failed",
				slog.String("template_id", t.ID),
				slog.Any("err", err),
			)
			continue
		}
		shown = append(shown, TemplateMessage{TemplateID: t.ID, MessageID: id})
	}
	return shown
}

func (e *Engine) rows(kb Keyboard, firstName string) keyboard.Rows {
	if len(kb) == 0 {
		return nil
	}
	rows := make(keyboard.Rows, 0, len(kb))
	for _, row := range kb {
		out := make([]keyboard.InlineBtn, 0, len(row))
		for _, b := range row {
			out = append(out, keyboard.InlineBtn{
				Text: e.msgs.Text(b.Label, firstName),
				Data: b.Command.Encode(),
			})
		}
		rows = append(rows, out)
	}
	return rows
}

// renderMeme stages the source image, captions it in place and copies the
// result to a unique file for sending.
func (e *Engine) renderMeme(ctx context.Context, in Inbound, eff RenderMeme) (string, error) {
	var src string
	switch {
	case eff.Source.FileID != "":
		src = filepath.Join(e.staging, stagingName(eff.Source.FileID)+".jpg")
		err := e.call(ctx, providerFiles, "download_file", func() error {
			return e.msgr.DownloadFile(ctx, eff.Source.FileID, src)
		})
		if err != nil {
			return "", &Error{Kind: KindProviderUnavailable, Op: "download_file", Err: err}
		}
	case eff.Source.URL != "":
		src = filepath.Join(e.staging, stagingName(ChatKey(in.ChatID))+".jpg")
		err := e.call(ctx, providerFiles, "fetch", func() error {
			return e.fetcher.Fetch(ctx, eff.Source.URL, src)
		})
		if err != nil {
			return "", &Error{Kind: KindProviderUnavailable, Op: "fetch", Err: err}
		}
	default:
		return "", &Error{Kind: KindRenderFailure, Op: "render", Err: errors.New("no source image")}
	}

	start := time.Now()
	err := e.renderer.RenderFile(src, src, eff.Top, eff.Bottom)
	e.obs.Rendered(time.Since(start), err)
	if err != nil {
		return "", &Error{Kind: KindRenderFailure, Op: "render", Err: err}
	}

	dst := filepath.Join(e.staging, "meme_"+e.newID()+".jpg")
	if err := copyFile(src, dst); err != nil {
		return "", &Error{Kind: KindRenderFailure, Op: "copy", Err: err}
	}
	logger.Info(ctx, logger.CompRender, "render.done",
		slog.String("path", dst),
		slog.Duration("duration", logger.Took(start)),
	)
	return dst, nil
}

// stagingName keeps only characters safe in a file name.
func stagingName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

func copyFile(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	return provider.WriteFile(dst, f)
}
