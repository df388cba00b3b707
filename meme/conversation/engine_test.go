package conversation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memebot/core/config"
	"github.com/m3rciful/memebot/core/telegram/callbacks"
	"github.com/m3rciful/memebot/meme/provider"
	"github.com/m3rciful/memebot/meme/render"
	"github.com/m3rciful/memebot/meme/session"
)

func msg(key MessageKey) string { return NewMessages(nil).Text(key, "Ada") }

func tap(a callbacks.Action, templateID ...string) ButtonEvent {
	cmd := callbacks.Command{Action: a}
	if len(templateID) > 0 {
		cmd.TemplateID = templateID[0]
	}
	return ButtonEvent{Command: cmd}
}

func TestNewEngine_RequiresDeps(t *testing.T) {
	_, err := NewEngine(Deps{})
	assert.Error(t, err)
}

func TestEngine_RejectsUntilReady(t *testing.T) {
	h := newHarness(t)
	e, err := NewEngine(Deps{
		Store: h.store, Messenger: h.msgr, Memes: h.memes, Images: h.images,
		Words: fixedWord("x"), Fetcher: h.fetcher, Renderer: h.renderer,
	})
	require.NoError(t, err)
	assert.False(t, e.Ready())

	err = e.Handle(context.Background(), Inbound{ChatID: testChat, Event: StartEvent{}})
	require.ErrorIs(t, err, ErrNotReady)
	assert.Equal(t, KindStoreNotReady, KindOf(err))
	assert.Empty(t, h.msgr.messages())
	assert.Nil(t, h.state(t))

	e.MarkReady()
	require.NoError(t, e.Handle(context.Background(), Inbound{ChatID: testChat, Event: StartEvent{}}))
	assert.Equal(t, Started{}, h.state(t))
}

func TestEngine_Start(t *testing.T) {
	h := newHarness(t)
	h.send(t, StartEvent{})

	assert.Equal(t, []string{msg(MsgWelcome), msg(MsgMenu)}, h.msgr.texts())
	menu := h.msgr.last().Opts.Keyboard
	require.Len(t, menu, 1)
	require.Len(t, menu[0], 4)
	assert.Equal(t, "🖼 AI Image", menu[0][0].Text)
	assert.Equal(t, "AI_TYPE", menu[0][0].Data)
	assert.Equal(t, "SEARCH_TYPE", menu[0][3].Data)
	assert.Equal(t, Started{}, h.state(t))
}

func TestEngine_SearchScenario(t *testing.T) {
	h := newHarness(t)
	h.memes.memes = []string{"http://i.imgflip.com/1.jpg", "https://imgflip.com/s/2.jpg"}

	h.send(t, SearchEvent{Term: "cat"})

	assert.Equal(t, []string{"cat"}, h.memes.terms)
	photos := h.msgr.photos()
	require.Len(t, photos, 2)
	assert.Equal(t, "http://i.imgflip.com/1.jpg", photos[0].Photo.URL)
	last := h.msgr.last()
	assert.Equal(t, msg(MsgReturnPrompt), last.Text)
	assert.Equal(t, "CREATE_TEMPLATE_FINISHED", last.Opts.Keyboard[0][0].Data)
	assert.Equal(t, Finished{}, h.state(t))
}

func TestEngine_SearchWithoutTerm(t *testing.T) {
	h := newHarness(t)
	h.seed(t, AIBottom{ImageURL: "u"})
	h.send(t, SearchEvent{})

	assert.Equal(t, []string{msg(MsgSearchUsage)}, h.msgr.texts())
	assert.Equal(t, Idle{}, h.state(t))
}

func TestEngine_SearchNotFoundAddressesUser(t *testing.T) {
	h := newHarness(t)
	h.memes.memesErr = provider.ErrNoResults
	h.send(t, SearchEvent{Term: "zzz"})

	assert.Equal(t, "Sorry Ada, I couldn't find a meme for you 😢", h.msgr.last().Text)
	assert.Equal(t, Finished{}, h.state(t))
}

func TestEngine_TemplateFlowScenario(t *testing.T) {
	h := newHarness(t)
	h.memes.templates = []provider.Template{
		{ID: "111", ImageURL: "http://i.imgflip.com/a.jpg"},
		{ID: "222", ImageURL: "http://i.imgflip.com/b.jpg"},
	}
	h.memes.captionURL = "https://i.imgflip.com/done.jpg"

	h.send(t, StartEvent{})
	h.send(t, tap(callbacks.ActionTemplate))

	assert.Equal(t, []string{"banana"}, h.memes.terms)
	photos := h.msgr.photos()
	require.Len(t, photos, 2)
	assert.Equal(t, "TEMPLATE_YES ID: 222", photos[1].Opts.Keyboard[0][0].Data)
	assert.Equal(t, "Select", photos[1].Opts.Keyboard[0][0].Text)
	choice, ok := h.state(t).(TemplateChoice)
	require.True(t, ok)
	assert.Equal(t, []TemplateMessage{
		{TemplateID: "111", MessageID: photos[0].ID},
		{TemplateID: "222", MessageID: photos[1].ID},
	}, choice.Candidates)

	h.send(t, tap(callbacks.ActionTemplateYes, "222"))
	msgs := h.msgr.messages()
	chosen := msgs[len(msgs)-2]
	assert.Equal(t, msg(MsgTemplateChosen), chosen.Text)
	assert.Equal(t, photos[1].ID, chosen.Opts.ReplyTo)
	assert.Equal(t, StateTemplateTop, h.state(t).Name())

	h.send(t, TextEvent{Text: "Top Text"})
	assert.Equal(t, TemplateBottom{TemplateID: "222", TopText: "Top Text"}, h.state(t))

	h.send(t, TextEvent{Text: "."})
	assert.Equal(t, []captionCall{{TemplateID: "222", Top: "Top Text", Bottom: ""}}, h.memes.captions)
	assert.Equal(t, "https://i.imgflip.com/done.jpg", h.msgr.photos()[2].Photo.URL)
	assert.Equal(t, Finished{}, h.state(t))

	h.send(t, tap(callbacks.ActionReturn))
	assert.Equal(t, Started{}, h.state(t))
}

func TestEngine_TemplatesNotFoundKeepsState(t *testing.T) {
	h := newHarness(t)
	h.seed(t, Started{})
	h.memes.templatesErr = provider.ErrNoResults

	h.send(t, tap(callbacks.ActionTemplate))
	assert.Equal(t, msg(MsgTemplateNotFound), h.msgr.last().Text)
	assert.Equal(t, Started{}, h.state(t))
}

func TestEngine_TemplatePhotoFailureIsSkipped(t *testing.T) {
	h := newHarness(t)
	h.msgr.failOn = "broken"
	h.memes.templates = []provider.Template{
		{ID: "1", ImageURL: "http://i.imgflip.com/broken.jpg"},
		{ID: "2", ImageURL: "http://i.imgflip.com/ok.jpg"},
	}
	h.send(t, tap(callbacks.ActionTemplate))

	choice := h.state(t).(TemplateChoice)
	require.Len(t, choice.Candidates, 1)
	assert.Equal(t, "2", choice.Candidates[0].TemplateID)
}

func TestEngine_CaptionFailure(t *testing.T) {
	h := newHarness(t)
	h.seed(t, TemplateBottom{TemplateID: "1", TopText: "a"})
	h.memes.captionErr = provider.ErrUnavailable

	h.send(t, TextEvent{Text: "b"})
	last := h.msgr.last()
	assert.Equal(t, msg(MsgGenerateFailed), last.Text)
	assert.Equal(t, "CREATE_TEMPLATE_FINISHED", last.Opts.Keyboard[0][0].Data)
	assert.Equal(t, Finished{}, h.state(t))
}

func TestEngine_CustomImageFlowRendersForReal(t *testing.T) {
	r, err := render.New(config.RenderConfig{StrokeWidth: 5, BottomMargin: 30, JPEGQuality: 90})
	require.NoError(t, err)
	h := newHarness(t, func(d *Deps) { d.Renderer = r })

	h.send(t, tap(callbacks.ActionCustomType))
	assert.Equal(t, CustomUpload{}, h.state(t))

	h.send(t, PhotoEvent{FileID: "AgACAgIAAxk"})
	assert.Equal(t, CustomTop{FileID: "AgACAgIAAxk"}, h.state(t))

	h.send(t, TextEvent{Text: "Top Text"})
	h.send(t, TextEvent{Text: "."})

	assert.Equal(t, Finished{}, h.state(t))
	photos := h.msgr.photos()
	require.Len(t, photos, 1)
	want := filepath.Join(h.staging, "meme_fixed.jpg")
	assert.Equal(t, want, photos[0].Photo.Path)
	assert.FileExists(t, want)
	assert.FileExists(t, filepath.Join(h.staging, "AgACAgIAAxk.jpg"))
	assert.Contains(t, h.msgr.texts(), msg(MsgMemeReady))
}

func TestEngine_AIFlow(t *testing.T) {
	h := newHarness(t)
	h.images.url = "https://oai.example/img.png"

	h.send(t, tap(callbacks.ActionAIType))
	h.send(t, TextEvent{Text: "a cat on the moon"})
	assert.Equal(t, []string{"a cat on the moon"}, h.images.prompts)
	assert.Equal(t, AITop{ImageURL: "https://oai.example/img.png", Prompt: "a cat on the moon"}, h.state(t))
	assert.Equal(t, "https://oai.example/img.png", h.msgr.photos()[0].Photo.URL)

	h.send(t, TextEvent{Text: "when the"})
	h.send(t, TextEvent{Text: "moon"})

	assert.Equal(t, []string{"https://oai.example/img.png"}, h.fetcher.urls)
	assert.Equal(t, filepath.Join(h.staging, "4242.jpg"), h.fetcher.dsts[0])
	calls := h.renderer.(*fakeRenderer).calls
	require.Len(t, calls, 1)
	assert.Equal(t, renderCall{
		Src: filepath.Join(h.staging, "4242.jpg"), Dst: filepath.Join(h.staging, "4242.jpg"),
		Top: "when the", Bottom: "moon",
	}, calls[0])
	assert.Contains(t, h.msgr.texts(), msg(MsgCompositing))
	assert.Equal(t, Finished{}, h.state(t))
}

func TestEngine_AIRejectionScenario(t *testing.T) {
	h := newHarness(t)
	h.seed(t, AIPrompt{})
	h.images.err = provider.ErrContentRejected

	h.send(t, TextEvent{Text: "something rude"})
	last := h.msgr.last()
	assert.Equal(t, msg(MsgModeration), last.Text)
	assert.Equal(t, "CREATE_TEMPLATE_FINISHED", last.Opts.Keyboard[0][0].Data)
	assert.Equal(t, AIPrompt{}, h.state(t))
	assert.Empty(t, h.msgr.photos())

	h.send(t, tap(callbacks.ActionReturn))
	assert.Equal(t, Started{}, h.state(t))
}

func TestEngine_AIUnavailable(t *testing.T) {
	h := newHarness(t)
	h.seed(t, AIPrompt{})
	h.images.err = provider.ErrUnavailable

	h.send(t, TextEvent{Text: "a cat"})
	assert.Equal(t, msg(MsgGenerateFailed), h.msgr.last().Text)
	assert.Equal(t, Finished{}, h.state(t))
}

func TestEngine_RenderFailures(t *testing.T) {
	t.Run("download", func(t *testing.T) {
		h := newHarness(t)
		h.msgr.download = func(string, string) error { return errors.New("file is too big") }
		h.seed(t, CustomBottom{FileID: "f", TopText: "a"})
		h.send(t, TextEvent{Text: "b"})
		assert.Equal(t, msg(MsgGenerateFailed), h.msgr.last().Text)
		assert.Equal(t, Finished{}, h.state(t))
	})
	t.Run("fetch", func(t *testing.T) {
		h := newHarness(t)
		h.fetcher.err = provider.ErrUnavailable
		h.seed(t, AIBottom{ImageURL: "u", TopText: "a"})
		h.send(t, TextEvent{Text: "b"})
		assert.Equal(t, msg(MsgGenerateFailed), h.msgr.last().Text)
		assert.Equal(t, Finished{}, h.state(t))
	})
	t.Run("render", func(t *testing.T) {
		h := newHarness(t, func(d *Deps) { d.Renderer = &fakeRenderer{err: errors.New("unsupported format")} })
		h.seed(t, CustomBottom{FileID: "f", TopText: "a"})
		h.send(t, TextEvent{Text: "b"})
		assert.Equal(t, msg(MsgGenerateFailed), h.msgr.last().Text)
		assert.Equal(t, Finished{}, h.state(t))
		_, err := os.Stat(filepath.Join(h.staging, "meme_fixed.jpg"))
		assert.True(t, os.IsNotExist(err))
	})
}

func TestEngine_SendFailureRecovers(t *testing.T) {
	h := newHarness(t)
	h.seed(t, CustomTop{FileID: "f"})
	h.msgr.failOn = "Footer"

	h.send(t, TextEvent{Text: "top"})
	assert.Equal(t, msg(MsgUnhandled), h.msgr.last().Text)
	assert.Equal(t, Finished{}, h.state(t))
}

func TestEngine_PanicRecovers(t *testing.T) {
	h := newHarness(t)
	h.seed(t, TemplateTop{TemplateID: "1"})
	h.msgr.panicOn = "Footer"

	h.send(t, TextEvent{Text: "top"})
	assert.Equal(t, msg(MsgUnhandled), h.msgr.last().Text)
	assert.Equal(t, Finished{}, h.state(t))
	assert.Equal(t, 1, h.obs.events["text/"+string(KindUnhandled)])
}

func TestEngine_MalformedSessionIsIdle(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Set(context.Background(), ChatKey(testChat), []byte("{not json")))

	h.send(t, TextEvent{Text: "Top Text"})
	assert.Empty(t, h.msgr.messages(), "idle ignores free text")

	h.send(t, StartEvent{})
	assert.Equal(t, Started{}, h.state(t))
}

func TestEngine_StateAlwaysValid(t *testing.T) {
	h := newHarness(t)
	h.memes.memes = []string{"http://x/1.jpg"}
	h.memes.templates = []provider.Template{{ID: "1", ImageURL: "http://x/t.jpg"}}
	h.memes.captionURL = "http://x/c.jpg"
	h.images.url = "http://x/ai.png"

	events := []Event{
		TextEvent{Text: "hello"}, tap(callbacks.ActionTemplate), tap(callbacks.ActionTemplateYes, "1"),
		TextEvent{Text: "a"}, PhotoEvent{FileID: "p"}, TextEvent{Text: "."}, tap(callbacks.ActionReturn),
		tap(callbacks.ActionCustomType), PhotoEvent{FileID: "p"}, TextEvent{Text: "x"}, TextEvent{Text: "y"},
		tap(callbacks.ActionAIType), TextEvent{Text: "p"}, TextEvent{Text: "t"}, TextEvent{Text: "b"},
		SearchEvent{Term: "q"}, ResetEvent{}, tap("GARBAGE"), SearchEvent{},
	}
	valid := make(map[StateName]bool)
	for _, n := range StateNames {
		valid[n] = true
	}
	for _, ev := range events {
		h.send(t, ev)
		if s := h.state(t); s != nil {
			assert.True(t, valid[s.Name()], "%T left %q", ev, s.Name())
		}
	}
}

func TestEngine_DuplicateDeliveryRace(t *testing.T) {
	var store *barrierStore
	h := newHarness(t, func(d *Deps) {
		store = newBarrierStore(d.Store.(*session.MemoryStore), 2)
		d.Store = store
	})
	h.seed(t, CustomTop{FileID: "f"})

	var wg sync.WaitGroup
	for _, text := range []string{"top A", "top B"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			in := Inbound{ChatID: testChat, FirstName: "Ada", Event: TextEvent{Text: text}}
			assert.NoError(t, h.engine.Handle(context.Background(), in))
		}()
	}
	wg.Wait()

	// Both events read CustomTop, so both ask for the footer and the later
	// save wins.
	assert.Equal(t, []string{msg(MsgFooterPrompt), msg(MsgFooterPrompt)}, h.msgr.texts())
	assert.Contains(t, []State{
		CustomBottom{FileID: "f", TopText: "top A"},
		CustomBottom{FileID: "f", TopText: "top B"},
	}, h.state(t))
	assert.Empty(t, h.renderer.(*fakeRenderer).calls)
}

func TestEngine_LockerSerializes(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Locker = session.NewMemoryLocker() })
	h.seed(t, CustomTop{FileID: "f"})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.engine.Handle(context.Background(), Inbound{ChatID: testChat, Event: TextEvent{Text: "top"}}))
		}()
	}
	wg.Wait()

	// The second event sees CustomBottom and runs the render flow instead.
	assert.Equal(t, Finished{}, h.state(t))
	assert.Len(t, h.renderer.(*fakeRenderer).calls, 1)
}

func TestEngine_MessageOverrides(t *testing.T) {
	msgs := NewMessages(map[string]string{
		"reset":   "State cleared, {name}.",
		"unknown": "ignored",
		"welcome": "  ",
	})
	h := newHarness(t, func(d *Deps) { d.Messages = &msgs })
	h.send(t, ResetEvent{})
	assert.Equal(t, "State cleared, Ada.", h.msgr.last().Text)

	h.send(t, StartEvent{})
	assert.Contains(t, h.msgr.texts(), msg(MsgWelcome))
}

func TestEngine_Snapshot(t *testing.T) {
	h := newHarness(t)
	rec, err := h.engine.Snapshot(context.Background(), testChat)
	require.NoError(t, err)
	assert.Equal(t, StateNone, rec.State)

	h.seed(t, CustomBottom{FileID: "f", TopText: "a"})
	rec, err = h.engine.Snapshot(context.Background(), testChat)
	require.NoError(t, err)
	assert.Equal(t, Record{State: StateCustomBottom, Image: "f", TopText: "a"}, rec)
}

func TestEngine_Observer(t *testing.T) {
	h := newHarness(t)
	h.memes.memes = []string{"http://x/1.jpg"}
	h.send(t, SearchEvent{Term: "cat"})

	assert.Equal(t, 1, h.obs.events["search/ok"])
	assert.Equal(t, []string{"NONE>CREATE_TEMPLATE_FINISHED"}, h.obs.transitions)
	assert.Equal(t, []string{"imgflip.search_memes=ok"}, h.obs.providers)
	assert.Equal(t, 3, h.obs.sent["text"])
	assert.Equal(t, 1, h.obs.sent["photo"])
}

func TestStagingName(t *testing.T) {
	assert.Equal(t, "AgAC-x_1", stagingName("AgAC-x_1"))
	assert.Equal(t, "___etc_passwd", stagingName("../etc/passwd"))
	assert.Equal(t, "-100123", stagingName(ChatKey(-100123)))
}
