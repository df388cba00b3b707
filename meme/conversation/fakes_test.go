package conversation

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fogleman/gg"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/memebot/meme/provider"
	"github.com/m3rciful/memebot/meme/session"
)

type sentMessage struct {
	Kind  string
	Text  string
	Photo Photo
	Opts  SendOptions
	ID    int
}

type fakeMessenger struct {
	mu       sync.Mutex
	nextID   int
	sent     []sentMessage
	failOn   string
	panicOn  string
	download func(fileID, dst string) error
}

func (m *fakeMessenger) SendText(_ context.Context, _ int64, text string, opts SendOptions) (int, error) {
	if m.panicOn != "" && strings.Contains(text, m.panicOn) {
		panic("messenger exploded")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && strings.Contains(text, m.failOn) {
		return 0, errors.New("telegram: bad request")
	}
	m.nextID++
	m.sent = append(m.sent, sentMessage{Kind: "text", Text: text, Opts: opts, ID: m.nextID})
	return m.nextID, nil
}

func (m *fakeMessenger) SendPhoto(_ context.Context, _ int64, photo Photo, opts SendOptions) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != "" && (strings.Contains(photo.URL, m.failOn) || strings.Contains(photo.Path, m.failOn)) {
		return 0, errors.New("telegram: wrong file identifier")
	}
	m.nextID++
	m.sent = append(m.sent, sentMessage{Kind: "photo", Photo: photo, Opts: opts, ID: m.nextID})
	return m.nextID, nil
}

func (m *fakeMessenger) DownloadFile(_ context.Context, fileID, dst string) error {
	if m.download != nil {
		return m.download(fileID, dst)
	}
	return writeJPEG(dst)
}

func (m *fakeMessenger) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

func (m *fakeMessenger) texts() []string {
	var out []string
	for _, s := range m.messages() {
		if s.Kind == "text" {
			out = append(out, s.Text)
		}
	}
	return out
}

func (m *fakeMessenger) photos() []sentMessage {
	var out []sentMessage
	for _, s := range m.messages() {
		if s.Kind == "photo" {
			out = append(out, s)
		}
	}
	return out
}

func (m *fakeMessenger) last() sentMessage {
	msgs := m.messages()
	if len(msgs) == 0 {
		return sentMessage{}
	}
	return msgs[len(msgs)-1]
}

type captionCall struct{ TemplateID, Top, Bottom string }

type fakeMemes struct {
	mu           sync.Mutex
	memes        []string
	memesErr     error
	templates    []provider.Template
	templatesErr error
	captionURL   string
	captionErr   error
	terms        []string
	captions     []captionCall
}

func (f *fakeMemes) SearchMemes(_ context.Context, term string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terms = append(f.terms, term)
	return f.memes, f.memesErr
}

func (f *fakeMemes) SearchTemplates(_ context.Context, term string) ([]provider.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terms = append(f.terms, term)
	return f.templates, f.templatesErr
}

func (f *fakeMemes) Caption(_ context.Context, templateID, top, bottom string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captions = append(f.captions, captionCall{templateID, top, bottom})
	return f.captionURL, f.captionErr
}

type fakeImages struct {
	url     string
	err     error
	prompts []string
}

func (f *fakeImages) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.url, f.err
}

type fixedWord string

func (w fixedWord) Random() string { return string(w) }

type fakeFetcher struct {
	err  error
	urls []string
	dsts []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url, dst string) error {
	f.urls = append(f.urls, url)
	f.dsts = append(f.dsts, dst)
	if f.err != nil {
		return f.err
	}
	return writeJPEG(dst)
}

type renderCall struct{ Src, Dst, Top, Bottom string }

type fakeRenderer struct {
	err   error
	calls []renderCall
}

func (f *fakeRenderer) RenderFile(src, dst, top, bottom string) error {
	f.calls = append(f.calls, renderCall{src, dst, top, bottom})
	return f.err
}

type fakeObserver struct {
	mu          sync.Mutex
	events      map[string]int
	transitions []string
	providers   []string
	sent        map[string]int
}

func newFakeObserver() *fakeObserver {
	return &fakeObserver{events: map[string]int{}, sent: map[string]int{}}
}

func (o *fakeObserver) EventHandled(kind, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events[kind+"/"+result]++
}

func (o *fakeObserver) Transition(from, to string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, from+">"+to)
}

func (o *fakeObserver) ProviderCall(name, op string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.providers = append(o.providers, name+"."+op+"="+outcomeOf(err))
}

func (o *fakeObserver) Rendered(time.Duration, error) {}

func (o *fakeObserver) MessageSent(kind string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent[kind]++
}

func outcomeOf(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func writeJPEG(path string) error {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 40, G: 160, B: 90, A: 255}}, image.Point{}, draw.Src)
	return gg.SaveJPG(path, img, 90)
}

type harness struct {
	engine   *Engine
	store    *session.MemoryStore
	msgr     *fakeMessenger
	memes    *fakeMemes
	images   *fakeImages
	fetcher  *fakeFetcher
	renderer Renderer
	obs      *fakeObserver
	staging  string
}

const testChat int64 = 4242

func newHarness(t *testing.T, opts ...func(*Deps)) *harness {
	t.Helper()
	h := &harness{
		store:    session.NewMemoryStore(),
		msgr:     &fakeMessenger{},
		memes:    &fakeMemes{},
		images:   &fakeImages{},
		fetcher:  &fakeFetcher{},
		renderer: &fakeRenderer{},
		obs:      newFakeObserver(),
		staging:  t.TempDir(),
	}
	deps := Deps{
		Store:      h.store,
		Messenger:  h.msgr,
		Memes:      h.memes,
		Images:     h.images,
		Words:      fixedWord("banana"),
		Fetcher:    h.fetcher,
		Renderer:   h.renderer,
		Observer:   h.obs,
		StagingDir: h.staging,
		NewID:      func() string { return "fixed" },
	}
	for _, o := range opts {
		o(&deps)
	}
	h.renderer = deps.Renderer
	e, err := NewEngine(deps)
	require.NoError(t, err)
	e.MarkReady()
	h.engine = e
	return h
}

func (h *harness) send(t *testing.T, ev Event) {
	t.Helper()
	require.NoError(t, h.engine.Handle(context.Background(), Inbound{ChatID: testChat, FirstName: "Ada", Event: ev}))
}

func (h *harness) seed(t *testing.T, s State) {
	t.Helper()
	data, err := Encode(s)
	require.NoError(t, err)
	require.NoError(t, h.store.Set(context.Background(), ChatKey(testChat), data))
}

func (h *harness) state(t *testing.T) State {
	t.Helper()
	data, err := h.store.Get(context.Background(), ChatKey(testChat))
	if errors.Is(err, session.ErrNotFound) {
		return nil
	}
	require.NoError(t, err)
	s, err := Decode(data)
	require.NoError(t, err)
	return s
}

// barrierStore holds every Get until n readers have loaded, so concurrent
// events all see the record as it was before any of them saved.
type barrierStore struct {
	*session.MemoryStore
	mu      sync.Mutex
	waiting int
	n       int
	release chan struct{}
}

func newBarrierStore(inner *session.MemoryStore, n int) *barrierStore {
	return &barrierStore{MemoryStore: inner, n: n, release: make(chan struct{})}
}

func (s *barrierStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.MemoryStore.Get(ctx, key)
	s.mu.Lock()
	s.waiting++
	if s.waiting == s.n {
		close(s.release)
	}
	s.mu.Unlock()
	select {
	case <-s.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return data, err
}
