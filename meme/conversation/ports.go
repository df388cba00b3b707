package conversation

import (
	"context"
	"time"

	"github.com/m3rciful/memebot/core/telegram/keyboard"
	"github.com/m3rciful/memebot/meme/provider"
)

// SendOptions decorate an outbound message.
type SendOptions struct {
	Keyboard keyboard.Rows
	ReplyTo  int
}

// Photo is an outbound image, by URL or local path.
type Photo struct {
	URL  string
	Path string
}

// Messenger delivers messages to a chat and returns their message ids.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error)
	SendPhoto(ctx context.Context, chatID int64, photo Photo, opts SendOptions) (int, error)
	DownloadFile(ctx context.Context, fileID, dst string) error
}

// MemeProvider searches memes and templates and captions templates.
type MemeProvider interface {
	SearchMemes(ctx context.Context, term string) ([]string, error)
	SearchTemplates(ctx context.Context, term string) ([]provider.Template, error)
	Caption(ctx context.Context, templateID, top, bottom string) (string, error)
}

// ImageGenerator produces an image URL from a prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// WordSource yields random search seeds.
type WordSource interface {
	Random() string
}

// Fetcher downloads a URL to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dst string) error
}

// Renderer burns captions into an image file.
type Renderer interface {
	RenderFile(src, dst, top, bottom string) error
}

// Observer receives engine measurements.
type Observer interface {
	EventHandled(kind, result string)
	Transition(from, to string)
	ProviderCall(provider, op string, d time.Duration, err error)
	Rendered(d time.Duration, err error)
	MessageSent(kind string)
}

type nopObserver struct{}

func (nopObserver) EventHandled(string, string)                       {}
func (nopObserver) Transition(string, string)                         {}
func (nopObserver) ProviderCall(string, string, time.Duration, error) {}
func (nopObserver) Rendered(time.Duration, error)                     {}
func (nopObserver) MessageSent(string)                                {}
