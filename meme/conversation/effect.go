package conversation

import (
	"github.com/m3rciful/memebot/core/telegram/callbacks"
	"github.com/m3rciful/memebot/meme/provider"
)

// Step is the outcome of a transition. A nil Next keeps the stored state.
type Step struct {
	Next    State
	Effects []Effect
}

// Effect is work the engine performs on behalf of a transition. Provider
// effects carry a continuation that turns the result into the next Step.
type Effect interface {
	isEffect()
}

// Button is an inline button with a localizable label.
type Button struct {
	Label   MessageKey
	Command callbacks.Command
}

// Keyboard is rows of inline buttons.
type Keyboard [][]Button

// SendText sends a localized message.
type SendText struct {
	Text     MessageKey
	Keyboard Keyboard
	// ReplyTo quotes an earlier message when non-zero.
	ReplyTo int
}

// SendPhoto sends an image by URL or local path.
type SendPhoto struct {
	URL      string
	Path     string
	Keyboard Keyboard
}

// ShowTemplates sends one photo per template, each with a Select button.
// Then receives the templates that were delivered.
type ShowTemplates struct {
	Templates []provider.Template
	Then      func([]TemplateMessage) Step
}

// SearchMemes queries existing memes for Term.
type SearchMemes struct {
	Term string
	Then func(urls []string, err error) Step
}

// SearchRandomTemplates queries templates for a random dictionary word.
type SearchRandomTemplates struct {
	Then func(templates []provider.Template, err error) Step
}

// CaptionTemplate asks the caption provider to render a template.
type CaptionTemplate struct {
	TemplateID string
	Top        string
	Bottom     string
	Then       func(url string, err error) Step
}

// GenerateImage asks the AI provider for an image.
type GenerateImage struct {
	Prompt string
	Then   func(url string, err error) Step
}

// ImageSource locates the base image of a local render. Exactly one field is set.
type ImageSource struct {
	FileID string
	URL    string
}

// RenderMeme downloads the source image, burns the captions in and stages
// the result. Then receives the path of the finished file.
type RenderMeme struct {
	Source ImageSource
	Top    string
	Bottom string
	Then   func(path string, err error) Step
}

func (SendText) isEffect()              {}
func (SendPhoto) isEffect()             {}
func (ShowTemplates) isEffect()         {}
func (SearchMemes) isEffect()           {}
func (SearchRandomTemplates) isEffect() {}
func (CaptionTemplate) isEffect()       {}
func (GenerateImage) isEffect()         {}
func (RenderMeme) isEffect()            {}
