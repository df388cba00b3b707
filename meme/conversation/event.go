package conversation

import (
	"strconv"

	"github.com/m3rciful/memebot/core/telegram/callbacks"
)

// Event is one decoded inbound update.
type Event interface {
	Kind() string
	isEvent()
}

type (
	// StartEvent is /start.
	StartEvent struct{}
	// ResetEvent is /reset.
	ResetEvent struct{}
	// SearchEvent is /search with an optional term.
	SearchEvent struct{ Term string }
	// ButtonEvent is an inline button press.
	ButtonEvent struct{ Command callbacks.Command }
	// TextEvent is any other text message.
	TextEvent struct{ Text string }
	// PhotoEvent is an uploaded photo, referenced by its largest size.
	PhotoEvent struct{ FileID string }
)

func (StartEvent) Kind() string  { return "start" }
func (ResetEvent) Kind() string  { return "reset" }
func (SearchEvent) Kind() string { return "search" }
func (ButtonEvent) Kind() string { return "button" }
func (TextEvent) Kind() string   { return "text" }
func (PhotoEvent) Kind() string  { return "photo" }

func (StartEvent) isEvent()  {}
func (ResetEvent) isEvent()  {}
func (SearchEvent) isEvent() {}
func (ButtonEvent) isEvent() {}
func (TextEvent) isEvent()   {}
func (PhotoEvent) isEvent()  {}

// Inbound is an Event addressed to one chat.
type Inbound struct {
	ChatID    int64
	FirstName string
	Event     Event
}

// ChatKey is the session key of a chat.
func ChatKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}
