// Package bot connects Telegram updates to the conversation engine.
package bot

import (
	"context"
	"encoding/json"
	"fmt"

	tg "github.com/m3rciful/memebot/core/telegram"
	"github.com/m3rciful/memebot/core/telegram/callbacks"
	"github.com/m3rciful/memebot/core/telegram/commands"
	"github.com/m3rciful/memebot/core/telegram/helpers"
	"github.com/m3rciful/memebot/meme/conversation"

	tele "gopkg.in/telebot.v4"
)

// Engine is the conversation engine as seen from the transport.
type Engine interface {
	Handle(ctx context.Context, in conversation.Inbound) error
	Snapshot(ctx context.Context, chatID int64) (conversation.Record, error)
}

// Handlers turns updates into engine events.
type Handlers struct {
	engine Engine
}

// NewHandlers returns handlers bound to engine.
func NewHandlers(engine Engine) *Handlers {
	return &Handlers{engine: engine}
}

// Register adds the bot's commands, button actions and message handlers.
func (h *Handlers) Register(reg *tg.Registry) error {
	reg.RegisterCommand("/start", commands.Command{Handler: h.Start, Description: "Start creating memes"})
	reg.RegisterCommand("/search", commands.Command{Handler: h.Search, Description: "Search memes: /search <term>"})
	reg.RegisterCommand("/reset", commands.Command{Handler: h.Reset, Description: "Reset the conversation"})
	reg.RegisterCommand("/debug", commands.Command{Handler: h.Debug, Description: "Show this chat's session", AdminOnly: true, Hidden: true})

	for _, action := range []callbacks.Action{
		callbacks.ActionAIType,
		callbacks.ActionCustomType,
		callbacks.ActionTemplate,
		callbacks.ActionSearchType,
		callbacks.ActionTemplateYes,
		callbacks.ActionReturn,
	} {
		if err := reg.RegisterCallback(action, h.Button); err != nil {
			return err
		}
	}
	reg.SetTextFallback(h.Text)
	reg.SetPhotoHandler(h.Photo)
	return nil
}

// Start handles /start.
func (h *Handlers) Start(c tele.Context) error {
	return h.dispatch(c, conversation.StartEvent{})
}

// Search handles /search <term>.
func (h *Handlers) Search(c tele.Context) error {
	term := ""
	if msg := c.Message(); msg != nil {
		term = msg.Payload
	}
	return h.dispatch(c, conversation.SearchEvent{Term: term})
}

// Reset handles /reset.
func (h *Handlers) Reset(c tele.Context) error {
	return h.dispatch(c, conversation.ResetEvent{})
}

// Button handles every inline button press.
func (h *Handlers) Button(c tele.Context) error {
	return h.dispatch(c, conversation.ButtonEvent{Command: callbacks.FromCallback(c.Callback())})
}

// Text handles free text.
func (h *Handlers) Text(c tele.Context) error {
	return h.dispatch(c, conversation.TextEvent{Text: c.Text()})
}

// Photo handles an uploaded photo; telebot exposes its largest size.
func (h *Handlers) Photo(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return nil
	}
	return h.dispatch(c, conversation.PhotoEvent{FileID: msg.Photo.FileID})
}

// Debug replies with the chat's persisted session record.
func (h *Handlers) Debug(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	rec, err := h.engine.Snapshot(helpers.BuildContext(c), chat.ID)
	if err != nil {
		return fmt.Errorf("debug snapshot: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return helpers.SendText(c, string(data), nil)
}

func (h *Handlers) dispatch(c tele.Context, ev conversation.Event) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	in := conversation.Inbound{ChatID: chat.ID, Event: ev}
	if user := c.Sender(); user != nil {
		in.FirstName = user.FirstName
	}
	return h.engine.Handle(helpers.BuildContext(c), in)
}
