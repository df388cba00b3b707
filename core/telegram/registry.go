package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/memebot/core/logger"
	"github.com/m3rciful/memebot/core/telegram/callbacks"
	"github.com/m3rciful/memebot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Registry holds bot commands, callback actions and the fallbacks for
// free text and photos.
type Registry struct {
	commands map[string]commands.Command

	mu               sync.RWMutex
	callbacks        map[callbacks.Action]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
	photoHandler     tele.HandlerFunc
}

// NewRegistry creates an empty Registry. Unknown callbacks are ignored.
func NewRegistry() *Registry {
	return &Registry{
		commands:         make(map[string]commands.Command),
		callbacks:        make(map[callbacks.Action]tele.HandlerFunc),
		callbackNotFound: func(tele.Context) error { return nil },
	}
}

// RegisterCommand adds a command. Invalid and duplicate names are skipped.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	reason := ""
	switch {
	case name == "" || cmd.Handler == nil || cmd.Description == "":
		reason = "invalid"
	case name[0] != '/':
		reason = "no_slash_prefix"
	}
	if _, exists := r.commands[name]; exists && reason == "" {
		reason = "duplicate"
	}
	if reason != "" {
		logger.Warn(context.Background(), logger.CompTG, "register.command.skip",
			slog.String("name", name),
			slog.String("reason", reason),
		)
		return
	}
	r.commands[name] = cmd
}

// ListCommands returns the commands sorted by name, optionally without the
// hidden and admin-only ones.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	list := make([]tele.Command, 0, len(r.commands))
	for name, meta := range r.commands {
		if visibleOnly && (meta.Hidden || meta.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// Commands returns all registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

// RegisterCallback binds a button action to its handler.
func (r *Registry) RegisterCallback(action callbacks.Action, handler tele.HandlerFunc) error {
	if action == "" || handler == nil {
		return fmt.Errorf("invalid callback registration for %q", action)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[action]; exists {
		return fmt.Errorf("callback already registered: %s", action)
	}
	r.callbacks[action] = handler
	return nil
}

// Callback returns the handler bound to action.
func (r *Registry) Callback(action callbacks.Action) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[action]
	return h, ok
}

// ListCallbacks returns sorted actions (for diagnostics).
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}

// SetCallbackNotFound replaces the handler for unknown actions.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h != nil {
		r.callbackNotFound = h
	}
}

// CallbackNotFound returns the handler for unknown actions.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text that is not a command.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) { r.textFallback = h }

// TextFallback returns the handler for text that is not a command.
func (r *Registry) TextFallback() tele.HandlerFunc { return r.textFallback }

// SetPhotoHandler sets the handler for photo messages.
func (r *Registry) SetPhotoHandler(h tele.HandlerFunc) { r.photoHandler = h }

// PhotoHandler returns the handler for photo messages.
func (r *Registry) PhotoHandler() tele.HandlerFunc { return r.photoHandler }

// InitBotCommands publishes the visible commands through setMyCommands.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	list := reg.ListCommands(true)
	if err := bot.SetCommands(list); err != nil {
		logger.Error(context.Background(), logger.CompTG, "register.commands.set_failed",
			slog.Any("err", err),
		)
		return
	}
	logger.Info(context.Background(), logger.CompTG, "register.commands.set",
		slog.Int("commands", len(list)),
	)
}
