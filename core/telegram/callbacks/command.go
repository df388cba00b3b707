// Package callbacks decodes inline button data into structured commands.
//
// Button data stays in the plain form the bot has always used, e.g.
// "AI_TYPE" or "TEMPLATE_YES ID: 42", so buttons sent by older deployments
// keep working. Telebot's "\f<unique>|<payload>" encoding is accepted too.
package callbacks

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Action names a button press.
type Action string

const (
	ActionAIType      Action = "AI_TYPE"
	ActionCustomType  Action = "CUSTOM_TYPE"
	ActionTemplate    Action = "TEMPLATE_TYPE"
	ActionSearchType  Action = "SEARCH_TYPE"
	ActionTemplateYes Action = "TEMPLATE_YES"
	ActionReturn      Action = "CREATE_TEMPLATE_FINISHED"
)

const templateIDMarker = "ID:"

// blank is trimmed around callback data. It leaves out '\f', which marks
// telebot's unique form.
const blank = " \t\r\n"

// Command is a decoded button press.
type Command struct {
	Action     Action
	TemplateID string
}

// Encode renders c as callback data.
func (c Command) Encode() string {
	if c.Action == ActionTemplateYes {
		return string(c.Action) + " " + templateIDMarker + " " + c.TemplateID
	}
	return string(c.Action)
}

// Known reports whether the action is one the bot emits.
func (c Command) Known() bool {
	switch c.Action {
	case ActionAIType, ActionCustomType, ActionTemplate, ActionSearchType, ActionReturn:
		return true
	case ActionTemplateYes:
		return c.TemplateID != ""
	}
	return false
}

// Decode parses callback data. Unknown data yields a Command whose Known is false.
func Decode(data string) Command {
	data = strings.Trim(data, blank)
	if strings.HasPrefix(data, "\f") {
		unique, payload := splitUnique(data)
		if payload == "" {
			data = unique
		} else {
			data = unique + " " + payload
		}
	}

	fields := strings.Fields(data)
	if len(fields) == 0 {
		return Command{}
	}
	cmd := Command{Action: Action(fields[0])}
	if cmd.Action != ActionTemplateYes {
		return cmd
	}
	rest := strings.TrimSpace(strings.TrimPrefix(data, fields[0]))
	rest = strings.TrimSpace(strings.TrimPrefix(rest, templateIDMarker))
	if id := strings.Fields(rest); len(id) > 0 {
		cmd.TemplateID = id[0]
	}
	return cmd
}

// FromCallback decodes the data of a callback query.
func FromCallback(cb *tele.Callback) Command {
	if cb == nil {
		return Command{}
	}
	if cb.Unique != "" {
		return Decode("\f" + cb.Unique + "|" + cb.Data)
	}
	return Decode(cb.Data)
}

func splitUnique(raw string) (string, string) {
	raw = strings.TrimPrefix(raw, "\f")
	parts := strings.SplitN(raw, "|", 2)
	unique := strings.TrimSpace(parts[0])
	payload := ""
	if len(parts) == 2 {
		payload = strings.TrimSpace(parts[1])
	}
	return unique, payload
}
