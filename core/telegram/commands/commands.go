// Package commands describes slash commands registered with the bot.
package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command binds a slash command to its handler. Hidden and AdminOnly
// commands are left out of the list published with setMyCommands;
// AdminOnly ones are also wrapped by the access middleware.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
}
