// Package commands describes slash commands served by the bot.
package commands

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command represents a bot command with its handler, description, and metadata.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands run only for the configured admin user or chat.
	AdminOnly bool
	// Hidden commands are left out of the Telegram command menu.
	Hidden  bool
	Aliases []string
}

// Validate reports why the command cannot be registered.
func (c Command) Validate() error {
	if c.Handler == nil {
		return errors.New("nil handler")
	}
	if strings.TrimSpace(c.Description) == "" {
		return errors.New("empty description")
	}
	for _, a := range c.Aliases {
		if strings.TrimSpace(strings.TrimPrefix(a, "/")) == "" {
			return errors.New("empty alias")
		}
	}
	return nil
}

// Visible reports whether the command belongs in the public command menu.
func (c Command) Visible() bool {
	return !c.Hidden && !c.AdminOnly
}

// Matches reports whether name is one of the command aliases, with or without the slash.
func (c Command) Matches(name string) bool {
	name = strings.TrimPrefix(name, "/")
	for _, a := range c.Aliases {
		if strings.TrimPrefix(a, "/") == name {
			return true
		}
	}
	return false
}
