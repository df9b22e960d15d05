// Package commands describes slash commands before they reach the registry.
package commands

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command: its handler, the text shown in the Telegram
// command menu and routing flags. Aliases are extra trigger words such as
// "!menu".
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	AdminOnly   bool
	Hidden      bool
	Aliases     []string
}

var (
	// ErrInvalid reports a command without a handler or description.
	ErrInvalid = errors.New("invalid")
	// ErrNoSlash reports a command name without the leading slash.
	ErrNoSlash = errors.New("no_slash_prefix")
)

// Validate checks that cmd can be registered under name.
func (cmd Command) Validate(name string) error {
	if name == "" || cmd.Handler == nil || strings.TrimSpace(cmd.Description) == "" {
		return ErrInvalid
	}
	if !strings.HasPrefix(name, "/") {
		return ErrNoSlash
	}
	return nil
}

// Visible reports whether cmd belongs in the public command menu.
func (cmd Command) Visible() bool {
	return !cmd.Hidden && !cmd.AdminOnly
}
