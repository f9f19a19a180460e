package tui

import (
	"fmt"
	"strings"

	"github.com/matheus3301/chatsync/internal/chat"
)

// Command is a parsed ':' command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string without the leading ':'.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// Target returns the conversation a command asks to open: ":open <id>" or
// ":to <member>".
func (c Command) Target() (chat.ResolveInput, error) {
	if c.Args == "" {
		return chat.ResolveInput{}, fmt.Errorf("%s needs an argument", c.Name)
	}
	switch c.Name {
	case "open", "o":
		return chat.ResolveInput{ConversationID: c.Args}, nil
	case "to", "dm":
		return chat.ResolveInput{RecipientID: c.Args}, nil
	}
	return chat.ResolveInput{}, fmt.Errorf("unknown command %q", c.Name)
}
