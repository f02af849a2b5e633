package vault

import (
	"fmt"
	"strings"
)

// Command is the closed set of administrative operations.
type Command int

const (
	CommandReset Command = iota + 1
	CommandRevoke
	CommandInspect
	CommandProvision
)

var commandNames = map[Command]string{
	CommandReset:     "reset",
	CommandRevoke:    "revoke",
	CommandInspect:   "inspect",
	CommandProvision: "provision",
}

// ParseCommand resolves an admin command name.
func ParseCommand(name string) (Command, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	for cmd, cmdName := range commandNames {
		if cmdName == normalized {
			return cmd, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedCommand, name)
}

// Commands lists the command names in declaration order.
func Commands() []string {
	return []string{"reset", "revoke", "inspect", "provision"}
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(c))
}

func (c Command) MarshalText() ([]byte, error) {
	if _, ok := commandNames[c]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCommand, int(c))
	}
	return []byte(c.String()), nil
}

func (c *Command) UnmarshalText(text []byte) error {
	cmd, err := ParseCommand(string(text))
	if err != nil {
		return err
	}
	*c = cmd
	return nil
}

// PushPolicy controls whether pushes consume budget.
type PushPolicy string

const (
	PushUnmetered PushPolicy = "unmetered"
	PushMetered   PushPolicy = "metered"
)

// ParsePushPolicy resolves a policy name. Empty means unmetered.
func ParsePushPolicy(name string) (PushPolicy, error) {
	switch PushPolicy(strings.ToLower(strings.TrimSpace(name))) {
	case "", PushUnmetered:
		return PushUnmetered, nil
	case PushMetered:
		return PushMetered, nil
	default:
		return "", fmt.Errorf("invalid push policy %q (valid: unmetered, metered)", name)
	}
}
