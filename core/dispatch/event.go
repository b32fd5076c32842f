// Package dispatch routes inbound events to the active dialogue or to a
// registered command and serializes work per identity.
package dispatch

import (
	"context"
	"strings"

	"github.com/m3rciful/financebot/core/domain"
)

// EventKind distinguishes slash commands from free text.
type EventKind int

const (
	PlainText EventKind = iota
	CommandEvent
)

func (k EventKind) String() string {
	if k == CommandEvent {
		return "command"
	}
	return "text"
}

// Invocation is the decoded form of a slash command.
type Invocation struct {
	Name string
	Args []string
}

// Event is a transport-neutral inbound message.
type Event struct {
	Identity domain.Identity
	Text     string
	Kind     EventKind
	Command  Invocation
}

// ParseEvent decodes text. "/Start@my_bot a b" becomes command "start" with
// args [a b]; anything else is plain text.
func ParseEvent(id domain.Identity, text string) Event {
	ev := Event{Identity: id, Text: text, Kind: PlainText}
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") || len(fields[0]) == 1 {
		return ev
	}
	name := strings.TrimPrefix(fields[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return ev
	}
	ev.Kind = CommandEvent
	ev.Command = Invocation{Name: strings.ToLower(name), Args: fields[1:]}
	return ev
}

// Replier delivers reply text to an identity. Delivery is fire-and-forget
// for the core; retries belong to the transport.
type Replier interface {
	Reply(ctx context.Context, id domain.Identity, text string) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, id domain.Identity, text string) error

func (f ReplierFunc) Reply(ctx context.Context, id domain.Identity, text string) error {
	return f(ctx, id, text)
}
