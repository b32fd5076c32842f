package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/m3rciful/financebot/core/logger"
)

// HandlerFunc handles one event and returns the reply text.
type HandlerFunc func(ctx context.Context, ev Event) (string, error)

// Command is a registered bot command with its handler and metadata.
type Command struct {
	// Name is the slash-less command name, e.g. "start".
	Name        string
	Description string
	Handler     HandlerFunc
	AdminOnly   bool
	Hidden      bool
	// Aliases are plain-text phrases that trigger the command, e.g. menu button labels.
	Aliases []string
}

// Registry holds the static command table.
type Registry struct {
	commands     map[string]Command
	aliases      map[string]string
	textFallback HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
		aliases:  make(map[string]string),
	}
}

// Register adds every command and reports all failures joined. Names are
// case-insensitive and may be given with a leading slash.
func (r *Registry) Register(cmds ...Command) error {
	var errs []error
	for _, cmd := range cmds {
		errs = append(errs, r.register(cmd))
	}
	return errors.Join(errs...)
}

func (r *Registry) register(cmd Command) error {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cmd.Name), "/"))
	if name == "" || cmd.Handler == nil || cmd.Description == "" {
		logger.Dispatch.Warn("register.command.skip",
			slog.String("command", cmd.Name),
			slog.String("cause", "invalid"),
		)
		return fmt.Errorf("dispatch: invalid command %q", cmd.Name)
	}
	if _, exists := r.commands[name]; exists {
		logger.Dispatch.Warn("register.command.duplicate", slog.String("command", name))
		return fmt.Errorf("dispatch: command already registered: %s", name)
	}
	for _, alias := range cmd.Aliases {
		key := aliasKey(alias)
		if key == "" {
			continue
		}
		if owner, taken := r.aliases[key]; taken {
			return fmt.Errorf("dispatch: alias %q already used by %s", alias, owner)
		}
		r.aliases[key] = name
	}
	cmd.Name = name
	r.commands[name] = cmd
	return nil
}

func aliasKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Lookup resolves an event to a command by slash name or by exact alias text.
func (r *Registry) Lookup(ev Event) (Command, bool) {
	if ev.Kind == CommandEvent {
		cmd, ok := r.commands[ev.Command.Name]
		if ok {
			return cmd, true
		}
		if name, ok := r.aliases[ev.Command.Name]; ok {
			return r.commands[name], true
		}
		return Command{}, false
	}
	if name, ok := r.aliases[aliasKey(ev.Text)]; ok {
		return r.commands[name], true
	}
	return Command{}, false
}

// List returns commands sorted by name, optionally without hidden and admin-only ones.
func (r *Registry) List(visibleOnly bool) []Command {
	list := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		if visibleOnly && (cmd.Hidden || cmd.AdminOnly) {
			continue
		}
		list = append(list, cmd)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// SetTextFallback sets the handler for text that matches no command.
func (r *Registry) SetTextFallback(h HandlerFunc) {
	r.textFallback = h
}

// TextFallback returns the current text fallback handler.
func (r *Registry) TextFallback() HandlerFunc {
	return r.textFallback
}
