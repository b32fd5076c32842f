package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/financebot/core/domain"
	"github.com/m3rciful/financebot/core/logger"
)

// FSM is the dialogue side of routing.
type FSM interface {
	InProgress(userID int64) bool
	Advance(ctx context.Context, id domain.Identity, text string) (string, error)
}

// Options configures the Dispatcher.
type Options struct {
	// AdminID may run AdminOnly commands; for everyone else they do not exist.
	AdminID int64
	// UnknownText is replied when nothing matches. Empty means no reply.
	UnknownText string
	// FailureText is replied when a handler fails without reply text.
	FailureText string
}

// Dispatcher applies session-first routing: while an identity has an active
// dialogue every event goes to the dialogue, even text that looks like a command.
type Dispatcher struct {
	reg  *Registry
	fsm  FSM
	opts Options
}

// New builds a Dispatcher. fsm may be nil when no dialogue is wired.
func New(reg *Registry, fsm FSM, opts Options) *Dispatcher {
	if reg == nil {
		reg = NewRegistry()
	}
	if opts.FailureText == "" {
		opts.FailureText = "Something went wrong, please try again later."
	}
	return &Dispatcher{reg: reg, fsm: fsm, opts: opts}
}

// Registry returns the command table.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// Handle routes ev and returns the reply text.
func (d *Dispatcher) Handle(ctx context.Context, ev Event) (string, error) {
	start := time.Now()
	ctx = logger.WithUserID(ctx, ev.Identity.ID)

	if d.fsm != nil && d.fsm.InProgress(ev.Identity.ID) {
		return d.run(ctx, "dialogue", start, func(ctx context.Context) (string, error) {
			return d.fsm.Advance(ctx, ev.Identity, ev.Text)
		})
	}

	if cmd, ok := d.reg.Lookup(ev); ok && d.allowed(cmd, ev.Identity) {
		return d.run(ctx, cmd.Name, start, func(ctx context.Context) (string, error) {
			return cmd.Handler(ctx, ev)
		})
	}

	if ev.Kind == PlainText {
		if fb := d.reg.TextFallback(); fb != nil {
			return d.run(ctx, "fallback", start, func(ctx context.Context) (string, error) {
				return fb(ctx, ev)
			})
		}
	}

	logSummary(ctx, "unknown", start, "skip", nil)
	return d.opts.UnknownText, nil
}

func (d *Dispatcher) allowed(cmd Command, id domain.Identity) bool {
	return !cmd.AdminOnly || (d.opts.AdminID != 0 && id.ID == d.opts.AdminID)
}

func (d *Dispatcher) run(ctx context.Context, name string, start time.Time, fn func(context.Context) (string, error)) (reply string, err error) {
	ctx = logger.WithHandler(ctx, name)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: panic in %s: %v", name, r)
			reply = ""
		}
		if err != nil && reply == "" {
			reply = d.opts.FailureText
		}
		logSummary(ctx, name, start, "", err)
	}()
	return fn(ctx)
}

func logSummary(ctx context.Context, handler string, start time.Time, statusOverride string, err error) {
	status := statusOverride
	if status == "" {
		status = logger.Status(err)
	}
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("route", handler),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("outcome", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	logger.LogEvent(ctx, logger.Dispatch, level, "handler.handled", attrs...)
}

// deriveErrorCode names err for logs: an explicit Code(), a context error,
// or the dynamic type name.
func deriveErrorCode(err error) string {
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	case errors.Is(err, context.Canceled):
		return "CANCELLED"
	}
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}
