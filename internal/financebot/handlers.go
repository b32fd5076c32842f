package financebot

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"

	"github.com/m3rciful/financebot/core/dialogue"
	"github.com/m3rciful/financebot/core/dispatch"
	"github.com/m3rciful/financebot/core/logger"
	"github.com/m3rciful/financebot/core/provider"
	"github.com/m3rciful/financebot/core/store"
)

// Handlers implements the bot commands.
type Handlers struct {
	store   store.Store
	flow    *dialogue.Flow
	reg     *dispatch.Registry
	texts   Texts
	pick    func(n int) int
	fetches []*provider.Command
	// fallback answers plain text that matches no command
	fallback *provider.Command
}

// HandlersOption configures Handlers.
type HandlersOption func(*Handlers)

// WithPicker replaces the random tip picker; pick(n) must return [0, n).
func WithPicker(pick func(n int) int) HandlersOption {
	return func(h *Handlers) { h.pick = pick }
}

// WithFetchCommands adds data-fetch commands next to the built-in ones.
func WithFetchCommands(cmds ...*provider.Command) HandlersOption {
	return func(h *Handlers) { h.fetches = append(h.fetches, cmds...) }
}

// WithTextFallback runs cmd with the words of any plain text that matches
// no command, e.g. a breed or city lookup.
func WithTextFallback(cmd *provider.Command) HandlersOption {
	return func(h *Handlers) { h.fallback = cmd }
}

// NewHandlers builds the command set over st and flow.
func NewHandlers(st store.Store, flow *dialogue.Flow, texts Texts, opts ...HandlersOption) *Handlers {
	h := &Handlers{store: st, flow: flow, texts: texts, pick: rand.Intn}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Install registers every command in reg.
func (h *Handlers) Install(reg *dispatch.Registry) error {
	h.reg = reg
	cmds := []dispatch.Command{
		{Name: "start", Description: "Главное меню", Handler: h.Start},
		{Name: "help", Description: "Список команд", Handler: h.Help},
		{Name: "register", Description: "Регистрация", Handler: h.Register, Aliases: []string{LabelRegister}},
		{Name: "finances", Description: "Заполнить расходы", Handler: h.Finances, Aliases: []string{LabelFinances}},
		{Name: "tips", Description: "Совет по экономии", Handler: h.Tips, Aliases: []string{LabelTips}},
		{Name: "profile", Description: "Мои расходы", Handler: h.Profile},
		{Name: "reset", Description: "Сбросить анкету пользователя", Handler: h.Reset, AdminOnly: true, Hidden: true},
	}
	for _, fc := range h.fetches {
		cmds = append(cmds, fetchCommand(fc))
	}
	if h.fallback != nil {
		fc := h.fallback
		reg.SetTextFallback(func(ctx context.Context, ev dispatch.Event) (string, error) {
			return fc.Run(ctx, strings.Fields(ev.Text))
		})
	}
	return reg.Register(cmds...)
}

// MenuRows lays out the reply keyboard: registration and fetch commands
// first, then tips and the questionnaire.
func (h *Handlers) MenuRows() [][]string {
	labels := []string{LabelRegister}
	for _, fc := range h.fetches {
		if aliases := fc.Config().Aliases; len(aliases) > 0 {
			labels = append(labels, aliases[0])
		}
	}
	labels = append(labels, LabelTips, LabelFinances)

	var rows [][]string
	for i := 0; i < len(labels); i += 2 {
		rows = append(rows, labels[i:min(i+2, len(labels))])
	}
	return rows
}

// Start greets the user.
func (h *Handlers) Start(context.Context, dispatch.Event) (string, error) {
	return h.texts.Greeting, nil
}

// Help lists the visible commands.
func (h *Handlers) Help(context.Context, dispatch.Event) (string, error) {
	var b strings.Builder
	b.WriteString(h.texts.HelpHeader)
	if h.reg == nil {
		return b.String(), nil
	}
	for _, cmd := range h.reg.List(true) {
		b.WriteString("\n/")
		b.WriteString(cmd.Name)
		b.WriteString(" - ")
		b.WriteString(cmd.Description)
	}
	return b.String(), nil
}

// Register creates the profile of the sender once.
func (h *Handlers) Register(ctx context.Context, ev dispatch.Event) (string, error) {
	res, err := h.store.RegisterIfAbsent(ctx, ev.Identity)
	if err != nil {
		return h.texts.Failure, err
	}
	logger.Store.InfoContext(ctx, "registration",
		slog.String("event", "profile.register"),
		slog.String("status", "ok"),
		slog.String("outcome", "ok"),
		slog.String("result", res.String()),
	)
	if res == store.AlreadyExists {
		return h.texts.AlreadyRegistered, nil
	}
	return h.texts.Registered, nil
}

// Finances starts the expenses questionnaire.
func (h *Handlers) Finances(ctx context.Context, ev dispatch.Event) (string, error) {
	return h.flow.Begin(ctx, ev.Identity)
}

// Tips returns one saving tip picked uniformly at random.
func (h *Handlers) Tips(context.Context, dispatch.Event) (string, error) {
	if len(h.texts.Tips) == 0 {
		return "", nil
	}
	return h.texts.Tips[h.pick(len(h.texts.Tips))], nil
}

// Profile shows the last saved answers.
func (h *Handlers) Profile(ctx context.Context, ev dispatch.Event) (string, error) {
	p, err := h.store.GetProfile(ctx, ev.Identity.ID)
	if errors.Is(err, store.ErrNotFound) {
		return h.texts.ProfileMissing, nil
	}
	if err != nil {
		return h.texts.Failure, err
	}
	if !p.HasAnswers() {
		return h.texts.ProfileEmpty, nil
	}
	return h.texts.ProfileHeader + "\n" + dialogue.Summary(p.Answers), nil
}

// Reset aborts the session of the user given as the first argument.
func (h *Handlers) Reset(ctx context.Context, ev dispatch.Event) (string, error) {
	if len(ev.Command.Args) != 1 {
		return h.texts.ResetUsage, nil
	}
	userID, err := strconv.ParseInt(ev.Command.Args[0], 10, 64)
	if err != nil || userID <= 0 {
		return h.texts.ResetUsage, nil
	}
	if !h.flow.Machine.Abort(userID) {
		return h.texts.ResetNone, nil
	}
	logger.Dialogue.InfoContext(ctx, "session reset by admin",
		slog.String("event", "dialogue.reset"),
		slog.String("phase", "aborted"),
		slog.Int64("target_user_id", userID),
	)
	return h.texts.ResetDone, nil
}

func fetchCommand(fc *provider.Command) dispatch.Command {
	cfg := fc.Config()
	desc := cfg.Description
	if desc == "" {
		desc = cfg.Name
	}
	return dispatch.Command{
		Name:        cfg.Name,
		Description: desc,
		Aliases:     cfg.Aliases,
		Handler: func(ctx context.Context, ev dispatch.Event) (string, error) {
			return fc.Run(ctx, ev.Command.Args)
		},
	}
}
