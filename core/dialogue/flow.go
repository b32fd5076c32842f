package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m3rciful/financebot/core/domain"
)

// Messages holds the user-facing texts Flow answers with.
type Messages struct {
	AlreadyActive    string
	NotRegistered    string
	NothingToDo      string
	StoreUnavailable string
	// Invalid is printed before the step prompt; %s receives the step name.
	Invalid string
	// InvalidNumber replaces Invalid for number steps.
	InvalidNumber string
	Completed     string
	// ShowSummary appends the committed answers to Completed.
	ShowSummary bool
}

// DefaultMessages returns neutral English texts.
func DefaultMessages() Messages {
	return Messages{
		AlreadyActive:    "Finish the current form first.",
		NotRegistered:    "Please register first.",
		NothingToDo:      "Nothing to do right now.",
		StoreUnavailable: "Could not save your answers, please send the last answer again.",
		Invalid:          "The answer for %s cannot be empty.",
		InvalidNumber:    "The answer for %s must be a number, for example 120.50.",
		Completed:        "Saved!",
	}
}

// Flow adapts a Machine to text in, text out.
type Flow struct {
	Machine  *Machine
	Messages Messages
}

// NewFlow wraps m with msgs.
func NewFlow(m *Machine, msgs Messages) *Flow {
	return &Flow{Machine: m, Messages: msgs}
}

// InProgress reports whether userID has an active session.
func (f *Flow) InProgress(userID int64) bool {
	return f.Machine.InProgress(userID)
}

// Begin starts a session and returns the first prompt. Errors that the user
// can act on are turned into text; only store failures are returned.
func (f *Flow) Begin(ctx context.Context, id domain.Identity) (string, error) {
	_, err := f.Machine.Start(ctx, id)
	switch {
	case err == nil:
		return f.Machine.Spec().Step(0).Prompt, nil
	case errors.Is(err, ErrAlreadyActive):
		return f.Messages.AlreadyActive, nil
	case errors.Is(err, ErrNotRegistered):
		return f.Messages.NotRegistered, nil
	default:
		return f.Messages.StoreUnavailable, err
	}
}

// Advance feeds text into the session and returns what to reply.
func (f *Flow) Advance(ctx context.Context, id domain.Identity, text string) (string, error) {
	out, err := f.Machine.Advance(ctx, id.ID, text)
	var verr *ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		return f.reprompt(verr), nil
	case errors.Is(err, ErrNoActiveSession):
		return f.Messages.NothingToDo, nil
	case errors.Is(err, ErrNotRegistered):
		return f.Messages.NotRegistered, nil
	default:
		return f.Messages.StoreUnavailable, err
	}

	if out.Kind == NextPrompt {
		return out.Step.Prompt, nil
	}
	if !f.Messages.ShowSummary {
		return f.Messages.Completed, nil
	}
	return f.Messages.Completed + "\n" + Summary(out.Profile.Answers), nil
}

func (f *Flow) reprompt(verr *ValidationError) string {
	tmpl := f.Messages.Invalid
	var prompt string
	for _, st := range f.Machine.Spec().Steps() {
		if st.Name != verr.Step {
			continue
		}
		prompt = st.Prompt
		if st.Kind == domain.KindNumber && f.Messages.InvalidNumber != "" {
			tmpl = f.Messages.InvalidNumber
		}
		break
	}
	msg := tmpl
	if strings.Contains(tmpl, "%s") {
		msg = fmt.Sprintf(tmpl, verr.Step)
	}
	if prompt == "" {
		return msg
	}
	return msg + "\n" + prompt
}

// Summary renders answers one per line as "step: value".
func Summary(answers domain.Answers) string {
	var b strings.Builder
	for i, ans := range answers {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(ans.Step)
		b.WriteString(": ")
		b.WriteString(ans.Value.String())
	}
	return b.String()
}
