package dialogue

import (
	"time"

	"github.com/m3rciful/financebot/core/domain"
)

// Phase is the lifecycle of a session. Idle is the absence of a session;
// Completed and Aborted are set just before the session is dropped.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseActive
	PhaseCompleted
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseActive:
		return "active"
	case PhaseCompleted:
		return "completed"
	case PhaseAborted:
		return "aborted"
	}
	return "unknown"
}

// Session is one identity's in-progress form.
// Answers always holds exactly the steps before StepIndex.
type Session struct {
	Identity  domain.Identity
	StepIndex int
	Answers   domain.Answers
	Phase     Phase
	StartedAt time.Time
	UpdatedAt time.Time
}

func (s Session) clone() Session {
	s.Answers = s.Answers.Clone()
	return s
}

// OutcomeKind tells which branch of Outcome is set.
type OutcomeKind int

const (
	// NextPrompt means the answer was stored and Step is the next one to ask.
	NextPrompt OutcomeKind = iota + 1
	// Completed means the form is finished and Profile holds the committed result.
	Completed
)

// Outcome is the result of a successful Advance.
type Outcome struct {
	Kind    OutcomeKind
	Step    Step
	Profile domain.Profile
}
