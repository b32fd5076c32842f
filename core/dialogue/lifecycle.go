package dialogue

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

const (
	eventComplete = "complete"
	eventAbort    = "abort"
)

// newLifecycle returns the phase machine of one session: active, then
// exactly one of completed or aborted.
func newLifecycle() *fsm.FSM {
	return fsm.NewFSM(
		PhaseActive.String(),
		fsm.Events{
			{Name: eventComplete, Src: []string{PhaseActive.String()}, Dst: PhaseCompleted.String()},
			{Name: eventAbort, Src: []string{PhaseActive.String()}, Dst: PhaseAborted.String()},
		},
		fsm.Callbacks{},
	)
}

func parsePhase(s string) Phase {
	switch s {
	case PhaseActive.String():
		return PhaseActive
	case PhaseCompleted.String():
		return PhaseCompleted
	case PhaseAborted.String():
		return PhaseAborted
	}
	return PhaseIdle
}

// finishLocked moves e out of the active phase. A session that already
// finished refuses any further transition. The caller holds e.mu.
func (e *entry) finishLocked(ctx context.Context, event string) error {
	if err := e.life.Event(ctx, event); err != nil {
		return fmt.Errorf("dialogue: %s session of %d: %w", event, e.sess.Identity.ID, err)
	}
	e.sess.Phase = parsePhase(e.life.Current())
	e.gone = true
	return nil
}
