package dialogue

import (
	"context"
	"errors"
	"testing"

	"github.com/looplab/fsm"

	"github.com/m3rciful/financebot/core/domain"
)

func TestFinishedSessionRefusesTransitions(t *testing.T) {
	m, _ := newMachine(t, 1)
	if _, err := m.Start(context.Background(), domain.Identity{ID: 1}); err != nil {
		t.Fatalf("start: %v", err)
	}
	e := m.lookup(1)
	if !m.Abort(1) {
		t.Fatal("abort should report true")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.Phase != PhaseAborted {
		t.Fatalf("phase = %v, want aborted", e.sess.Phase)
	}
	for _, event := range []string{eventAbort, eventComplete} {
		err := e.finishLocked(context.Background(), event)
		var invalid fsm.InvalidEventError
		if !errors.As(err, &invalid) {
			t.Fatalf("%s after abort: err = %v, want InvalidEventError", event, err)
		}
	}
	if e.sess.Phase != PhaseAborted {
		t.Fatalf("phase changed to %v", e.sess.Phase)
	}
}

func TestCompletedPhase(t *testing.T) {
	m, _ := newMachine(t, 1)
	_, _ = m.Start(context.Background(), domain.Identity{ID: 1})
	e := m.lookup(1)
	for _, in := range []string{"Food", "1", "Transport", "2"} {
		mustAdvance(t, m, 1, in)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sess.Phase != PhaseCompleted || !e.gone {
		t.Fatalf("phase = %v gone = %v", e.sess.Phase, e.gone)
	}
	if err := e.finishLocked(context.Background(), eventAbort); err == nil {
		t.Fatal("completed session must not abort")
	}
}

func TestParsePhase(t *testing.T) {
	for _, p := range []Phase{PhaseActive, PhaseCompleted, PhaseAborted} {
		if got := parsePhase(p.String()); got != p {
			t.Fatalf("parsePhase(%q) = %v", p.String(), got)
		}
	}
	if parsePhase("bogus") != PhaseIdle {
		t.Fatal("unknown phase must map to idle")
	}
}
