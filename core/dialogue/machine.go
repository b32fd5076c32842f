package dialogue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/m3rciful/financebot/core/domain"
	"github.com/m3rciful/financebot/core/logger"
	"github.com/m3rciful/financebot/core/store"
)

// ProfileStore is the part of the profile store the machine needs.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID int64) (domain.Profile, error)
	Commit(ctx context.Context, userID int64, answers domain.Answers) (domain.Profile, error)
}

// entry owns one session. Its mutex serializes every operation on that
// identity; gone is set once the entry has left the table. life drives
// sess.Phase.
type entry struct {
	mu   sync.Mutex
	sess Session
	life *fsm.FSM
	gone bool
}

// Machine is the table of active sessions.
//
// Lock order is entry.mu before Machine.mu. The table lock is only held for
// map access, so identities never wait on each other.
type Machine struct {
	spec  *Spec
	store ProfileStore
	now   func() time.Time

	mu       sync.Mutex
	sessions map[int64]*entry
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides time.Now, used by tests of the idle sweeper.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// NewMachine builds a machine running spec against st.
func NewMachine(spec *Spec, st ProfileStore, opts ...Option) *Machine {
	m := &Machine{
		spec:     spec,
		store:    st,
		now:      time.Now,
		sessions: make(map[int64]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Spec returns the form the machine runs.
func (m *Machine) Spec() *Spec { return m.spec }

func (m *Machine) lookup(userID int64) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[userID]
}

// InProgress reports whether userID has an active session.
func (m *Machine) InProgress(userID int64) bool {
	return m.lookup(userID) != nil
}

// Active returns the number of sessions in the table.
func (m *Machine) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Start opens a session at the first step. The identity must be registered.
func (m *Machine) Start(ctx context.Context, id domain.Identity) (Session, error) {
	if m.InProgress(id.ID) {
		return Session{}, ErrAlreadyActive
	}
	if _, err := m.store.GetProfile(ctx, id.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, ErrNotRegistered
		}
		logger.Dialogue.ErrorContext(ctx, "profile lookup failed",
			slog.String("event", "dialogue.start"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return Session{}, storeUnavailable(err)
	}

	now := m.now()
	e := &entry{
		sess: Session{
			Identity:  id,
			Phase:     PhaseActive,
			StartedAt: now,
			UpdatedAt: now,
		},
		life: newLifecycle(),
	}

	m.mu.Lock()
	// another Start may have won while the profile was loading
	if _, exists := m.sessions[id.ID]; exists {
		m.mu.Unlock()
		return Session{}, ErrAlreadyActive
	}
	m.sessions[id.ID] = e
	m.mu.Unlock()

	logger.Dialogue.InfoContext(ctx, "session started",
		slog.String("event", "dialogue.start"),
		slog.String("status", "ok"),
		slog.Int64("user_id", id.ID),
		slog.String("step", m.spec.Step(0).Name),
		slog.String("phase", PhaseActive.String()),
	)
	return e.sess.clone(), nil
}

// Advance feeds raw input to the current step of userID's session.
//
// Invalid input returns *ValidationError and leaves the session untouched.
// After the last step the answers are committed; on a store failure the
// session stays at the last step so the answer can be sent again.
func (m *Machine) Advance(ctx context.Context, userID int64, raw string) (Outcome, error) {
	e := m.lookup(userID)
	if e == nil {
		return Outcome{}, ErrNoActiveSession
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return Outcome{}, ErrNoActiveSession
	}

	step := m.spec.Step(e.sess.StepIndex)
	ctx = logger.WithStep(ctx, step.Name)
	value, err := step.Parse(raw)
	if err != nil {
		if logger.ShouldSampleDebug() {
			logger.Dialogue.DebugContext(ctx, "input rejected",
				slog.String("event", "dialogue.advance"),
				slog.String("outcome", "invalid"),
				slog.Any("cause", err),
			)
		}
		return Outcome{}, err
	}

	answers := append(e.sess.Answers.Clone(), domain.Answer{Step: step.Name, Value: value})
	next := e.sess.StepIndex + 1
	if next < m.spec.Len() {
		e.sess.Answers = answers
		e.sess.StepIndex = next
		e.sess.UpdatedAt = m.now()
		return Outcome{Kind: NextPrompt, Step: m.spec.Step(next)}, nil
	}

	start := time.Now()
	profile, err := m.store.Commit(ctx, userID, answers)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			if derr := m.dropLocked(ctx, userID, e, eventAbort); derr != nil {
				return Outcome{}, derr
			}
			return Outcome{}, ErrNotRegistered
		}
		e.sess.UpdatedAt = m.now()
		logger.Dialogue.ErrorContext(ctx, "commit failed",
			slog.String("event", "dialogue.commit"),
			slog.String("status", "fail"),
			slog.Int("count", len(answers)),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return Outcome{}, storeUnavailable(err)
	}

	if err := m.dropLocked(ctx, userID, e, eventComplete); err != nil {
		return Outcome{}, err
	}
	e.sess.Answers = answers
	e.sess.StepIndex = next
	logger.Dialogue.InfoContext(ctx, "session completed",
		slog.String("event", "dialogue.commit"),
		slog.String("status", "ok"),
		slog.String("phase", PhaseCompleted.String()),
		slog.Int("count", len(answers)),
		slog.Duration("duration", logger.Took(start)),
	)
	return Outcome{Kind: Completed, Profile: profile}, nil
}

// Abort discards userID's session. It reports whether a session existed;
// aborting an idle identity is a no-op.
func (m *Machine) Abort(userID int64) bool {
	e := m.lookup(userID)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return false
	}
	if err := m.dropLocked(context.Background(), userID, e, eventAbort); err != nil {
		logger.Dialogue.Warn("abort refused",
			slog.String("event", "dialogue.abort"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return false
	}
	logger.Dialogue.Info("session aborted",
		slog.String("event", "dialogue.abort"),
		slog.Int64("user_id", userID),
		slog.String("phase", PhaseAborted.String()),
		slog.Int("count", len(e.sess.Answers)),
	)
	return true
}

// Snapshot returns a copy of userID's session.
func (m *Machine) Snapshot(userID int64) (Session, bool) {
	e := m.lookup(userID)
	if e == nil {
		return Session{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gone {
		return Session{}, false
	}
	return e.sess.clone(), true
}

// dropLocked fires event on e and removes it from the table. The caller
// holds e.mu.
func (m *Machine) dropLocked(ctx context.Context, userID int64, e *entry, event string) error {
	if err := e.finishLocked(ctx, event); err != nil {
		return err
	}
	m.mu.Lock()
	if m.sessions[userID] == e {
		delete(m.sessions, userID)
	}
	m.mu.Unlock()
	return nil
}

// SweepIdle aborts sessions not updated for longer than idle. Sessions busy
// with another operation are skipped and looked at again on the next sweep.
func (m *Machine) SweepIdle(idle time.Duration) []int64 {
	if idle <= 0 {
		return nil
	}
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()
	var swept []int64
	for userID, e := range m.sessions {
		if !e.mu.TryLock() {
			continue
		}
		if e.sess.UpdatedAt.Before(cutoff) && e.finishLocked(context.Background(), eventAbort) == nil {
			delete(m.sessions, userID)
			swept = append(swept, userID)
		}
		e.mu.Unlock()
	}
	return swept
}

// RunJanitor sweeps idle sessions every interval until ctx is done.
func (m *Machine) RunJanitor(ctx context.Context, idle, interval time.Duration) error {
	if idle <= 0 || interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	logger.Dialogue.Info("janitor started",
		slog.String("event", "dialogue.janitor"),
		slog.Duration("interval", interval),
		slog.Duration("idle", idle),
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if swept := m.SweepIdle(idle); len(swept) > 0 {
				logger.Dialogue.Info("idle sessions aborted",
					slog.String("event", "dialogue.janitor"),
					slog.String("phase", PhaseAborted.String()),
					slog.Int("count", len(swept)),
				)
			}
		}
	}
}
