package store

import (
	"context"
	"sync"
	"time"

	"github.com/m3rciful/financebot/core/domain"
)

// MemoryStore keeps profiles in process memory. It backs driver "memory" and tests.
type MemoryStore struct {
	mu       sync.Mutex
	profiles map[int64]domain.Profile
	now      func() time.Time

	failCommit error
}

// NewMemory returns an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{profiles: make(map[int64]domain.Profile), now: time.Now}
}

// GetProfile returns a copy of the stored profile.
func (m *MemoryStore) GetProfile(_ context.Context, userID int64) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return domain.Profile{}, ErrNotFound
	}
	p.Answers = p.Answers.Clone()
	return p, nil
}

// RegisterIfAbsent inserts the identity under the store mutex.
func (m *MemoryStore) RegisterIfAbsent(_ context.Context, id domain.Identity) (RegisterResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[id.ID]; ok {
		return AlreadyExists, nil
	}
	m.profiles[id.ID] = domain.Profile{
		Identity:     domain.Identity{ID: id.ID, Name: id.DisplayName()},
		RegisteredAt: m.now().UTC().Truncate(time.Millisecond),
	}
	return Created, nil
}

// Commit overwrites the answers of a registered profile.
func (m *MemoryStore) Commit(_ context.Context, userID int64, answers domain.Answers) (domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCommit != nil {
		return domain.Profile{}, m.failCommit
	}
	p, ok := m.profiles[userID]
	if !ok {
		return domain.Profile{}, ErrNotFound
	}
	p.Answers = answers.Clone()
	p.AnswersUpdatedAt = m.now().UTC().Truncate(time.Millisecond)
	m.profiles[userID] = p
	p.Answers = p.Answers.Clone()
	return p, nil
}

// SetFailCommit makes every following Commit return err until reset with nil.
func (m *MemoryStore) SetFailCommit(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failCommit = err
}

// Len returns the number of stored profiles.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.profiles)
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
