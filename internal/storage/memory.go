package storage

import (
	"context"
	"sync"
	"time"

	"calbot/internal/calendar"
	"calbot/internal/schedule"
)

// memoryStore keeps everything in process. Used by the "memory" driver and
// by tests that don't want a database file.
type memoryStore struct {
	mu       sync.Mutex
	events   map[int64]*calendar.MemoryStore
	policies map[int64]schedule.WorkPolicy
	pending  map[int64]PendingConfirmation
	ttl      time.Duration
}

func newMemory(ttl time.Duration) *memoryStore {
	return &memoryStore{
		events:   map[int64]*calendar.MemoryStore{},
		policies: map[int64]schedule.WorkPolicy{},
		pending:  map[int64]PendingConfirmation{},
		ttl:      ttl,
	}
}

func (m *memoryStore) Events(userID int64) calendar.Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.events[userID]
	if !ok {
		st = calendar.NewMemoryStore()
		m.events[userID] = st
	}
	return st
}

func (m *memoryStore) Users(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]int64, 0, len(m.events))
	for id := range m.events {
		out = append(out, id)
	}
	return out, nil
}

func (m *memoryStore) Policy(ctx context.Context, userID int64) (schedule.WorkPolicy, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.policies[userID]
	return p, ok, nil
}

func (m *memoryStore) SavePolicy(ctx context.Context, userID int64, p schedule.WorkPolicy) error {
	if err := p.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policies[userID] = p
	return nil
}

func (m *memoryStore) PutPending(ctx context.Context, userID int64, p PendingConfirmation) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[userID] = p
	return nil
}

func (m *memoryStore) GetPending(ctx context.Context, userID int64) (PendingConfirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[userID]
	if !ok {
		return PendingConfirmation{}, ErrNoPending
	}
	if time.Since(p.CreatedAt) > m.ttl {
		delete(m.pending, userID)
		return PendingConfirmation{}, ErrNoPending
	}
	return p, nil
}

func (m *memoryStore) DeletePending(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, userID)
	return nil
}

func (m *memoryStore) Close() error { return nil }
