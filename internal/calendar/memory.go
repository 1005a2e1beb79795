package calendar

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store. It backs the "none" storage driver and
// the engine tests.
type MemoryStore struct {
	mu     sync.Mutex
	events map[string]Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: map[string]Event{}}
}

func (m *MemoryStore) ListEvents(ctx context.Context, start, end time.Time) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Event, 0, len(m.events))
	for _, e := range m.events {
		if e.Overlaps(start, end) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *MemoryStore) CreateEvent(ctx context.Context, title string, start, end time.Time, description string) (Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := Event{
		ID:          uuid.NewString(),
		Title:       title,
		Start:       start,
		End:         end,
		Description: description,
	}
	m.events[e.ID] = e
	return e, nil
}

func (m *MemoryStore) DeleteEvent(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[id]; !ok {
		return ErrNotFound
	}
	delete(m.events, id)
	return nil
}
