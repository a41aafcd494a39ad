package storage

import (
	"context"
	"sync"

	"github.com/4Achar-SE4031/4Achar-Backend/pkg/types"
)

// MemoryStore is an in-memory EventStore keyed by natural key. It backs
// dry runs and tests where no database is configured.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	events map[types.NaturalKey]types.Event
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[types.NaturalKey]types.Event)}
}

// Insert stores a copy of the event and assigns its ID, returning
// ErrDuplicateEvent when the natural key is already present.
func (m *MemoryStore) Insert(ctx context.Context, event *types.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := event.Key()
	if _, ok := m.events[key]; ok {
		return ErrDuplicateEvent
	}
	m.nextID++
	event.ID = m.nextID
	m.events[key] = *event
	return nil
}

// Exists reports whether the natural key has been inserted.
func (m *MemoryStore) Exists(ctx context.Context, key types.NaturalKey) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.events[key]
	return ok, nil
}

// Len returns the number of stored events.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}
