package state

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps objects and states in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]Object
	states  map[string]State
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]Object),
		states:  make(map[string]State),
		now:     time.Now,
	}
}

// GetState returns the state of id.
func (m *MemoryStore) GetState(_ context.Context, id string) (State, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[id]
	return st, ok, nil
}

// SetState stores val for id.
func (m *MemoryStore) SetState(_ context.Context, id string, val any, ack bool) error {
	if !ValidID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[id] = State{Val: val, Ack: ack, TS: m.now()}
	return nil
}

// GetObject returns a copy of the object for id.
func (m *MemoryStore) GetObject(_ context.Context, id string) (Object, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[id]
	if !ok {
		return Object{}, false, nil
	}
	return obj.Clone(), true, nil
}

// ExtendObject creates or updates an object, keeping an existing name.
func (m *MemoryStore) ExtendObject(_ context.Context, obj Object) error {
	if !ValidID(obj.ID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, obj.ID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, found := m.objects[obj.ID]
	m.objects[obj.ID] = mergeObject(existing, found, obj)
	return nil
}

// List returns every object with its state, sorted by id.
func (m *MemoryStore) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, 0, len(m.objects))
	for id, obj := range m.objects {
		st, ok := m.states[id]
		out = append(out, Entry{Object: obj.Clone(), State: st, HasState: ok})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Object.ID < out[j].Object.ID })
	return out, nil
}
