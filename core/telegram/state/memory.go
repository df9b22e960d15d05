package state

import (
	"context"
	"sync"
	"time"

	"github.com/m3rciful/langbot/core/clock"
)

type memoryEntry struct {
	state   State
	data    map[string]any
	touched time.Time
}

// MemoryStore keeps conversation state in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	ttl     time.Duration
	clk     clock.Clock
	entries map[int64]*memoryEntry
}

// NewMemoryStore constructs an in-memory Store. A zero ttl keeps entries
// until they are cleared. A nil clock falls back to the UTC wall clock.
func NewMemoryStore(ttl time.Duration, clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.Real(time.UTC)
	}
	return &MemoryStore{
		ttl:     ttl,
		clk:     clk,
		entries: make(map[int64]*memoryEntry),
	}
}

func (m *MemoryStore) expired(e *memoryEntry) bool {
	return m.ttl > 0 && m.clk.Now().Sub(e.touched) > m.ttl
}

// lookup returns a live entry or nil. Caller holds at least the read lock.
func (m *MemoryStore) lookup(userID int64) *memoryEntry {
	e, ok := m.entries[userID]
	if !ok || m.expired(e) {
		return nil
	}
	return e
}

// ensure returns a live entry, creating or resetting it. Caller holds the write lock.
func (m *MemoryStore) ensure(userID int64) *memoryEntry {
	e := m.lookup(userID)
	if e == nil {
		e = &memoryEntry{state: StateIdle, data: make(map[string]any)}
		m.entries[userID] = e
	}
	e.touched = m.clk.Now()
	return e
}

// Data returns a copy of the user's stored values.
func (m *MemoryStore) Data(_ context.Context, userID int64) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]any)
	if e := m.lookup(userID); e != nil {
		for k, v := range e.data {
			out[k] = cloneValue(v)
		}
	}
	return out, nil
}

// Update merges patch into the user's stored values.
func (m *MemoryStore) Update(_ context.Context, userID int64, patch map[string]any) error {
	if len(patch) == 0 {
		return nil
	}
	normalized, err := normalize(patch)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.ensure(userID)
	for k, v := range normalized {
		e.data[k] = v
	}
	return nil
}

// Clear removes everything stored for the user.
func (m *MemoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, userID)
	return nil
}

// SetState records the user's current dialog step.
func (m *MemoryStore) SetState(_ context.Context, userID int64, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensure(userID).state = st
	return nil
}

// State returns the user's current dialog step, or StateIdle if none exists.
func (m *MemoryStore) State(_ context.Context, userID int64) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e := m.lookup(userID); e != nil && e.state != "" {
		return e.state, nil
	}
	return StateIdle, nil
}
