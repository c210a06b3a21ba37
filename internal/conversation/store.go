package conversation

import (
	"context"
	"sync"
	"time"
)

// Store persists one State per user. Get returns Idle when nothing is stored.
type Store interface {
	Get(ctx context.Context, userID int64) (State, error)
	Set(ctx context.Context, st State) error
	Clear(ctx context.Context, userID int64) error
}

// MemoryStore is an in-process Store for development and tests.
// Payloads round-trip through the codec so stored drafts never alias caller data.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[int64]memoryEntry
	now    func() time.Time
}

type memoryEntry struct {
	step    Step
	raw     []byte
	updated time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[int64]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, userID int64) (State, error) {
	m.mu.RLock()
	e, ok := m.states[userID]
	m.mu.RUnlock()
	if !ok {
		return Idle(userID), nil
	}
	p, err := Decode(e.step, e.raw)
	if err != nil {
		return State{}, err
	}
	return State{UserID: userID, Step: e.step, Payload: p, UpdatedAt: e.updated}, nil
}

func (m *MemoryStore) Set(_ context.Context, st State) error {
	if st.IsIdle() {
		return m.Clear(context.Background(), st.UserID)
	}
	if _, err := New(st.UserID, st.Step, st.Payload); err != nil {
		return err
	}
	raw, err := Encode(st.Payload)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.states[st.UserID] = memoryEntry{step: st.Step, raw: raw, updated: m.now()}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, userID int64) error {
	m.mu.Lock()
	delete(m.states, userID)
	m.mu.Unlock()
	return nil
}

// ClearIfStep removes the state only while it is still at step.
func (m *MemoryStore) ClearIfStep(userID int64, step Step) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.states[userID]; ok && e.step == step {
		delete(m.states, userID)
		return true
	}
	return false
}
