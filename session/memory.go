package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory keeps sessions in process. States are stored encoded so callers
// never share mutable state with the store.
type Memory struct {
	mu       sync.Mutex
	sessions map[string][]byte
	versions map[string]int64
	locks    map[string]time.Time
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string][]byte),
		versions: make(map[string]int64),
		locks:    make(map[string]time.Time),
		now:      time.Now,
	}
}

func (m *Memory) Create(ctx context.Context, userID string) (*State, error) {
	s := newState(uuid.NewString(), userID, m.now())
	if err := m.Save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Memory) Get(ctx context.Context, id string) (*State, error) {
	m.mu.Lock()
	raw, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNoSession
	}
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *Memory) Save(ctx context.Context, s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.versions[s.ID]
	switch {
	case !exists && s.Version != 0:
		return ErrNoSession
	case exists && current != s.Version:
		return ErrConflict
	}

	next := *s
	next.Version++
	raw, err := json.Marshal(&next)
	if err != nil {
		return err
	}
	m.sessions[s.ID] = raw
	m.versions[s.ID] = next.Version
	s.Version = next.Version
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	delete(m.versions, id)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, held := m.locks[key]; held && now.Before(until) {
		return nil, ErrLocked
	}
	expires := now.Add(ttl)
	m.locks[key] = expires
	return func() {
		m.mu.Lock()
		if m.locks[key].Equal(expires) {
			delete(m.locks, key)
		}
		m.mu.Unlock()
	}, nil
}
