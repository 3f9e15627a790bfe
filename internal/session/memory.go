package session

import (
	"context"
	"sort"
	"sync"
)

// Memory is a map-backed session store for dev and tests.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]Session)}
}

// Insert stores a session.
func (m *Memory) Insert(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.Token] = s
	return nil
}

// Get returns a session by token.
func (m *Memory) Get(ctx context.Context, token string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	return s, nil
}

// List returns recent sessions, newest first, optionally filtered by teacher.
func (m *Memory) List(ctx context.Context, teacherID string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Session
	for _, s := range m.sessions {
		if teacherID != "" && s.TeacherID != teacherID {
			continue
		}
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Start.After(res[j].Start) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}
