package audit

import (
	"context"
	"sync"
)

// Memory is an append-only in-memory trail store for dev and tests.
type Memory struct {
	mu      sync.RWMutex
	entries []Entry
	nextID  int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{nextID: 1}
}

// Append stores one entry.
func (m *Memory) Append(ctx context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.nextID
	m.nextID++
	m.entries = append(m.entries, e)
	return nil
}

// List returns entries newest first, optionally filtered by action.
func (m *Memory) List(ctx context.Context, action string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []Entry
	for i := len(m.entries) - 1; i >= 0 && len(res) < limit; i-- {
		if action != "" && m.entries[i].Action != action {
			continue
		}
		res = append(res, m.entries[i])
	}
	return res, nil
}
