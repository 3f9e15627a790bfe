package attendance

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryLedger is a map-backed ledger for dev and tests. The mutex gives
// the same atomic insert-or-conflict semantics the Postgres unique
// constraint provides.
type MemoryLedger struct {
	mu      sync.Mutex
	byID    map[string]Record
	byKey   map[string]string // (session, enrollment) -> record id
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		byID:  make(map[string]Record),
		byKey: make(map[string]string),
	}
}

func key(sessionToken, enrollment string) string {
	return sessionToken + "\x00" + enrollment
}

// Insert stores a record, failing atomically on a duplicate key.
func (m *MemoryLedger) Insert(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key(rec.SessionToken, rec.Enrollment)
	if _, exists := m.byKey[k]; exists {
		return ErrDuplicateSubmission
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	m.byKey[k] = rec.ID
	m.byID[rec.ID] = rec
	return nil
}

// Get returns a record by id.
func (m *MemoryLedger) Get(ctx context.Context, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

// ListBySession returns a session's records in submission order.
func (m *MemoryLedger) ListBySession(ctx context.Context, sessionToken string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Record
	for _, rec := range m.byID {
		if rec.SessionToken == sessionToken {
			res = append(res, rec)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].RecordedAt.Before(res[j].RecordedAt) })
	return res, nil
}

// ListByStudent returns a student's history, newest first.
func (m *MemoryLedger) ListByStudent(ctx context.Context, enrollment string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var res []Record
	for _, rec := range m.byID {
		if rec.Enrollment == enrollment {
			res = append(res, rec)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].RecordedAt.After(res[j].RecordedAt) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

// Override mutates status and override fields of an existing record.
func (m *MemoryLedger) Override(ctx context.Context, id string, status Status, reason, actorID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.byID[id]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	rec.Status = status
	rec.OverrideBy = &actorID
	rec.OverrideReason = &reason
	m.byID[id] = rec
	return rec, nil
}
