package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Marker is a best-effort cache of already-recorded (session, person)
// pairs. UX shortcut only: the attendance unique constraint stays the
// single source of truth, and any cache miss or Redis outage simply falls
// through to the atomic insert.
type Marker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewMarker creates a marker cache with the given retention.
func NewMarker(client *redis.Client, ttl time.Duration) *Marker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Marker{client: client, ttl: ttl}
}

func markerKey(sessionToken, enrollment string) string {
	return "presence:mark:" + sessionToken + ":" + enrollment
}

// Seen reports whether a successful record was previously marked. Only ever
// set after a committed insert, so a hit cannot be a false positive.
func (m *Marker) Seen(ctx context.Context, sessionToken, enrollment string) bool {
	if m == nil || m.client == nil {
		return false
	}
	n, err := m.client.Exists(ctx, markerKey(sessionToken, enrollment)).Result()
	return err == nil && n > 0
}

// Mark flags a committed record. Errors are ignored; the cache is advisory.
func (m *Marker) Mark(ctx context.Context, sessionToken, enrollment string) {
	if m == nil || m.client == nil {
		return
	}
	_ = m.client.Set(ctx, markerKey(sessionToken, enrollment), "1", m.ttl).Err()
}
