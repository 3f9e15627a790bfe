package audit

import (
	"context"
	"time"
)

// Action tags recorded in the audit trail.
const (
	ActionAnomaly  = "ATTENDANCE_ANOMALY"
	ActionOverride = "ATTENDANCE_OVERRIDE"
)

// Anomaly thresholds: a reported GPS fix worse than 100 m, or a measured
// distance past 1.5x the allowed radius, is implausible enough to flag.
const (
	maxPlausibleAccuracyM = 100.0
	distanceSlackFactor   = 1.5
)

// Entry is one append-only audit record. ActorID is nil for
// system-generated entries.
type Entry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	ActorID   *string   `json:"actor_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store abstracts audit persistence.
type Store interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, action string, limit int) ([]Entry, error)
}

// Anomalous reports whether a submission's reported accuracy or measured
// distance is implausible. Advisory only: it flags, never gates.
func Anomalous(accuracyM, distanceM, allowedRadiusM float64) bool {
	return accuracyM > maxPlausibleAccuracyM || distanceM > allowedRadiusM*distanceSlackFactor
}

// Trail appends audit entries through a store.
type Trail struct {
	store Store
	now   func() time.Time
}

// NewTrail creates a trail. The clock supplies entry timestamps.
func NewTrail(store Store, now func() time.Time) *Trail {
	if now == nil {
		now = time.Now
	}
	return &Trail{store: store, now: now}
}

// Log appends one entry. actorID may be empty for system entries.
func (t *Trail) Log(ctx context.Context, action, details, actorID string) error {
	e := Entry{
		Action:    action,
		Details:   details,
		CreatedAt: t.now(),
	}
	if actorID != "" {
		e.ActorID = &actorID
	}
	return t.store.Append(ctx, e)
}

// List returns recent entries, optionally filtered by action tag.
func (t *Trail) List(ctx context.Context, action string, limit int) ([]Entry, error) {
	return t.store.List(ctx, action, limit)
}
