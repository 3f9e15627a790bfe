package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"presence/internal/audit"
	"presence/internal/metrics"
	"presence/internal/queue"
	"presence/internal/session"
)

// SessionSource resolves session tokens. Satisfied by *session.Service.
type SessionSource interface {
	Get(ctx context.Context, token string) (session.Session, error)
}

// Marker is a best-effort cache of already-recorded pairs. Satisfied by
// *store.Marker; nil disables the shortcut.
type Marker interface {
	Seen(ctx context.Context, sessionToken, enrollment string) bool
	Mark(ctx context.Context, sessionToken, enrollment string)
}

// RecordedEvent is published to the queue after each committed record so
// the worker can keep per-session tallies fresh.
type RecordedEvent struct {
	SessionToken string `json:"session_token"`
	Status       Status `json:"status"`
}

// Service runs the full submission pipeline: evaluate, inspect for
// anomalies, record exactly once, then notify the worker.
type Service struct {
	sessions SessionSource
	ledger   Ledger
	trail    *audit.Trail
	q        queue.Queue
	marks    Marker
	now      func() time.Time
}

// NewService wires the pipeline. q and marks may be nil; the trail must not
// be. The clock assigns server-side evaluation timestamps.
func NewService(sessions SessionSource, ledger Ledger, trail *audit.Trail, q queue.Queue, marks Marker, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{sessions: sessions, ledger: ledger, trail: trail, q: q, marks: marks, now: now}
}

// Submit evaluates a student's reported location against the session and
// records the decision at most once. The decision is returned even when the
// record was refused as a duplicate, so callers can show what would have
// happened. Timestamps are server-assigned; the client only supplies the
// location tuple, and no capture mechanism is trusted over another.
func (s *Service) Submit(ctx context.Context, sessionToken, enrollment string, lat, lon, accuracyM float64) (Record, Decision, error) {
	sess, err := s.sessions.Get(ctx, sessionToken)
	if err != nil {
		return Record{}, Decision{}, err
	}

	at := s.now()
	dec := Evaluate(sess, lat, lon, accuracyM, at)

	// Anomaly inspection is advisory and runs before the ledger attempt,
	// whatever the outcome of either.
	if audit.Anomalous(accuracyM, dec.DistanceM, sess.RadiusM) {
		details := fmt.Sprintf("%s accuracy=%.1f distance=%.1f", enrollment, accuracyM, dec.DistanceM)
		if err := s.trail.Log(ctx, audit.ActionAnomaly, details, enrollment); err != nil {
			log.Printf("audit append failed for %s/%s: %v", sessionToken, enrollment, err)
		}
		metrics.Anomalies.Inc()
	}

	// Fast-path duplicate hint. A marker is only ever set after a committed
	// insert, so a hit is always accurate; a miss falls through to the
	// authoritative atomic insert.
	if s.marks != nil && s.marks.Seen(ctx, sessionToken, enrollment) {
		metrics.Duplicates.Inc()
		return Record{}, dec, ErrDuplicateSubmission
	}

	rec := Record{
		ID:           uuid.NewString(),
		SessionToken: sessionToken,
		Enrollment:   enrollment,
		RecordedAt:   at,
		Status:       dec.Status,
		Latitude:     lat,
		Longitude:    lon,
		AccuracyM:    accuracyM,
		DistanceM:    dec.DistanceM,
	}
	if err := s.ledger.Insert(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateSubmission) {
			metrics.Duplicates.Inc()
		}
		return Record{}, dec, err
	}

	metrics.Evaluations.WithLabelValues(string(dec.Status)).Inc()
	if s.marks != nil {
		s.marks.Mark(ctx, sessionToken, enrollment)
	}
	s.publishRecorded(ctx, sessionToken, dec.Status)

	return rec, dec, nil
}

// Override applies a privileged, reason-mandatory status correction. The
// original coordinates, accuracy, distance and timestamp stay untouched as
// evidence of the original claim.
func (s *Service) Override(ctx context.Context, recordID string, newStatus Status, reason, actorID string) (Record, error) {
	if strings.TrimSpace(reason) == "" {
		return Record{}, ErrReasonRequired
	}
	if !newStatus.Valid() {
		return Record{}, ErrInvalidStatus
	}
	rec, err := s.ledger.Override(ctx, recordID, newStatus, reason, actorID)
	if err != nil {
		return Record{}, err
	}
	details := fmt.Sprintf("record=%s status=%s reason=%s", recordID, newStatus, reason)
	if err := s.trail.Log(ctx, audit.ActionOverride, details, actorID); err != nil {
		log.Printf("audit append failed for override %s: %v", recordID, err)
	}
	metrics.Overrides.Inc()
	return rec, nil
}

// Get returns one record by id.
func (s *Service) Get(ctx context.Context, id string) (Record, error) {
	return s.ledger.Get(ctx, id)
}

// Roster returns all records for a session in submission order.
func (s *Service) Roster(ctx context.Context, sessionToken string) ([]Record, error) {
	return s.ledger.ListBySession(ctx, sessionToken)
}

// History returns a student's recent records, newest first.
func (s *Service) History(ctx context.Context, enrollment string, limit int) ([]Record, error) {
	return s.ledger.ListByStudent(ctx, enrollment, limit)
}

func (s *Service) publishRecorded(ctx context.Context, sessionToken string, status Status) {
	if s.q == nil {
		return
	}
	body, err := json.Marshal(RecordedEvent{SessionToken: sessionToken, Status: status})
	if err != nil {
		return
	}
	if err := s.q.Publish(ctx, queue.Message{Type: "recorded", Body: body}); err != nil {
		log.Printf("queue publish failed: %v", err)
	}
}
