package session

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateParams carries the inbound create-session request.
type CreateParams struct {
	TeacherID    string
	Subject      string
	Room         string
	Start        time.Time
	End          time.Time
	Latitude     float64
	Longitude    float64
	RadiusM      float64
	LateAfterMin int
	Year         *int
	Batch        *int
}

// Service coordinates session creation and lookup.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a service backed by a store. The clock supplies
// creation timestamps in the application timezone.
func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// Create validates and persists a new session. Invalid parameters are
// rejected before anything touches the store.
func (s *Service) Create(ctx context.Context, p CreateParams) (Session, error) {
	sess := Session{
		Token:        newToken(p.Subject),
		TeacherID:    p.TeacherID,
		Subject:      p.Subject,
		Room:         p.Room,
		Start:        p.Start,
		End:          p.End,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		RadiusM:      p.RadiusM,
		LateAfterMin: p.LateAfterMin,
		Year:         p.Year,
		Batch:        p.Batch,
		CreatedAt:    s.now(),
	}
	if err := sess.Validate(); err != nil {
		return Session{}, err
	}
	if err := s.store.Insert(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Get returns a session by token.
func (s *Service) Get(ctx context.Context, token string) (Session, error) {
	return s.store.Get(ctx, token)
}

// List returns recent sessions, optionally filtered by teacher.
func (s *Service) List(ctx context.Context, teacherID string, limit int) ([]Session, error) {
	return s.store.List(ctx, teacherID, limit)
}

// ListForAudience returns recent sessions a student of the given year and
// batch may attend. Sessions with nil scope fields are open to all.
func (s *Service) ListForAudience(ctx context.Context, year, batch, limit int) ([]Session, error) {
	all, err := s.store.List(ctx, "", limit)
	if err != nil {
		return nil, err
	}
	var res []Session
	for _, sess := range all {
		if sess.OpenTo(year, batch) {
			res = append(res, sess)
		}
	}
	return res, nil
}

// newToken builds a human-scannable session token: a short uppercase subject
// prefix plus a random suffix, e.g. "DATA-1f2e3d4c".
func newToken(subject string) string {
	prefix := strings.ToUpper(strings.ReplaceAll(subject, " ", ""))
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	if prefix == "" {
		prefix = "SESS"
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + id[:8]
}
