package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"presence/internal/audit"
	"presence/internal/session"
)

func testService(t *testing.T, now time.Time) (*Service, *audit.Memory, *session.Service) {
	t.Helper()
	sessStore := session.NewMemory()
	sessions := session.NewService(sessStore, func() time.Time { return now })
	auditStore := audit.NewMemory()
	trail := audit.NewTrail(auditStore, func() time.Time { return now })
	svc := NewService(sessions, NewMemoryLedger(), trail, nil, nil, func() time.Time { return now })
	return svc, auditStore, sessions
}

func createLecture(t *testing.T, sessions *session.Service, start time.Time) session.Session {
	t.Helper()
	sess, err := sessions.Create(context.Background(), session.CreateParams{
		TeacherID:    "t-1",
		Subject:      "Data Structures",
		Room:         "Lab 301",
		Start:        start,
		End:          start.Add(time.Hour),
		Latitude:     anchorLat,
		Longitude:    anchorLon,
		RadiusM:      40,
		LateAfterMin: 10,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return sess
}

// TestSubmitAnomalyStillAccepted: a 150m accuracy fix within radius is
// flagged in the audit trail but the submission is still recorded Present.
func TestSubmitAnomalyStillAccepted(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)
	svc, auditStore, sessions := testService(t, now)
	sess := createLecture(t, sessions, start)
	ctx := context.Background()

	rec, dec, err := svc.Submit(ctx, sess.Token, "EN-001", anchorLat+offset20m/2, anchorLon, 150)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if dec.Status != StatusPresent {
		t.Fatalf("status = %s, want Present", dec.Status)
	}
	if rec.Status != StatusPresent {
		t.Fatalf("recorded status = %s, want Present", rec.Status)
	}

	entries, err := auditStore.List(ctx, audit.ActionAnomaly, 10)
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d anomaly entries, want 1", len(entries))
	}
	if entries[0].ActorID == nil || *entries[0].ActorID != "EN-001" {
		t.Fatalf("anomaly entry actor = %v, want EN-001", entries[0].ActorID)
	}
}

// TestSubmitDuplicateRefused: the second submission for the same key fails
// with ErrDuplicateSubmission and the ledger keeps the first decision.
func TestSubmitDuplicateRefused(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)
	svc, _, sessions := testService(t, now)
	sess := createLecture(t, sessions, start)
	ctx := context.Background()

	first, _, err := svc.Submit(ctx, sess.Token, "EN-001", anchorLat+offset20m, anchorLon, 10)
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	_, dec, err := svc.Submit(ctx, sess.Token, "EN-001", anchorLat+offset20m, anchorLon, 10)
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("second Submit: got %v, want ErrDuplicateSubmission", err)
	}
	if !dec.Status.Valid() {
		t.Fatalf("duplicate attempt lost its decision: %+v", dec)
	}

	got, err := svc.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != first.Status {
		t.Fatal("duplicate attempt overwrote the original record")
	}
}

// TestSubmitRejectionPersisted: policy rejections are successful evaluations
// with a negative outcome and still produce a record.
func TestSubmitRejectionPersisted(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)
	svc, _, sessions := testService(t, now)
	sess := createLecture(t, sessions, start)
	ctx := context.Background()

	rec, dec, err := svc.Submit(ctx, sess.Token, "EN-002", anchorLat+offset60m, anchorLon, 10)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if dec.Status != StatusRejectedOutOfRadius {
		t.Fatalf("status = %s, want RejectedOutOfRadius", dec.Status)
	}
	if rec.ID == "" {
		t.Fatal("rejection produced no record")
	}

	roster, err := svc.Roster(ctx, sess.Token)
	if err != nil {
		t.Fatalf("Roster: %v", err)
	}
	if len(roster) != 1 || roster[0].Status != StatusRejectedOutOfRadius {
		t.Fatalf("roster = %+v, want one rejected record", roster)
	}
}

// TestSubmitUnknownSession surfaces the registry's not-found error.
func TestSubmitUnknownSession(t *testing.T) {
	now := time.Date(2025, 3, 10, 10, 5, 0, 0, time.UTC)
	svc, _, _ := testService(t, now)

	_, _, err := svc.Submit(context.Background(), "NOPE-00000000", "EN-001", anchorLat, anchorLon, 10)
	if !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("got %v, want session.ErrNotFound", err)
	}
}

// TestOverride covers the reason precondition, the missing-record case and
// a successful correction that preserves the original evidence.
func TestOverride(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)
	svc, auditStore, sessions := testService(t, now)
	sess := createLecture(t, sessions, start)
	ctx := context.Background()

	rec, _, err := svc.Submit(ctx, sess.Token, "EN-001", anchorLat+offset60m, anchorLon, 10)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := svc.Override(ctx, rec.ID, StatusPresent, "", "staff-7"); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("empty reason: got %v, want ErrReasonRequired", err)
	}
	if _, err := svc.Override(ctx, rec.ID, StatusPresent, "   ", "staff-7"); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("blank reason: got %v, want ErrReasonRequired", err)
	}
	if _, err := svc.Override(ctx, "missing", StatusPresent, "reason", "staff-7"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("missing record: got %v, want ErrRecordNotFound", err)
	}
	if _, err := svc.Override(ctx, rec.ID, Status("Bogus"), "reason", "staff-7"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("bogus status: got %v, want ErrInvalidStatus", err)
	}

	got, err := svc.Override(ctx, rec.ID, StatusPresent, "student was inside, GPS bounced off the building", "staff-7")
	if err != nil {
		t.Fatalf("Override: %v", err)
	}
	if got.Status != StatusPresent {
		t.Fatalf("status = %s, want Present", got.Status)
	}
	if got.Latitude != rec.Latitude || got.Longitude != rec.Longitude || got.DistanceM != rec.DistanceM {
		t.Fatal("override touched the original evidence")
	}
	if got.OverrideBy == nil || *got.OverrideBy != "staff-7" {
		t.Fatalf("override_by = %v, want staff-7", got.OverrideBy)
	}

	entries, err := auditStore.List(ctx, audit.ActionOverride, 10)
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d override audit entries, want 1", len(entries))
	}
}

// TestSubmitMarkerShortCircuit: a marker hit refuses the duplicate without
// touching the ledger.
func TestSubmitMarkerShortCircuit(t *testing.T) {
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	now := start.Add(5 * time.Minute)

	sessStore := session.NewMemory()
	sessions := session.NewService(sessStore, func() time.Time { return now })
	trail := audit.NewTrail(audit.NewMemory(), func() time.Time { return now })
	marks := &fakeMarker{seen: make(map[string]bool)}
	svc := NewService(sessions, NewMemoryLedger(), trail, nil, marks, func() time.Time { return now })
	sess := createLecture(t, sessions, start)
	ctx := context.Background()

	if _, _, err := svc.Submit(ctx, sess.Token, "EN-001", anchorLat+offset20m, anchorLon, 10); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if !marks.seen[sess.Token+"/EN-001"] {
		t.Fatal("successful submit did not set the marker")
	}

	_, _, err := svc.Submit(ctx, sess.Token, "EN-001", anchorLat+offset20m, anchorLon, 10)
	if !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("marker hit: got %v, want ErrDuplicateSubmission", err)
	}
}

type fakeMarker struct {
	seen map[string]bool
}

func (f *fakeMarker) Seen(_ context.Context, token, enrollment string) bool {
	return f.seen[token+"/"+enrollment]
}

func (f *fakeMarker) Mark(_ context.Context, token, enrollment string) {
	f.seen[token+"/"+enrollment] = true
}
