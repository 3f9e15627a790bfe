package attendance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestMemoryLedgerConcurrentDuplicates fires N parallel submissions for the
// same (session, person) key and asserts exactly one insert wins.
func TestMemoryLedgerConcurrentDuplicates(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	const n = 64
	var wg sync.WaitGroup
	var successes, duplicates atomic.Int64

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := ledger.Insert(ctx, Record{
				SessionToken: "DATA-deadbeef",
				Enrollment:   "EN-001",
				RecordedAt:   time.Now(),
				Status:       StatusPresent,
			})
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, ErrDuplicateSubmission):
				duplicates.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successes.Load() != 1 {
		t.Fatalf("got %d successful inserts, want exactly 1", successes.Load())
	}
	if duplicates.Load() != n-1 {
		t.Fatalf("got %d duplicates, want %d", duplicates.Load(), n-1)
	}

	records, err := ledger.ListBySession(ctx, "DATA-deadbeef")
	if err != nil {
		t.Fatalf("ListBySession: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("ledger holds %d records, want 1", len(records))
	}
}

// TestMemoryLedgerDistinctKeys ensures different students and sessions do
// not conflict.
func TestMemoryLedgerDistinctKeys(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	inserts := []Record{
		{SessionToken: "s1", Enrollment: "a", Status: StatusPresent},
		{SessionToken: "s1", Enrollment: "b", Status: StatusLate},
		{SessionToken: "s2", Enrollment: "a", Status: StatusPresent},
	}
	for _, rec := range inserts {
		if err := ledger.Insert(ctx, rec); err != nil {
			t.Fatalf("Insert(%s, %s): %v", rec.SessionToken, rec.Enrollment, err)
		}
	}

	s1, _ := ledger.ListBySession(ctx, "s1")
	if len(s1) != 2 {
		t.Fatalf("s1 has %d records, want 2", len(s1))
	}
	history, _ := ledger.ListByStudent(ctx, "a", 10)
	if len(history) != 2 {
		t.Fatalf("student a has %d records, want 2", len(history))
	}
}

// TestMemoryLedgerOverride checks mutation of status and override fields.
func TestMemoryLedgerOverride(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	rec := Record{ID: "r1", SessionToken: "s1", Enrollment: "a", Status: StatusRejectedOutOfRadius, Latitude: 23.0225, Longitude: 72.5714}
	if err := ledger.Insert(ctx, rec); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := ledger.Override(ctx, "r1", StatusPresent, "GPS drift confirmed", "staff-7")
	if err != nil {
		t.Fatalf("Override: %v", err)
	}
	if got.Status != StatusPresent {
		t.Fatalf("status = %s, want Present", got.Status)
	}
	if got.OverrideBy == nil || *got.OverrideBy != "staff-7" {
		t.Fatalf("override_by not stamped: %v", got.OverrideBy)
	}
	if got.Latitude != rec.Latitude || got.Longitude != rec.Longitude {
		t.Fatal("override touched original coordinates")
	}

	if _, err := ledger.Override(ctx, "missing", StatusPresent, "x", "staff-7"); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("missing record: got %v, want ErrRecordNotFound", err)
	}
}
