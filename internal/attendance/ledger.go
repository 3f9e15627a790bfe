package attendance

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDuplicateSubmission means a record already exists for the
	// (session, person) pair. Expected and recoverable; never retried.
	ErrDuplicateSubmission = errors.New("attendance already recorded for this session")
	ErrRecordNotFound      = errors.New("attendance record not found")
	ErrReasonRequired      = errors.New("override reason required")
	ErrInvalidStatus       = errors.New("unknown attendance status")
)

// Record is one attendance row. Unique on (session, enrollment); immutable
// after insert except through Override, which touches only the status and
// override fields. The reported coordinates stay as historical evidence.
type Record struct {
	ID             string    `json:"id"`
	SessionToken   string    `json:"session_token"`
	Enrollment     string    `json:"enrollment"`
	RecordedAt     time.Time `json:"recorded_at"`
	Status         Status    `json:"status"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AccuracyM      float64   `json:"accuracy_m"`
	DistanceM      float64   `json:"distance_m"`
	OverrideBy     *string   `json:"override_by,omitempty"`
	OverrideReason *string   `json:"override_reason,omitempty"`
}

// Ledger enforces the at-most-once invariant at the storage layer. Insert
// must be a single atomic attempt: under concurrent duplicates exactly one
// caller succeeds and the rest observe ErrDuplicateSubmission.
type Ledger interface {
	Insert(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	ListBySession(ctx context.Context, sessionToken string) ([]Record, error)
	ListByStudent(ctx context.Context, enrollment string, limit int) ([]Record, error)
	Override(ctx context.Context, id string, status Status, reason, actorID string) (Record, error)
}
