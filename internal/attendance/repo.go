package attendance

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new record. The unique constraint on
// (session_token, enrollment) plus ON CONFLICT DO NOTHING makes the attempt
// atomic; a zero row count means someone else got there first.
func (r *Repository) Insert(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (id, session_token, enrollment, recorded_at, status, latitude, longitude, accuracy_m, distance_m)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (session_token, enrollment) DO NOTHING
	`, rec.ID, rec.SessionToken, rec.Enrollment, rec.RecordedAt, rec.Status, rec.Latitude, rec.Longitude, rec.AccuracyM, rec.DistanceM)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicateSubmission
	}
	return nil
}

// Get returns a single record by id.
func (r *Repository) Get(ctx context.Context, id string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_token, enrollment, recorded_at, status, latitude, longitude, accuracy_m, distance_m, override_by, override_reason
		FROM attendance WHERE id = $1
	`, id)
	return scanRecord(row)
}

// ListBySession returns a session's roster in submission order.
func (r *Repository) ListBySession(ctx context.Context, sessionToken string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_token, enrollment, recorded_at, status, latitude, longitude, accuracy_m, distance_m, override_by, override_reason
		FROM attendance WHERE session_token = $1
		ORDER BY recorded_at
	`, sessionToken)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// ListByStudent returns a student's recent attendance history.
func (r *Repository) ListByStudent(ctx context.Context, enrollment string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_token, enrollment, recorded_at, status, latitude, longitude, accuracy_m, distance_m, override_by, override_reason
		FROM attendance WHERE enrollment = $1
		ORDER BY recorded_at DESC
		LIMIT $2
	`, enrollment, limit)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

// Override mutates a record's status and stamps who changed it and why.
// Coordinates, accuracy, distance and the recorded timestamp are untouched.
func (r *Repository) Override(ctx context.Context, id string, status Status, reason, actorID string) (Record, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE attendance
		SET status = $2, override_by = $3, override_reason = $4
		WHERE id = $1
		RETURNING id, session_token, enrollment, recorded_at, status, latitude, longitude, accuracy_m, distance_m, override_by, override_reason
	`, id, status, actorID, reason)
	return scanRecord(row)
}

func scanRecord(row *sql.Row) (Record, error) {
	var rec Record
	err := row.Scan(&rec.ID, &rec.SessionToken, &rec.Enrollment, &rec.RecordedAt, &rec.Status,
		&rec.Latitude, &rec.Longitude, &rec.AccuracyM, &rec.DistanceM, &rec.OverrideBy, &rec.OverrideReason)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

func collectRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.SessionToken, &rec.Enrollment, &rec.RecordedAt, &rec.Status,
			&rec.Latitude, &rec.Longitude, &rec.AccuracyM, &rec.DistanceM, &rec.OverrideBy, &rec.OverrideReason); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
