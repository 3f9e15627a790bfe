package session

import (
	"context"
	"database/sql"
	"errors"
)

// Store abstracts session persistence so the service can run against
// Postgres in production and the in-memory store in dev/tests.
type Store interface {
	Insert(ctx context.Context, s Session) error
	Get(ctx context.Context, token string) (Session, error)
	List(ctx context.Context, teacherID string, limit int) ([]Session, error)
}

// Repository persists sessions in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new session row.
func (r *Repository) Insert(ctx context.Context, s Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (token, teacher_id, subject, room, start_time, end_time, latitude, longitude, radius_m, late_after_min, year, batch, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, s.Token, s.TeacherID, s.Subject, s.Room, s.Start, s.End, s.Latitude, s.Longitude, s.RadiusM, s.LateAfterMin, s.Year, s.Batch, s.CreatedAt)
	return err
}

// Get returns a single session by token.
func (r *Repository) Get(ctx context.Context, token string) (Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token, teacher_id, subject, room, start_time, end_time, latitude, longitude, radius_m, late_after_min, year, batch, created_at
		FROM sessions WHERE token = $1
	`, token)
	var s Session
	err := row.Scan(&s.Token, &s.TeacherID, &s.Subject, &s.Room, &s.Start, &s.End, &s.Latitude, &s.Longitude, &s.RadiusM, &s.LateAfterMin, &s.Year, &s.Batch, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return s, nil
}

// List returns recent sessions, optionally filtered by teacher.
func (r *Repository) List(ctx context.Context, teacherID string, limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT token, teacher_id, subject, room, start_time, end_time, latitude, longitude, radius_m, late_after_min, year, batch, created_at
		FROM sessions`
	args := []any{}
	if teacherID != "" {
		query += ` WHERE teacher_id = $1 ORDER BY start_time DESC LIMIT $2`
		args = append(args, teacherID, limit)
	} else {
		query += ` ORDER BY start_time DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.Token, &s.TeacherID, &s.Subject, &s.Room, &s.Start, &s.End, &s.Latitude, &s.Longitude, &s.RadiusM, &s.LateAfterMin, &s.Year, &s.Batch, &s.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
