package audit

import (
	"context"
	"database/sql"
)

// Repository persists audit entries in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Append inserts one audit row.
func (r *Repository) Append(ctx context.Context, e Entry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_logs (action, details, actor_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, e.Action, e.Details, e.ActorID, e.CreatedAt)
	return err
}

// List returns recent entries, newest first, optionally filtered by action.
func (r *Repository) List(ctx context.Context, action string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, action, details, actor_id, created_at FROM audit_logs`
	args := []any{}
	if action != "" {
		query += ` WHERE action = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, action, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Action, &e.Details, &e.ActorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
