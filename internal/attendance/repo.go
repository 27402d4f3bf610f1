package attendance

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresRepository persists attendance days, entries and share tokens in
// Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetDay returns the stored entries for a date in saved order.
func (r *PostgresRepository) GetDay(ctx context.Context, date string) ([]Entry, bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM attendance_days WHERE date_key = $1)`, date,
	).Scan(&exists)
	if err != nil {
		return nil, false, err
	}
	if !exists {
		return nil, false, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT student_id, present
		FROM attendance_entries
		WHERE day_date = $1
		ORDER BY position
	`, date)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.StudentID, &e.Present); err != nil {
			return nil, false, err
		}
		entries = append(entries, e)
	}
	return entries, true, rows.Err()
}

// SaveDay upserts the day row and replaces its entry list wholesale. The
// delete+insert pair is one transaction, so concurrent saves to the same
// date resolve to whichever write commits last.
func (r *PostgresRepository) SaveDay(ctx context.Context, date string, entries []Entry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_days (date_key)
		VALUES ($1)
		ON CONFLICT (date_key) DO UPDATE SET updated_at = NOW()
	`, date); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM attendance_entries WHERE day_date = $1`, date,
	); err != nil {
		return err
	}
	for i, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO attendance_entries (day_date, position, student_id, present)
			VALUES ($1, $2, $3, $4)
		`, date, i, e.StudentID, e.Present); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListDates returns all saved date keys, most recent first.
func (r *PostgresRepository) ListDates(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT date_key FROM attendance_days ORDER BY date_key DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// CreateShare stores a new share token.
func (r *PostgresRepository) CreateShare(ctx context.Context, sh Share) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO share_tokens (token, date_key, created_at)
		VALUES ($1, $2, $3)
	`, sh.Token, sh.Date, sh.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateToken
		}
		return err
	}
	return nil
}

// GetShare returns the share for a token, or nil when unknown.
func (r *PostgresRepository) GetShare(ctx context.Context, token string) (*Share, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT token, date_key, created_at
		FROM share_tokens WHERE token = $1
	`, token)
	var sh Share
	if err := row.Scan(&sh.Token, &sh.Date, &sh.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &sh, nil
}
