package teacher

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresRepository persists teachers in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByTeacherID(ctx context.Context, teacherID string) (*Teacher, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, teacher_id, password_hash, created_at
		FROM teachers WHERE teacher_id = $1
	`, teacherID)
	var t Teacher
	var hash string
	if err := row.Scan(&t.ID, &t.TeacherID, &hash, &t.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	t.PasswordHash = []byte(hash)
	return &t, nil
}

func (r *PostgresRepository) Create(ctx context.Context, t Teacher) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO teachers (id, teacher_id, password_hash, created_at)
		VALUES ($1, $2, $3, $4)
	`, t.ID, t.TeacherID, string(t.PasswordHash), t.CreatedAt)
	return err
}
