package roster

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PostgresRepository persists students in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// List returns all students ordered by insertion.
func (r *PostgresRepository) List(ctx context.Context) ([]Student, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, roll, created_at
		FROM students
		ORDER BY seq
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []Student
	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.Name, &st.Roll, &st.CreatedAt); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}

// GetByIDs returns the students matching ids, keyed by id.
func (r *PostgresRepository) GetByIDs(ctx context.Context, ids []string) (map[string]Student, error) {
	out := make(map[string]Student, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT id, name, roll, created_at FROM students WHERE id IN (` +
		strings.Join(placeholders, ",") + `)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var st Student
		if err := rows.Scan(&st.ID, &st.Name, &st.Roll, &st.CreatedAt); err != nil {
			return nil, err
		}
		out[st.ID] = st
	}
	return out, rows.Err()
}

// Create inserts a new student.
func (r *PostgresRepository) Create(ctx context.Context, st Student) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO students (id, name, roll, created_at)
		VALUES ($1, $2, $3, $4)
	`, st.ID, st.Name, st.Roll, st.CreatedAt)
	return err
}

// Delete removes the student row and every attendance entry referencing it,
// in one transaction. An absent id deletes nothing and is not an error.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_entries WHERE student_id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}
