package teacher

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidCredentials is returned for unknown identifiers and password
// mismatches alike; callers cannot tell the two apart.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Teacher is the single seeded account that owns the roster.
type Teacher struct {
	ID           string
	TeacherID    string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Repository persists teacher rows.
type Repository interface {
	GetByTeacherID(ctx context.Context, teacherID string) (*Teacher, error)
	Create(ctx context.Context, t Teacher) error
}
