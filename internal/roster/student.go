package roster

import (
	"context"
	"errors"
	"time"
)

// ErrNameRequired rejects student creation with an empty name.
var ErrNameRequired = errors.New("name required")

// Student is one roster member. Roll is a free-form display string with no
// uniqueness constraint.
type Student struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Roll      string    `json:"roll,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository persists students. Delete removes the student and every
// attendance entry referencing it in the same operation.
type Repository interface {
	List(ctx context.Context) ([]Student, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]Student, error)
	Create(ctx context.Context, st Student) error
	Delete(ctx context.Context, id string) error
}
