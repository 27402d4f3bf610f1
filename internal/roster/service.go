package roster

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Service exposes the student directory operations.
type Service struct {
	repo Repository
}

// NewService creates a service backed by a repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns all students in insertion order.
func (s *Service) List(ctx context.Context) ([]Student, error) {
	return s.repo.List(ctx)
}

// Resolve returns the students for the given ids, keyed by id. Ids with no
// matching student are simply absent from the map.
func (s *Service) Resolve(ctx context.Context, ids []string) (map[string]Student, error) {
	if len(ids) == 0 {
		return map[string]Student{}, nil
	}
	return s.repo.GetByIDs(ctx, ids)
}

// Create adds a student with a fresh identifier. Name must be non-empty.
func (s *Service) Create(ctx context.Context, name, roll string) (Student, error) {
	if strings.TrimSpace(name) == "" {
		return Student{}, ErrNameRequired
	}
	st := Student{
		ID:        uuid.NewString(),
		Name:      name,
		Roll:      roll,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, st); err != nil {
		return Student{}, err
	}
	return st, nil
}

// Delete removes a student and purges its entries from every attendance day.
// Deleting an unknown id succeeds silently.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
