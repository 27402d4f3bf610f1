package teacher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Service verifies the configured credential pair against the stored hash.
type Service struct {
	repo Repository
}

// NewService creates a service backed by a repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// EnsureSeed creates the teacher row if it does not exist yet. Teachers are
// never created through the API. Returns true when a row was seeded.
func (s *Service) EnsureSeed(ctx context.Context, teacherID, password string) (bool, error) {
	existing, err := s.repo.GetByTeacherID(ctx, teacherID)
	if err != nil {
		return false, fmt.Errorf("seed lookup: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return false, err
	}
	t := Teacher{
		ID:           uuid.NewString(),
		TeacherID:    teacherID,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return false, fmt.Errorf("seed teacher: %w", err)
	}
	return true, nil
}

// Login compares the submitted secret against the stored bcrypt hash and
// returns the matched teacher identifier.
func (s *Service) Login(ctx context.Context, teacherID, secret string) (string, error) {
	t, err := s.repo.GetByTeacherID(ctx, teacherID)
	if err != nil {
		return "", err
	}
	if t == nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(t.PasswordHash, []byte(secret)); err != nil {
		return "", ErrInvalidCredentials
	}
	return t.TeacherID, nil
}
