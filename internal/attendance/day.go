package attendance

import (
	"context"
	"errors"
	"time"

	"rollbook/internal/roster"
)

var (
	// ErrBadDate rejects date keys not in YYYY-MM-DD form.
	ErrBadDate = errors.New("invalid date, expected YYYY-MM-DD")
	// ErrShareNotFound is returned when resolving an unknown share token.
	ErrShareNotFound = errors.New("share token not found")
	// ErrDuplicateToken signals a share token collision; callers retry with
	// a fresh token.
	ErrDuplicateToken = errors.New("share token already exists")
)

// Entry is one (student reference, presence) pair as stored. The student id
// is kept as submitted; it is not required to reference a live student.
type Entry struct {
	StudentID string
	Present   bool
}

// StudentRef is a resolved student for display. Deleted or unknown students
// resolve to the "Unknown" placeholder with the stored id.
type StudentRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Roll string `json:"roll,omitempty"`
}

// Record is one resolved entry.
type Record struct {
	Student StudentRef `json:"student"`
	Present bool       `json:"present"`
}

// Day is a date's resolved record set. Records is empty, never nil, for
// dates with no saved record.
type Day struct {
	Date    string   `json:"date"`
	Records []Record `json:"records"`
}

// Share grants unauthenticated live read access to one date's record.
type Share struct {
	Token     string    `json:"token"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// Repository persists day records and share tokens.
type Repository interface {
	// GetDay returns the stored entries for a date and whether a record
	// exists at all.
	GetDay(ctx context.Context, date string) ([]Entry, bool, error)
	// SaveDay replaces the date's entry list wholesale, creating the day
	// record when absent.
	SaveDay(ctx context.Context, date string, entries []Entry) error
	// ListDates returns all saved date keys, most recent first.
	ListDates(ctx context.Context) ([]string, error)
	// CreateShare stores a token; returns ErrDuplicateToken on collision.
	CreateShare(ctx context.Context, sh Share) error
	// GetShare returns the share for a token, or nil when unknown.
	GetShare(ctx context.Context, token string) (*Share, error)
}

// StudentResolver looks up students for display. Satisfied by
// *roster.Service.
type StudentResolver interface {
	Resolve(ctx context.Context, ids []string) (map[string]roster.Student, error)
}
