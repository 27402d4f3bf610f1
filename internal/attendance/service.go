package attendance

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"
)

const (
	tokenAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	tokenLength   = 10
	tokenRetries  = 5

	dateLayout = "2006-01-02"
)

// Service manages per-date attendance records and share tokens.
type Service struct {
	repo     Repository
	students StudentResolver
}

// NewService creates a service backed by a repository and the student
// directory used for display resolution.
func NewService(repo Repository, students StudentResolver) *Service {
	return &Service{repo: repo, students: students}
}

// ValidateDate checks the fixed YYYY-MM-DD date key form.
func ValidateDate(date string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return ErrBadDate
	}
	return nil
}

// GetByDate returns the date's resolved record set. A date with no saved
// record yields empty records, not an error.
func (s *Service) GetByDate(ctx context.Context, date string) (Day, error) {
	if err := ValidateDate(date); err != nil {
		return Day{}, err
	}

	entries, _, err := s.repo.GetDay(ctx, date)
	if err != nil {
		return Day{}, err
	}
	return s.resolve(ctx, date, entries)
}

// ListDates returns all saved date keys, descending. Lexicographic order of
// the fixed key form equals chronological order.
func (s *Service) ListDates(ctx context.Context) ([]string, error) {
	dates, err := s.repo.ListDates(ctx)
	if err != nil {
		return nil, err
	}
	if dates == nil {
		dates = []string{}
	}
	return dates, nil
}

// Save replaces the date's entry list wholesale with entries and returns the
// resulting resolved record. Entries for students omitted from the submitted
// list are dropped; the client always submits the full roster state. Student
// ids are stored as-is, with no existence check.
func (s *Service) Save(ctx context.Context, date string, entries []Entry) (Day, error) {
	if err := ValidateDate(date); err != nil {
		return Day{}, err
	}
	if entries == nil {
		entries = []Entry{}
	}
	if err := s.repo.SaveDay(ctx, date, entries); err != nil {
		return Day{}, err
	}
	return s.resolve(ctx, date, entries)
}

// CreateShare issues a share token for a date, whether or not the date has a
// saved record yet. Collisions with existing tokens are retried with a fresh
// token; the generation space makes more than one attempt very unlikely.
func (s *Service) CreateShare(ctx context.Context, date string) (Share, error) {
	if err := ValidateDate(date); err != nil {
		return Share{}, err
	}

	for i := 0; i < tokenRetries; i++ {
		sh := Share{
			Token:     newToken(),
			Date:      date,
			CreatedAt: time.Now().UTC(),
		}
		err := s.repo.CreateShare(ctx, sh)
		if err == nil {
			return sh, nil
		}
		if !errors.Is(err, ErrDuplicateToken) {
			return Share{}, err
		}
	}
	return Share{}, fmt.Errorf("share token collision persisted after %d attempts", tokenRetries)
}

// ResolveShare resolves a token to its date's current record set. This is a
// live view: saves performed after the token was created are reflected.
func (s *Service) ResolveShare(ctx context.Context, token string) (Day, error) {
	sh, err := s.repo.GetShare(ctx, token)
	if err != nil {
		return Day{}, err
	}
	if sh == nil {
		return Day{}, ErrShareNotFound
	}
	return s.GetByDate(ctx, sh.Date)
}

func (s *Service) resolve(ctx context.Context, date string, entries []Entry) (Day, error) {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.StudentID)
	}
	students, err := s.students.Resolve(ctx, ids)
	if err != nil {
		return Day{}, err
	}

	day := Day{Date: date, Records: make([]Record, 0, len(entries))}
	for _, e := range entries {
		ref := StudentRef{ID: e.StudentID, Name: "Unknown"}
		if st, ok := students[e.StudentID]; ok {
			ref.Name = st.Name
			ref.Roll = st.Roll
		}
		day.Records = append(day.Records, Record{Student: ref, Present: e.Present})
	}
	return day, nil
}

func newToken() string {
	buf := make([]byte, tokenLength)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf)
}
