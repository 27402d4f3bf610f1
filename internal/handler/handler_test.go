package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollbook/internal/attendance"
	"rollbook/internal/roster"
	"rollbook/internal/teacher"
)

// memStore backs all three repositories in memory, mirroring the database
// behavior the handlers see in production: deleting a student purges its
// attendance entries in the same operation.
type memStore struct {
	teachers map[string]teacher.Teacher
	students []roster.Student
	days     map[string][]attendance.Entry
	shares   map[string]attendance.Share
}

func newMemStore() *memStore {
	return &memStore{
		teachers: map[string]teacher.Teacher{},
		days:     map[string][]attendance.Entry{},
		shares:   map[string]attendance.Share{},
	}
}

func (m *memStore) GetByTeacherID(_ context.Context, id string) (*teacher.Teacher, error) {
	t, ok := m.teachers[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *memStore) Create(_ context.Context, t teacher.Teacher) error {
	m.teachers[t.TeacherID] = t
	return nil
}

func (m *memStore) List(context.Context) ([]roster.Student, error) {
	return append([]roster.Student(nil), m.students...), nil
}

func (m *memStore) GetByIDs(_ context.Context, ids []string) (map[string]roster.Student, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := map[string]roster.Student{}
	for _, st := range m.students {
		if want[st.ID] {
			out[st.ID] = st
		}
	}
	return out, nil
}

func (m *memStore) CreateStudent(_ context.Context, st roster.Student) error {
	m.students = append(m.students, st)
	return nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	kept := m.students[:0]
	for _, st := range m.students {
		if st.ID != id {
			kept = append(kept, st)
		}
	}
	m.students = kept
	for date, entries := range m.days {
		keptEntries := entries[:0]
		for _, e := range entries {
			if e.StudentID != id {
				keptEntries = append(keptEntries, e)
			}
		}
		m.days[date] = keptEntries
	}
	return nil
}

func (m *memStore) GetDay(_ context.Context, date string) ([]attendance.Entry, bool, error) {
	entries, ok := m.days[date]
	return entries, ok, nil
}

func (m *memStore) SaveDay(_ context.Context, date string, entries []attendance.Entry) error {
	m.days[date] = append([]attendance.Entry(nil), entries...)
	return nil
}

func (m *memStore) ListDates(context.Context) ([]string, error) {
	dates := make([]string, 0, len(m.days))
	for d := range m.days {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

func (m *memStore) CreateShare(_ context.Context, sh attendance.Share) error {
	if _, ok := m.shares[sh.Token]; ok {
		return attendance.ErrDuplicateToken
	}
	m.shares[sh.Token] = sh
	return nil
}

func (m *memStore) GetShare(_ context.Context, token string) (*attendance.Share, error) {
	sh, ok := m.shares[token]
	if !ok {
		return nil, nil
	}
	return &sh, nil
}

// rosterRepo adapts memStore to roster.Repository (Create name clashes with
// the teacher repository method).
type rosterRepo struct{ *memStore }

func (r rosterRepo) Create(ctx context.Context, st roster.Student) error {
	return r.CreateStudent(ctx, st)
}

type env struct {
	router *gin.Engine
	store  *memStore
	token  string
}

func newEnv(t *testing.T) *env {
	gin.SetMode(gin.TestMode)

	ms := newMemStore()
	teachers := teacher.NewService(ms)
	students := roster.NewService(rosterRepo{ms})
	days := attendance.NewService(ms, students)

	_, err := teachers.EnsureSeed(context.Background(), "teacher1", "changeme")
	require.NoError(t, err)

	r := gin.New()
	h := New(Options{
		JWTIssuer:     "rollbook",
		JWTSigningKey: "test-secret",
		SessionTTL:    12 * time.Hour,
	}, teachers, students, days, zerolog.Nop())
	h.Register(r)

	e := &env{router: r, store: ms}
	e.token = e.login(t, "teacher1", "changeme")
	return e
}

func (e *env) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) login(t *testing.T, identifier, secret string) string {
	rec := e.do(http.MethodPost, "/api/login", "", gin.H{"identifier": identifier, "secret": secret})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

func (e *env) addStudent(t *testing.T, name, roll string) roster.Student {
	rec := e.do(http.MethodPost, "/api/students", e.token, gin.H{"name": name, "roll": roll})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var st roster.Student
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func decodeDay(t *testing.T, rec *httptest.ResponseRecorder) attendance.Day {
	var day attendance.Day
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &day))
	return day
}

func TestLogin(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodPost, "/api/login", "", gin.H{"identifier": "teacher1", "secret": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(http.MethodPost, "/api/login", "", gin.H{"identifier": "nobody", "secret": "changeme"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(http.MethodPost, "/api/login", "", gin.H{"identifier": "teacher1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	e := newEnv(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/students"},
		{http.MethodPost, "/api/students"},
		{http.MethodDelete, "/api/students/x"},
		{http.MethodGet, "/api/attendance/dates"},
		{http.MethodGet, "/api/attendance/2024-01-10"},
		{http.MethodPost, "/api/attendance/2024-01-10"},
		{http.MethodPost, "/api/share/2024-01-10"},
	} {
		rec := e.do(route.method, route.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", route.method, route.path)

		rec = e.do(route.method, route.path, "garbage-token", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s tampered", route.method, route.path)
	}
}

func TestStudentCRUD(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/api/students", e.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	rec = e.do(http.MethodPost, "/api/students", e.token, gin.H{"roll": "1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	a := e.addStudent(t, "Asha", "1")
	b := e.addStudent(t, "Biko", "")

	rec = e.do(http.MethodGet, "/api/students", e.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var students []roster.Student
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &students))
	require.Len(t, students, 2)
	assert.Equal(t, a.ID, students[0].ID)
	assert.Equal(t, b.ID, students[1].ID)

	rec = e.do(http.MethodDelete, "/api/students/"+a.ID, e.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	// deleting again is not an error
	rec = e.do(http.MethodDelete, "/api/students/"+a.ID, e.token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// Mirrors the save/overwrite scenario: save A present + B absent, then save
// only A absent; B's entry is gone, not merged.
func TestAttendanceSaveOverwrite(t *testing.T) {
	e := newEnv(t)
	a := e.addStudent(t, "A", "1")
	b := e.addStudent(t, "B", "2")

	rec := e.do(http.MethodGet, "/api/attendance/2024-01-10", e.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	day := decodeDay(t, rec)
	assert.Equal(t, "2024-01-10", day.Date)
	assert.Empty(t, day.Records)

	rec = e.do(http.MethodPost, "/api/attendance/2024-01-10", e.token, gin.H{
		"records": []gin.H{
			{"student": a.ID, "present": true},
			{"student": b.ID, "present": false},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	day = decodeDay(t, rec)
	require.Len(t, day.Records, 2)
	assert.Equal(t, "A", day.Records[0].Student.Name)
	assert.True(t, day.Records[0].Present)
	assert.Equal(t, "B", day.Records[1].Student.Name)
	assert.False(t, day.Records[1].Present)

	rec = e.do(http.MethodPost, "/api/attendance/2024-01-10", e.token, gin.H{
		"records": []gin.H{{"student": a.ID, "present": false}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(http.MethodGet, "/api/attendance/2024-01-10", e.token, nil)
	day = decodeDay(t, rec)
	require.Len(t, day.Records, 1)
	assert.Equal(t, a.ID, day.Records[0].Student.ID)
	assert.False(t, day.Records[0].Present)
}

func TestAttendanceValidation(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodPost, "/api/attendance/2024-01-10", e.token, gin.H{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, "/api/attendance/2024-01-10", e.token, gin.H{"records": "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, "/api/attendance/not-a-date", e.token, gin.H{"records": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodGet, "/api/attendance/not-a-date", e.token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// empty records array is a valid save
	rec = e.do(http.MethodPost, "/api/attendance/2024-01-10", e.token, gin.H{"records": []gin.H{}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteStudentPurgesAttendance(t *testing.T) {
	e := newEnv(t)
	a := e.addStudent(t, "A", "1")
	b := e.addStudent(t, "B", "2")

	for _, date := range []string{"2024-01-10", "2024-01-11"} {
		rec := e.do(http.MethodPost, "/api/attendance/"+date, e.token, gin.H{
			"records": []gin.H{
				{"student": a.ID, "present": true},
				{"student": b.ID, "present": true},
			},
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := e.do(http.MethodDelete, "/api/students/"+b.ID, e.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	for _, date := range []string{"2024-01-10", "2024-01-11"} {
		rec := e.do(http.MethodGet, "/api/attendance/"+date, e.token, nil)
		day := decodeDay(t, rec)
		require.Len(t, day.Records, 1, date)
		assert.Equal(t, a.ID, day.Records[0].Student.ID)
	}
}

func TestListDates(t *testing.T) {
	e := newEnv(t)

	rec := e.do(http.MethodGet, "/api/attendance/dates", e.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	for _, d := range []string{"2024-01-10", "2024-02-01", "2023-12-31"} {
		rec := e.do(http.MethodPost, "/api/attendance/"+d, e.token, gin.H{"records": []gin.H{}})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec = e.do(http.MethodGet, "/api/attendance/dates", e.token, nil)
	var dates []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dates))
	assert.Equal(t, []string{"2024-02-01", "2024-01-10", "2023-12-31"}, dates)
}

func TestShareFlow(t *testing.T) {
	e := newEnv(t)
	a := e.addStudent(t, "A", "1")

	// token issued before any record exists
	rec := e.do(http.MethodPost, "/api/share/2024-01-10", e.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var share struct {
		Token string `json:"token"`
		URL   string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &share))
	assert.Equal(t, "/share/"+share.Token, share.URL)

	// public page, no auth header; empty roster before any save
	rec = e.do(http.MethodGet, share.URL, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Attendance 2024-01-10")
	assert.NotContains(t, rec.Body.String(), "Present")

	rec = e.do(http.MethodPost, "/api/attendance/2024-01-10", e.token, gin.H{
		"records": []gin.H{{"student": a.ID, "present": false}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// the page is a live view of the current record
	rec = e.do(http.MethodGet, share.URL, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "A")
	assert.Contains(t, rec.Body.String(), "Absent")

	rec = e.do(http.MethodGet, "/share/unknowntoken", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSharePageShowsUnknownForDeletedStudent(t *testing.T) {
	e := newEnv(t)
	a := e.addStudent(t, "A", "1")

	rec := e.do(http.MethodPost, "/api/attendance/2024-01-10", e.token, gin.H{
		"records": []gin.H{{"student": a.ID, "present": true}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	// record keeps a dangling reference after the delete; share page still
	// renders, with the placeholder name
	rec = e.do(http.MethodDelete, "/api/students/"+a.ID, e.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// re-save an entry for the now-deleted id: stored as-is
	rec = e.do(http.MethodPost, "/api/attendance/2024-01-10", e.token, gin.H{
		"records": []gin.H{{"student": a.ID, "present": true}},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	shareRec := e.do(http.MethodPost, "/api/share/2024-01-10", e.token, nil)
	var share struct {
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(shareRec.Body.Bytes(), &share))

	rec = e.do(http.MethodGet, share.URL, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unknown")
}

func TestExpiredTokenRejected(t *testing.T) {
	e := newEnv(t)

	ms := e.store
	teachers := teacher.NewService(ms)
	students := roster.NewService(rosterRepo{ms})
	days := attendance.NewService(ms, students)

	r := gin.New()
	h := New(Options{
		JWTIssuer:     "rollbook",
		JWTSigningKey: "test-secret",
		SessionTTL:    -time.Minute,
	}, teachers, students, days, zerolog.Nop())
	h.Register(r)

	expired := (&env{router: r}).login(t, "teacher1", "changeme")

	rec := e.do(http.MethodGet, "/api/students", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
