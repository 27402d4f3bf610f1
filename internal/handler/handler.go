package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"rollbook/internal/attendance"
	"rollbook/internal/auth"
	"rollbook/internal/roster"
	"rollbook/internal/teacher"
)

// Options carries the handler's token and link settings.
type Options struct {
	JWTIssuer     string
	JWTSigningKey string
	SessionTTL    time.Duration
	ShareBaseURL  string
}

// Handler serves the REST surface and the public share page.
type Handler struct {
	opts     Options
	teachers *teacher.Service
	roster   *roster.Service
	days     *attendance.Service
	log      zerolog.Logger
}

// New wires the handler to its services.
func New(opts Options, teachers *teacher.Service, students *roster.Service, days *attendance.Service, log zerolog.Logger) *Handler {
	return &Handler{
		opts:     opts,
		teachers: teachers,
		roster:   students,
		days:     days,
		log:      log,
	}
}

// Register mounts all routes. Everything under /api except /api/login
// requires a bearer session token; the share page is public.
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/api/login", h.Login)
	r.GET("/share/:token", h.SharePage)

	api := r.Group("/api", auth.TeacherAuth(h.opts.JWTSigningKey, h.opts.JWTIssuer))
	api.GET("/students", h.ListStudents)
	api.POST("/students", h.CreateStudent)
	api.DELETE("/students/:id", h.DeleteStudent)
	api.GET("/attendance/dates", h.ListDates)
	api.GET("/attendance/:date", h.GetAttendance)
	api.POST("/attendance/:date", h.SaveAttendance)
	api.POST("/share/:date", h.CreateShare)
}

// ---------- Auth ----------

type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Secret     string `json:"secret" binding:"required"`
}

// Login checks the credential pair and issues a session token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "identifier and secret required"})
		return
	}

	id, err := h.teachers.Login(c.Request.Context(), req.Identifier, req.Secret)
	if err != nil {
		if errors.Is(err, teacher.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.serverError(c, err)
		return
	}

	sess, err := auth.Issue(id, h.opts.JWTIssuer, h.opts.JWTSigningKey, h.opts.SessionTTL)
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": sess.Token})
}

// ---------- Students ----------

func (h *Handler) ListStudents(c *gin.Context) {
	students, err := h.roster.List(c.Request.Context())
	if err != nil {
		h.serverError(c, err)
		return
	}
	if students == nil {
		students = []roster.Student{}
	}
	c.JSON(http.StatusOK, students)
}

type createStudentRequest struct {
	Name string `json:"name"`
	Roll string `json:"roll"`
}

func (h *Handler) CreateStudent(c *gin.Context) {
	var req createStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	st, err := h.roster.Create(c.Request.Context(), req.Name, req.Roll)
	if err != nil {
		if errors.Is(err, roster.ErrNameRequired) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
			return
		}
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

// DeleteStudent removes a student and its attendance entries. Unknown ids
// succeed silently.
func (h *Handler) DeleteStudent(c *gin.Context) {
	if err := h.roster.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ---------- Attendance ----------

func (h *Handler) ListDates(c *gin.Context) {
	dates, err := h.days.ListDates(c.Request.Context())
	if err != nil {
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, dates)
}

func (h *Handler) GetAttendance(c *gin.Context) {
	day, err := h.days.GetByDate(c.Request.Context(), c.Param("date"))
	if err != nil {
		if errors.Is(err, attendance.ErrBadDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}

type recordPayload struct {
	Student string `json:"student"`
	Present bool   `json:"present"`
}

type saveAttendanceRequest struct {
	// pointer so a missing or non-array field is told apart from []
	Records *[]recordPayload `json:"records"`
}

// SaveAttendance replaces the date's record list wholesale with the
// submitted one.
func (h *Handler) SaveAttendance(c *gin.Context) {
	var req saveAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Records == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "records array required"})
		return
	}

	entries := make([]attendance.Entry, 0, len(*req.Records))
	for _, r := range *req.Records {
		entries = append(entries, attendance.Entry{StudentID: r.Student, Present: r.Present})
	}

	day, err := h.days.Save(c.Request.Context(), c.Param("date"), entries)
	if err != nil {
		if errors.Is(err, attendance.ErrBadDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}

// ---------- Share ----------

func (h *Handler) CreateShare(c *gin.Context) {
	sh, err := h.days.CreateShare(c.Request.Context(), c.Param("date"))
	if err != nil {
		if errors.Is(err, attendance.ErrBadDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.serverError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token": sh.Token,
		"url":   h.opts.ShareBaseURL + "/share/" + sh.Token,
	})
}

// SharePage renders the public read-only view of a shared date. The page
// always shows the date's current records; a save after the token was
// issued shows up on the next load.
func (h *Handler) SharePage(c *gin.Context) {
	day, err := h.days.ResolveShare(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, attendance.ErrShareNotFound) {
			c.Data(http.StatusNotFound, "text/html; charset=utf-8", []byte("Not found"))
			return
		}
		h.serverError(c, err)
		return
	}

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := sharePageTmpl.Execute(c.Writer, day); err != nil {
		h.log.Error().Err(err).Msg("share page render failed")
	}
}

func (h *Handler) serverError(c *gin.Context, err error) {
	h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
