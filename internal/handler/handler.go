package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campusattend/internal/attendance"
	"campusattend/internal/auth"
	"campusattend/internal/biometric"
	"campusattend/internal/geofence"
	"campusattend/internal/model"
)

// Handler exposes the attendance engine over HTTP.
type Handler struct {
	engine *attendance.Engine
	log    *zap.Logger
}

// New creates a handler.
func New(engine *attendance.Engine, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{engine: engine, log: log}
}

// Register mounts the /v1 routes behind authn. Extra middleware (rate limiting)
// runs after authentication so it can key on the caller.
func (h *Handler) Register(r gin.IRouter, authn gin.HandlerFunc, extra ...gin.HandlerFunc) {
	v1 := r.Group("/v1", append([]gin.HandlerFunc{authn}, extra...)...)
	student := auth.RequireRole(model.RoleStudent)
	teacher := auth.RequireRole(model.RoleTeacher)

	att := v1.Group("/attendance")
	att.POST("/mark", student, h.markAttendance)
	att.GET("/history", student, h.history)
	att.GET("/pending", student, h.pending)
	att.GET("/summary", student, h.summary)
	att.GET("/classes", student, h.studentClasses)
	att.POST("/update", teacher, h.updateAttendance)

	classes := v1.Group("/classes", teacher)
	classes.GET("", h.teacherClasses)
	classes.POST("", h.createClass)
	classes.GET("/analytics", h.analytics)
	classes.GET("/months", h.months)
	classes.GET("/matrix", h.matrix)
	classes.POST("/:id/cancel", h.cancelClass)
	classes.GET("/:id/attendance", h.roster)
}

type markBody struct {
	ClassID        string    `json:"class_id" binding:"required"`
	FaceDescriptor []float64 `json:"face_descriptor" binding:"required,len=128"`
	Latitude       *float64  `json:"latitude" binding:"required,min=-90,max=90"`
	Longitude      *float64  `json:"longitude" binding:"required,min=-180,max=180"`
}

func (h *Handler) markAttendance(c *gin.Context) {
	var body markBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	d, err := h.engine.MarkAttendance(c.Request.Context(), attendance.MarkAttendanceRequest{
		UserID:     claims.UserID(),
		ClassID:    body.ClassID,
		Descriptor: biometric.Descriptor(body.FaceDescriptor),
		Location:   geofence.Point{Latitude: *body.Latitude, Longitude: *body.Longitude},
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.decide(c, d, http.StatusCreated)
}

type updateBody struct {
	ClassID   string `json:"class_id" binding:"required"`
	StudentID string `json:"student_id" binding:"required"`
	Present   *bool  `json:"present" binding:"required"`
	Reason    string `json:"reason" binding:"max=500"`
}

func (h *Handler) updateAttendance(c *gin.Context) {
	var body updateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	d, err := h.engine.UpdateAttendance(c.Request.Context(), attendance.UpdateAttendanceRequest{
		TeacherID: claims.UserID(),
		ClassID:   body.ClassID,
		StudentID: body.StudentID,
		Present:   *body.Present,
		Reason:    body.Reason,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.decide(c, d, http.StatusOK)
}

type cancelBody struct {
	Reason string `json:"reason" binding:"required,min=5,max=500"`
}

func (h *Handler) cancelClass(c *gin.Context) {
	var body cancelBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	d, err := h.engine.CancelClass(c.Request.Context(), attendance.CancelClassRequest{
		TeacherID: claims.UserID(),
		ClassID:   c.Param("id"),
		Reason:    body.Reason,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	h.decide(c, d, http.StatusOK)
}

type createClassBody struct {
	SubjectRef             string   `json:"subject_ref" binding:"required"`
	Course                 string   `json:"course" binding:"required"`
	Semester               int      `json:"semester" binding:"required,min=1,max=8"`
	Date                   string   `json:"date" binding:"required"`
	StartTime              string   `json:"start_time" binding:"required"`
	EndTime                string   `json:"end_time" binding:"required"`
	Latitude               *float64 `json:"latitude" binding:"required"`
	Longitude              *float64 `json:"longitude" binding:"required"`
	AttendanceRadiusMeters *int     `json:"attendance_radius"`
	LateGraceMinutes       *int     `json:"late_grace_minutes"`
	EndGraceMinutes        *int     `json:"end_grace_minutes"`
}

func (h *Handler) createClass(c *gin.Context) {
	var body createClassBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	class, err := h.engine.CreateClass(c.Request.Context(), attendance.CreateClassRequest{
		TeacherID:              claims.UserID(),
		SubjectRef:             body.SubjectRef,
		Course:                 body.Course,
		Semester:               body.Semester,
		Date:                   body.Date,
		StartTime:              body.StartTime,
		EndTime:                body.EndTime,
		Location:               geofence.Point{Latitude: *body.Latitude, Longitude: *body.Longitude},
		AttendanceRadiusMeters: body.AttendanceRadiusMeters,
		LateGraceMinutes:       body.LateGraceMinutes,
		EndGraceMinutes:        body.EndGraceMinutes,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"class": class})
}

func (h *Handler) roster(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	entries, err := h.engine.ClassRoster(c.Request.Context(), claims.UserID(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"class_id": c.Param("id"), "students": entries})
}

func (h *Handler) history(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	entries, err := h.engine.StudentHistory(c.Request.Context(), claims.UserID())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func (h *Handler) pending(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	classes, err := h.engine.PendingClasses(c.Request.Context(), claims.UserID())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes})
}

func (h *Handler) summary(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	sum, err := h.engine.StudentSummary(c.Request.Context(), claims.UserID())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) studentClasses(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	classes, err := h.engine.StudentClasses(c.Request.Context(), claims.UserID())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes})
}

func (h *Handler) teacherClasses(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	classes, err := h.engine.TeacherClasses(c.Request.Context(), claims.UserID())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes})
}

func (h *Handler) analytics(c *gin.Context) {
	claims, _ := auth.ClaimsFrom(c)
	subjects, err := h.engine.TeacherAnalytics(c.Request.Context(), claims.UserID())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subjects": subjects})
}

type cohortQuery struct {
	Course   string `form:"course" binding:"required"`
	Semester int    `form:"semester" binding:"required,min=1,max=8"`
	Subject  string `form:"subject" binding:"required"`
}

func (h *Handler) months(c *gin.Context) {
	var q cohortQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	months, err := h.engine.AttendanceMonths(c.Request.Context(), claims.UserID(), q.Course, q.Semester, q.Subject)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"months": months})
}

// matrixQuery omits month for the whole-term grid.
type matrixQuery struct {
	cohortQuery
	Month int `form:"month" binding:"omitempty,min=1,max=12"`
	Year  int `form:"year" binding:"required_with=Month,max=9999"`
}

func (h *Handler) matrix(c *gin.Context) {
	var q matrixQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	m, err := h.engine.TeacherAttendanceMatrix(c.Request.Context(), attendance.MatrixQuery{
		TeacherID: claims.UserID(),
		Course:    q.Course,
		Semester:  q.Semester,
		Subject:   q.Subject,
		Month:     time.Month(q.Month),
		Year:      q.Year,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

// decide writes a Decision, choosing the status code from its reason.
func (h *Handler) decide(c *gin.Context, d attendance.Decision, okStatus int) {
	if d.Accepted {
		c.JSON(okStatus, d)
		return
	}
	c.JSON(StatusFor(d.Reason), d)
}

// StatusFor maps a rejection reason to its HTTP status.
func StatusFor(r attendance.Reason) int {
	switch r {
	case attendance.ReasonUnauthorized, attendance.ReasonFaceNotRecognized:
		return http.StatusUnauthorized
	case attendance.ReasonNotFound:
		return http.StatusNotFound
	case attendance.ReasonForbidden, attendance.ReasonIneligibleCourse, attendance.ReasonNotEnrolled,
		attendance.ReasonOutOfRange, attendance.ReasonIdentityMismatch:
		return http.StatusForbidden
	case attendance.ReasonCancelled, attendance.ReasonAlreadyMarked, attendance.ReasonInvalidState:
		return http.StatusConflict
	case attendance.ReasonRejectedEarly, attendance.ReasonRejectedClosed:
		return http.StatusUnprocessableEntity
	}
	return http.StatusBadRequest
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, attendance.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, attendance.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, attendance.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	default:
		h.log.Error("request failed", zap.String("route", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
