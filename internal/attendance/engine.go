package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campusattend/internal/biometric"
	"campusattend/internal/geofence"
	"campusattend/internal/metrics"
	"campusattend/internal/model"
	"campusattend/internal/queue"
	"campusattend/internal/schedule"
)

// Operation names used in logs and metrics.
const (
	opMark   = "mark"
	opUpdate = "update"
	opCancel = "cancel"
)

// Config carries the engine tunables.
type Config struct {
	MatchThreshold          float64
	DefaultRadiusMeters     int
	LateGraceMinutes        int
	EndGraceMinutes         int
	MinAttendancePercentage float64
	// Location is where class dates and wall-clock times are interpreted.
	Location *time.Location
}

// DefaultConfig returns the campus defaults.
func DefaultConfig() Config {
	return Config{
		MatchThreshold:          biometric.DefaultThreshold,
		DefaultRadiusMeters:     model.DefaultRadiusMeters,
		LateGraceMinutes:        model.DefaultLateGrace,
		EndGraceMinutes:         model.DefaultEndGrace,
		MinAttendancePercentage: 75,
		Location:                time.Local,
	}
}

// EventPublisher receives domain events; queue.Queue satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, msg queue.Message) error
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithEvents sets where domain events are published.
func WithEvents(p EventPublisher) Option {
	return func(e *Engine) { e.events = p }
}

// Engine decides attendance marks, teacher corrections and class cancellations.
// It keeps no per-request state; concurrency safety comes from the store.
type Engine struct {
	store   Store
	cfg     Config
	matcher biometric.Matcher
	window  schedule.Evaluator
	log     *zap.Logger
	events  EventPublisher
	now     func() time.Time
}

// NewEngine creates an engine backed by store.
func NewEngine(store Store, cfg Config, opts ...Option) *Engine {
	if cfg.DefaultRadiusMeters <= 0 {
		cfg.DefaultRadiusMeters = model.DefaultRadiusMeters
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	e := &Engine{
		store:   store,
		cfg:     cfg,
		matcher: biometric.NewMatcher(cfg.MatchThreshold),
		window:  schedule.NewEvaluator(cfg.Location),
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MarkAttendance runs the self-marking checks in order: identity, class, eligibility,
// time window, geofence, duplicate, and finally the biometric scan.
func (e *Engine) MarkAttendance(ctx context.Context, req MarkAttendanceRequest) (Decision, error) {
	if err := req.Validate(); err != nil {
		return Decision{}, err
	}
	d, err := e.markAttendance(ctx, req)
	if err != nil {
		e.log.Error("mark attendance failed",
			zap.String("user_id", req.UserID), zap.String("class_id", req.ClassID), zap.Error(err))
		return Decision{}, err
	}
	e.observe(opMark, d, zap.String("user_id", req.UserID), zap.String("class_id", req.ClassID))
	return d, nil
}

func (e *Engine) markAttendance(ctx context.Context, req MarkAttendanceRequest) (Decision, error) {
	user, err := e.store.FindUser(ctx, req.UserID)
	if err != nil {
		return Decision{}, fmt.Errorf("find user %s: %w", req.UserID, err)
	}
	if user == nil || !user.IsStudent() {
		return reject(ReasonUnauthorized), nil
	}

	class, err := e.store.FindClass(ctx, req.ClassID)
	if err != nil {
		return Decision{}, fmt.Errorf("find class %s: %w", req.ClassID, err)
	}
	if class == nil {
		return reject(ReasonNotFound), nil
	}
	if class.Status == model.ClassCancelled {
		return reject(ReasonCancelled), nil
	}

	if !user.InCohort(class.Course, class.Semester) {
		return reject(ReasonIneligibleCourse), nil
	}
	if !user.EnrolledBy(class.Date) {
		return reject(ReasonNotEnrolled), nil
	}

	now := e.now()
	win, err := e.window.Evaluate(*class, now)
	if err != nil {
		return Decision{}, fmt.Errorf("evaluate window: %w", err)
	}
	switch win.Verdict {
	case schedule.VerdictEarly:
		return reject(ReasonRejectedEarly), nil
	case schedule.VerdictClosed:
		return reject(ReasonRejectedClosed), nil
	case schedule.VerdictCancelled:
		return reject(ReasonCancelled), nil
	}

	radius := float64(class.AttendanceRadiusMeters)
	if radius <= 0 {
		radius = float64(e.cfg.DefaultRadiusMeters)
	}
	distance := geofence.DistanceMeters(req.Location, class.Location)
	if !geofence.WithinRadius(req.Location, class.Location, radius) {
		d := rejectf(ReasonOutOfRange, "You are %.1fm away; must be within %.0fm", distance, radius)
		d.DistanceMeters = distance
		d.RadiusMeters = radius
		return d, nil
	}

	existing, err := e.store.FindRecord(ctx, user.ID, class.ID)
	if err != nil {
		return Decision{}, fmt.Errorf("find record: %w", err)
	}
	if existing != nil {
		return reject(ReasonAlreadyMarked), nil
	}

	pool, err := e.store.ListActiveStudents(ctx, class.Course, class.Semester)
	if err != nil {
		return Decision{}, fmt.Errorf("list candidate pool: %w", err)
	}
	match, ok := e.matcher.FindBestMatch(req.Descriptor, candidates(pool))
	if !ok {
		return reject(ReasonFaceNotRecognized), nil
	}
	if match.ID != user.ID {
		metrics.IdentityMismatch()
		e.log.Warn("face matched a different student",
			zap.String("claimed_user_id", user.ID),
			zap.String("matched_user_id", match.ID),
			zap.String("class_id", class.ID),
			zap.Float64("distance", match.Distance))
		return reject(ReasonIdentityMismatch), nil
	}

	status := model.StatusPresent
	msg := "Attendance marked successfully"
	if win.Verdict == schedule.VerdictLate {
		status = model.StatusLate
		msg = "Attendance marked as late"
	}
	score := match.Distance
	loc := req.Location
	rec := model.AttendanceRecord{
		ID:         uuid.NewString(),
		StudentID:  user.ID,
		ClassID:    class.ID,
		Status:     status,
		MarkedAt:   now,
		MarkedBy:   model.SelfMarked(),
		Location:   &loc,
		MatchScore: &score,
	}
	if err := e.store.InsertRecord(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateRecord) {
			return reject(ReasonAlreadyMarked), nil
		}
		return Decision{}, fmt.Errorf("insert record: %w", err)
	}
	metrics.ObserveMatchDistance(score)

	if class.Status == model.ClassScheduled {
		if _, err := e.store.StartClass(ctx, class.ID); err != nil {
			e.log.Warn("start class failed", zap.String("class_id", class.ID), zap.Error(err))
		}
	}

	return Decision{
		Accepted:       true,
		Status:         status,
		Message:        msg,
		Record:         &rec,
		DistanceMeters: distance,
		RadiusMeters:   radius,
	}, nil
}

// UpdateAttendance applies a teacher's manual present/absent correction.
func (e *Engine) UpdateAttendance(ctx context.Context, req UpdateAttendanceRequest) (Decision, error) {
	if err := req.Validate(); err != nil {
		return Decision{}, err
	}
	d, err := e.updateAttendance(ctx, req)
	if err != nil {
		e.log.Error("update attendance failed",
			zap.String("teacher_id", req.TeacherID), zap.String("class_id", req.ClassID), zap.Error(err))
		return Decision{}, err
	}
	e.observe(opUpdate, d,
		zap.String("teacher_id", req.TeacherID),
		zap.String("class_id", req.ClassID),
		zap.String("student_id", req.StudentID))
	return d, nil
}

func (e *Engine) updateAttendance(ctx context.Context, req UpdateAttendanceRequest) (Decision, error) {
	class, err := e.store.FindClass(ctx, req.ClassID)
	if err != nil {
		return Decision{}, fmt.Errorf("find class %s: %w", req.ClassID, err)
	}
	if class == nil {
		return reject(ReasonNotFound), nil
	}
	if class.TeacherRef != req.TeacherID {
		return reject(ReasonForbidden), nil
	}
	if class.Status == model.ClassCancelled {
		return rejectf(ReasonCancelled, "Cannot edit attendance of a cancelled class"), nil
	}

	student, err := e.store.FindUser(ctx, req.StudentID)
	if err != nil {
		return Decision{}, fmt.Errorf("find student %s: %w", req.StudentID, err)
	}
	if student == nil || student.Role != model.RoleStudent {
		return rejectf(ReasonNotFound, "Student not found"), nil
	}
	if !student.InCohort(class.Course, class.Semester) {
		return reject(ReasonIneligibleCourse), nil
	}
	if !student.EnrolledBy(class.Date) {
		return rejectf(ReasonNotEnrolled, "Student enrolled on %s, after the class date %s",
			student.EnrollmentDate.Format(model.DateLayout), class.Date), nil
	}

	now := e.now()
	status := model.StatusAbsent
	if req.Present {
		status = model.StatusPresent
	}
	saved, err := e.store.SaveCorrection(ctx, model.AttendanceRecord{
		ID:                 uuid.NewString(),
		StudentID:          student.ID,
		ClassID:            class.ID,
		Status:             status,
		MarkedAt:           now,
		MarkedBy:           model.MarkedByTeacher(req.TeacherID),
		LastModifiedBy:     req.TeacherID,
		LastModifiedAt:     &now,
		ModificationReason: req.Reason,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("save correction: %w", err)
	}
	return Decision{Accepted: true, Status: saved.Status, Message: "Attendance updated", Record: &saved}, nil
}

// CancelClass cancels a class and excuses every existing record of it.
func (e *Engine) CancelClass(ctx context.Context, req CancelClassRequest) (Decision, error) {
	if err := req.Validate(); err != nil {
		return Decision{}, err
	}
	d, err := e.cancelClass(ctx, req)
	if err != nil {
		e.log.Error("cancel class failed",
			zap.String("teacher_id", req.TeacherID), zap.String("class_id", req.ClassID), zap.Error(err))
		return Decision{}, err
	}
	e.observe(opCancel, d, zap.String("teacher_id", req.TeacherID), zap.String("class_id", req.ClassID))
	return d, nil
}

func (e *Engine) cancelClass(ctx context.Context, req CancelClassRequest) (Decision, error) {
	class, err := e.store.FindClass(ctx, req.ClassID)
	if err != nil {
		return Decision{}, fmt.Errorf("find class %s: %w", req.ClassID, err)
	}
	if class == nil {
		return reject(ReasonNotFound), nil
	}
	if class.TeacherRef != req.TeacherID {
		return reject(ReasonForbidden), nil
	}
	if class.Status.Terminal() {
		return rejectf(ReasonInvalidState, "Class is already %s", class.Status), nil
	}

	now := e.now()
	ok, err := e.store.CancelClass(ctx, class.ID, req.TeacherID, req.Reason, now)
	if err != nil {
		return Decision{}, fmt.Errorf("cancel class: %w", err)
	}
	if !ok {
		return reject(ReasonInvalidState), nil
	}
	class.Status = model.ClassCancelled
	class.CancellationReason = req.Reason
	class.CancelledAt = &now
	class.CancelledBy = req.TeacherID

	// Published before the cascade so the worker can finish it if this process dies midway.
	if e.events != nil {
		msg := queue.Message{Type: queue.TypeClassCancelled, Body: []byte(class.ID)}
		if err := e.events.Publish(ctx, msg); err != nil {
			e.log.Warn("publish class cancelled failed", zap.String("class_id", class.ID), zap.Error(err))
		}
	}

	n, err := e.store.ExcuseClassRecords(ctx, class.ID, req.TeacherID, cancellationNote(req.Reason), now)
	if err != nil {
		return Decision{}, fmt.Errorf("excuse records of class %s: %w", class.ID, err)
	}
	metrics.RecordsExcused(n)

	return Decision{
		Accepted: true,
		Status:   model.StatusExcused,
		Message:  fmt.Sprintf("Class cancelled; %d attendance records excused", n),
		Class:    class,
		Excused:  n,
	}, nil
}

// ReconcileCancelled re-applies the excused cascade of a cancelled class.
// It is a no-op for classes in any other state and safe to repeat.
func (e *Engine) ReconcileCancelled(ctx context.Context, classID string) (int64, error) {
	class, err := e.store.FindClass(ctx, classID)
	if err != nil {
		return 0, fmt.Errorf("find class %s: %w", classID, err)
	}
	if class == nil {
		return 0, fmt.Errorf("class %s: %w", classID, ErrNotFound)
	}
	if class.Status != model.ClassCancelled {
		return 0, nil
	}
	n, err := e.store.ExcuseClassRecords(ctx, class.ID, class.CancelledBy, cancellationNote(class.CancellationReason), e.now())
	if err != nil {
		return 0, fmt.Errorf("excuse records of class %s: %w", class.ID, err)
	}
	metrics.RecordsExcused(n)
	if n > 0 {
		e.log.Info("reconciled cancelled class", zap.String("class_id", class.ID), zap.Int64("excused", n))
	}
	return n, nil
}

// CreateClass schedules a new session owned by the requesting teacher.
func (e *Engine) CreateClass(ctx context.Context, req CreateClassRequest) (model.ClassSession, error) {
	c := model.ClassSession{
		ID:                     uuid.NewString(),
		SubjectRef:             req.SubjectRef,
		TeacherRef:             req.TeacherID,
		Course:                 req.Course,
		Semester:               req.Semester,
		Date:                   req.Date,
		StartTime:              req.StartTime,
		EndTime:                req.EndTime,
		Location:               req.Location,
		AttendanceRadiusMeters: intOr(req.AttendanceRadiusMeters, e.cfg.DefaultRadiusMeters),
		LateGraceMinutes:       intOr(req.LateGraceMinutes, e.cfg.LateGraceMinutes),
		EndGraceMinutes:        intOr(req.EndGraceMinutes, e.cfg.EndGraceMinutes),
		Status:                 model.ClassScheduled,
		CreatedAt:              e.now().UTC(),
	}
	if err := c.Validate(); err != nil {
		return model.ClassSession{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := e.store.InsertClass(ctx, c); err != nil {
		return model.ClassSession{}, fmt.Errorf("insert class: %w", err)
	}
	e.log.Info("class scheduled",
		zap.String("class_id", c.ID), zap.String("teacher_id", c.TeacherRef),
		zap.String("date", c.Date), zap.String("start", c.StartTime))
	return c, nil
}

func (e *Engine) observe(op string, d Decision, fields ...zap.Field) {
	out := metrics.OutcomeAccepted
	if !d.Accepted {
		out = string(d.Reason)
	}
	metrics.ObserveDecision(op, out)

	fields = append(fields, zap.String("operation", op), zap.String("outcome", out))
	if d.Accepted {
		e.log.Debug("attendance decision", fields...)
		return
	}
	e.log.Info("attendance rejected", append(fields, zap.Bool("retryable", d.Reason.Retryable()))...)
}

func candidates(pool []model.User) []biometric.Candidate {
	out := make([]biometric.Candidate, 0, len(pool))
	for _, u := range pool {
		if !u.IsStudent() {
			continue
		}
		out = append(out, biometric.Candidate{ID: u.ID, Descriptor: u.Descriptor})
	}
	return out
}

func cancellationNote(reason string) string {
	return "Class cancelled: " + reason
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
