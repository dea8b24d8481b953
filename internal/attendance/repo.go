package attendance

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"campusattend/internal/geofence"
	"campusattend/internal/model"
)

// pgUniqueViolation is the SQLSTATE for unique constraint failures.
const pgUniqueViolation = "23505"

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

type scanner interface {
	Scan(dest ...any) error
}

// -------- Users --------

const userColumns = `id, name, email, role, COALESCE(course, ''), COALESCE(semester, 0),
	face_descriptor, enrollment_date, is_active`

func scanUser(s scanner) (model.User, error) {
	var (
		u          model.User
		role       string
		descriptor []byte
		enrolled   sql.NullTime
	)
	if err := s.Scan(&u.ID, &u.Name, &u.Email, &role, &u.Course, &u.Semester, &descriptor, &enrolled, &u.IsActive); err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	if enrolled.Valid {
		u.EnrollmentDate = enrolled.Time
	}
	if len(descriptor) > 0 {
		// A malformed stored descriptor is left empty so it can never be compared.
		if err := json.Unmarshal(descriptor, &u.Descriptor); err != nil {
			u.Descriptor = nil
		}
	}
	return u, nil
}

// FindUser returns a user by id, or nil when missing.
func (r *Repository) FindUser(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// ListActiveStudents returns the active students of a course and semester.
func (r *Repository) ListActiveStudents(ctx context.Context, course string, semester int) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = 'student' AND is_active AND course = $1 AND semester = $2
		ORDER BY id
	`, course, semester)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// -------- Classes --------

const classColumns = `id, subject_ref, teacher_ref, course, semester, class_date, start_time, end_time,
	latitude, longitude, attendance_radius_meters, late_grace_minutes, end_grace_minutes, status,
	cancellation_reason, cancelled_at, cancelled_by, created_at`

func scanClass(s scanner) (model.ClassSession, error) {
	var (
		c      model.ClassSession
		status string
	)
	err := s.Scan(&c.ID, &c.SubjectRef, &c.TeacherRef, &c.Course, &c.Semester, &c.Date, &c.StartTime, &c.EndTime,
		&c.Location.Latitude, &c.Location.Longitude, &c.AttendanceRadiusMeters, &c.LateGraceMinutes, &c.EndGraceMinutes,
		&status, &c.CancellationReason, &c.CancelledAt, &c.CancelledBy, &c.CreatedAt)
	if err != nil {
		return model.ClassSession{}, err
	}
	c.Status = model.ClassStatus(status)
	return c, nil
}

// FindClass returns a class session by id, or nil when missing.
func (r *Repository) FindClass(ctx context.Context, id string) (*model.ClassSession, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+classColumns+` FROM class_sessions WHERE id = $1`, id)
	c, err := scanClass(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// InsertClass writes a new class session.
func (r *Repository) InsertClass(ctx context.Context, c model.ClassSession) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO class_sessions (id, subject_ref, teacher_ref, course, semester, class_date, start_time, end_time,
			latitude, longitude, attendance_radius_meters, late_grace_minutes, end_grace_minutes, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`, c.ID, c.SubjectRef, c.TeacherRef, c.Course, c.Semester, c.Date, c.StartTime, c.EndTime,
		c.Location.Latitude, c.Location.Longitude, c.AttendanceRadiusMeters, c.LateGraceMinutes, c.EndGraceMinutes,
		string(c.Status), c.CreatedAt)
	return err
}

// StartClass moves a scheduled class to ongoing.
func (r *Repository) StartClass(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE class_sessions SET status = 'ongoing'
		WHERE id = $1 AND status = 'scheduled'
	`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CancelClass moves a scheduled or ongoing class to cancelled.
func (r *Repository) CancelClass(ctx context.Context, id, cancelledBy, reason string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE class_sessions
		SET status = 'cancelled', cancelled_by = $2, cancellation_reason = $3, cancelled_at = $4
		WHERE id = $1 AND status IN ('scheduled', 'ongoing')
	`, id, cancelledBy, reason, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// ListCohortClasses returns the classes of a course and semester by date and start time.
func (r *Repository) ListCohortClasses(ctx context.Context, course string, semester int) ([]model.ClassSession, error) {
	return r.listClasses(ctx, `
		SELECT `+classColumns+`
		FROM class_sessions
		WHERE course = $1 AND semester = $2
		ORDER BY class_date, start_time, id
	`, course, semester)
}

// ListTeacherClasses returns the classes a teacher owns by date and start time.
func (r *Repository) ListTeacherClasses(ctx context.Context, teacherID string) ([]model.ClassSession, error) {
	return r.listClasses(ctx, `
		SELECT `+classColumns+`
		FROM class_sessions
		WHERE teacher_ref = $1
		ORDER BY class_date, start_time, id
	`, teacherID)
}

func (r *Repository) listClasses(ctx context.Context, query string, args ...any) ([]model.ClassSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []model.ClassSession
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, err
		}
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

// -------- Attendance records --------

const recordColumns = `id, student_id, class_id, status, marked_at, marked_by, latitude, longitude,
	biometric_match_score, last_modified_by, last_modified_at, modification_reason`

func scanRecord(s scanner) (model.AttendanceRecord, error) {
	var (
		rec      model.AttendanceRecord
		status   string
		markedBy sql.NullString
		lat, lon sql.NullFloat64
	)
	err := s.Scan(&rec.ID, &rec.StudentID, &rec.ClassID, &status, &rec.MarkedAt, &markedBy, &lat, &lon,
		&rec.MatchScore, &rec.LastModifiedBy, &rec.LastModifiedAt, &rec.ModificationReason)
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	rec.Status = model.AttendanceStatus(status)
	rec.MarkedBy = model.SelfMarked()
	if markedBy.Valid && markedBy.String != "" {
		rec.MarkedBy = model.MarkedByTeacher(markedBy.String)
	}
	if lat.Valid && lon.Valid {
		rec.Location = &geofence.Point{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	return rec, nil
}

func markedByColumn(m model.MarkedBy) sql.NullString {
	id, ok := m.TeacherID()
	return sql.NullString{String: id, Valid: ok}
}

func locationColumns(p *geofence.Point) (sql.NullFloat64, sql.NullFloat64) {
	if p == nil {
		return sql.NullFloat64{}, sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: p.Latitude, Valid: true}, sql.NullFloat64{Float64: p.Longitude, Valid: true}
}

// FindRecord returns the record of a (student, class) pair, or nil when missing.
func (r *Repository) FindRecord(ctx context.Context, studentID, classID string) (*model.AttendanceRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+` FROM attendance_records WHERE student_id = $1 AND class_id = $2
	`, studentID, classID)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// InsertRecord writes a new record; the unique (student_id, class_id) index
// turns a concurrent duplicate into ErrDuplicateRecord.
func (r *Repository) InsertRecord(ctx context.Context, rec model.AttendanceRecord) error {
	lat, lon := locationColumns(rec.Location)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance_records (id, student_id, class_id, status, marked_at, marked_by,
			latitude, longitude, biometric_match_score)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, rec.ID, rec.StudentID, rec.ClassID, string(rec.Status), rec.MarkedAt, markedByColumn(rec.MarkedBy),
		lat, lon, rec.MatchScore)
	if isUniqueViolation(err) {
		return fmt.Errorf("student %s class %s: %w", rec.StudentID, rec.ClassID, ErrDuplicateRecord)
	}
	return err
}

// SaveCorrection upserts a teacher edit in a single statement.
func (r *Repository) SaveCorrection(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, student_id, class_id, status, marked_at, marked_by,
			last_modified_by, last_modified_at, modification_reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (student_id, class_id) DO UPDATE SET
			status = EXCLUDED.status,
			last_modified_by = EXCLUDED.last_modified_by,
			last_modified_at = EXCLUDED.last_modified_at,
			modification_reason = EXCLUDED.modification_reason
		RETURNING `+recordColumns,
		rec.ID, rec.StudentID, rec.ClassID, string(rec.Status), rec.MarkedAt, markedByColumn(rec.MarkedBy),
		rec.LastModifiedBy, rec.LastModifiedAt, rec.ModificationReason)
	return scanRecord(row)
}

// ExcuseClassRecords marks every non-excused record of a class as excused.
func (r *Repository) ExcuseClassRecords(ctx context.Context, classID, modifiedBy, note string, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance_records
		SET status = 'excused', last_modified_by = $2, last_modified_at = $3, modification_reason = $4
		WHERE class_id = $1 AND status <> 'excused'
	`, classID, modifiedBy, at, note)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListClassRecords returns all records of a class.
func (r *Repository) ListClassRecords(ctx context.Context, classID string) ([]model.AttendanceRecord, error) {
	return r.listRecords(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE class_id = $1 ORDER BY marked_at`, classID)
}

// ListStudentRecords returns all records of a student.
func (r *Repository) ListStudentRecords(ctx context.Context, studentID string) ([]model.AttendanceRecord, error) {
	return r.listRecords(ctx, `SELECT `+recordColumns+` FROM attendance_records WHERE student_id = $1 ORDER BY marked_at DESC`, studentID)
}

func (r *Repository) listRecords(ctx context.Context, query string, arg string) ([]model.AttendanceRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []model.AttendanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
