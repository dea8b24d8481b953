package attendance

import (
	"context"
	"errors"
	"time"

	"campusattend/internal/model"
)

var (
	// ErrDuplicateRecord is returned by InsertRecord when (student, class) already has a record.
	ErrDuplicateRecord = errors.New("attendance record already exists")
	// ErrNotFound is returned by report queries for missing users or classes.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned by report queries a caller may not run.
	ErrForbidden = errors.New("forbidden")
)

// UserRepository resolves accounts. Lookups return nil, nil for missing ids.
type UserRepository interface {
	FindUser(ctx context.Context, id string) (*model.User, error)
	ListActiveStudents(ctx context.Context, course string, semester int) ([]model.User, error)
}

// ClassRepository persists class sessions. Lookups return nil, nil for missing ids.
type ClassRepository interface {
	FindClass(ctx context.Context, id string) (*model.ClassSession, error)
	InsertClass(ctx context.Context, c model.ClassSession) error
	// StartClass moves a scheduled class to ongoing; false when it was not scheduled.
	StartClass(ctx context.Context, id string) (bool, error)
	// CancelClass moves a scheduled or ongoing class to cancelled; false otherwise.
	CancelClass(ctx context.Context, id, cancelledBy, reason string, at time.Time) (bool, error)
	ListCohortClasses(ctx context.Context, course string, semester int) ([]model.ClassSession, error)
	// ListTeacherClasses returns the classes a teacher owns, ordered by date and start time.
	ListTeacherClasses(ctx context.Context, teacherID string) ([]model.ClassSession, error)
}

// RecordRepository persists attendance records, unique per (student, class).
type RecordRepository interface {
	FindRecord(ctx context.Context, studentID, classID string) (*model.AttendanceRecord, error)
	// InsertRecord fails with ErrDuplicateRecord when the pair already has a record.
	InsertRecord(ctx context.Context, rec model.AttendanceRecord) error
	// SaveCorrection upserts a teacher edit, keeping the original marking fields of an existing record.
	SaveCorrection(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error)
	// ExcuseClassRecords sets every non-excused record of a class to excused and returns how many changed.
	ExcuseClassRecords(ctx context.Context, classID, modifiedBy, note string, at time.Time) (int64, error)
	ListClassRecords(ctx context.Context, classID string) ([]model.AttendanceRecord, error)
	ListStudentRecords(ctx context.Context, studentID string) ([]model.AttendanceRecord, error)
}

// Store is everything the engine needs from persistence.
type Store interface {
	UserRepository
	ClassRepository
	RecordRepository
}
