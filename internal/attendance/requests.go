package attendance

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"campusattend/internal/biometric"
	"campusattend/internal/geofence"
)

// ErrInvalidRequest wraps boundary validation failures.
var ErrInvalidRequest = errors.New("invalid request")

var validate = validator.New()

// MarkAttendanceRequest is a student's self-marking attempt. A malformed
// descriptor is not a validation error; it fails the scan as FACE_NOT_RECOGNIZED
// after the identity and class checks have run.
type MarkAttendanceRequest struct {
	UserID     string `validate:"required"`
	ClassID    string `validate:"required"`
	Descriptor biometric.Descriptor
	Location   geofence.Point
}

// Validate checks field presence and ranges.
func (r MarkAttendanceRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if !r.Location.Valid() {
		return fmt.Errorf("%w: location out of range", ErrInvalidRequest)
	}
	return nil
}

// UpdateAttendanceRequest is a teacher's manual correction.
type UpdateAttendanceRequest struct {
	TeacherID string `validate:"required"`
	ClassID   string `validate:"required"`
	StudentID string `validate:"required"`
	Present   bool
	Reason    string `validate:"max=500"`
}

// Validate checks field presence and ranges.
func (r UpdateAttendanceRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// CancelClassRequest cancels a teacher's class.
type CancelClassRequest struct {
	TeacherID string `validate:"required"`
	ClassID   string `validate:"required"`
	Reason    string `validate:"min=5,max=500"`
}

// Validate checks field presence and ranges.
func (r CancelClassRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// CreateClassRequest schedules a new session. Nil tunables take the engine defaults.
type CreateClassRequest struct {
	TeacherID              string
	SubjectRef             string
	Course                 string
	Semester               int
	Date                   string
	StartTime              string
	EndTime                string
	Location               geofence.Point
	AttendanceRadiusMeters *int
	LateGraceMinutes       *int
	EndGraceMinutes        *int
}
