package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"campusattend/internal/geofence"
)

// Layouts for the wall-clock strings stored on a class session.
const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Bounds and defaults for per-class tunables.
const (
	MinRadiusMeters     = 10
	MaxRadiusMeters     = 500
	DefaultRadiusMeters = 50
	MaxLateGraceMinutes = 60
	DefaultLateGrace    = 10
	MaxEndGraceMinutes  = 30
	DefaultEndGrace     = 5
)

// ClassStatus is the lifecycle state of a class session.
type ClassStatus string

const (
	ClassScheduled ClassStatus = "scheduled"
	ClassOngoing   ClassStatus = "ongoing"
	ClassCompleted ClassStatus = "completed"
	ClassCancelled ClassStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed.
func (s ClassStatus) Terminal() bool {
	return s == ClassCancelled || s == ClassCompleted
}

// ClassSession is one scheduled teaching session. Date and times are local
// wall-clock strings and are never shifted between time zones.
type ClassSession struct {
	ID                     string         `json:"id"`
	SubjectRef             string         `json:"subject_ref" validate:"required"`
	TeacherRef             string         `json:"teacher_ref" validate:"required"`
	Course                 string         `json:"course" validate:"required"`
	Semester               int            `json:"semester" validate:"min=1,max=8"`
	Date                   string         `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime              string         `json:"start_time" validate:"required,datetime=15:04"`
	EndTime                string         `json:"end_time" validate:"required,datetime=15:04"`
	Location               geofence.Point `json:"location"`
	AttendanceRadiusMeters int            `json:"attendance_radius_meters" validate:"min=10,max=500"`
	LateGraceMinutes       int            `json:"late_grace_minutes" validate:"min=0,max=60"`
	EndGraceMinutes        int            `json:"end_grace_minutes" validate:"min=0,max=30"`
	Status                 ClassStatus    `json:"status" validate:"oneof=scheduled ongoing completed cancelled"`
	CancellationReason     string         `json:"cancellation_reason,omitempty"`
	CancelledAt            *time.Time     `json:"cancelled_at,omitempty"`
	CancelledBy            string         `json:"cancelled_by,omitempty"`
	CreatedAt              time.Time      `json:"created_at"`
}

var validate = validator.New()

// ErrInvalidClass wraps every class validation failure.
var ErrInvalidClass = errors.New("invalid class session")

// Validate checks field formats, tunable bounds and that the session ends after it starts.
func (c ClassSession) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidClass, err)
	}
	if !c.Location.Valid() {
		return fmt.Errorf("%w: location out of range", ErrInvalidClass)
	}
	start, err := ParseClock(c.StartTime)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidClass, err)
	}
	end, err := ParseClock(c.EndTime)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidClass, err)
	}
	if end <= start {
		return fmt.Errorf("%w: end time %s must be after start time %s", ErrInvalidClass, c.EndTime, c.StartTime)
	}
	return nil
}

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
