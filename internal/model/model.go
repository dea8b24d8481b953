package model

import (
	"encoding/json"
	"time"

	"campusattend/internal/biometric"
	"campusattend/internal/geofence"
)

// Role is the account role carried in tokens and user rows.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// AttendanceStatus is the outcome stored on an attendance record.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
	StatusExcused AttendanceStatus = "excused"
)

// Attended reports whether the status counts toward attendance percentage.
func (s AttendanceStatus) Attended() bool {
	return s == StatusPresent || s == StatusLate
}

// User is an account. Students carry the cohort, descriptor and enrollment date
// used for eligibility and biometric matching.
type User struct {
	ID             string               `json:"id"`
	Name           string               `json:"name"`
	Email          string               `json:"email"`
	Role           Role                 `json:"role"`
	Course         string               `json:"course,omitempty"`
	Semester       int                  `json:"semester,omitempty"`
	Descriptor     biometric.Descriptor `json:"-"`
	EnrollmentDate time.Time            `json:"enrollment_date"`
	IsActive       bool                 `json:"is_active"`
}

// IsStudent reports whether u is an active student account.
func (u User) IsStudent() bool {
	return u.Role == RoleStudent && u.IsActive
}

// InCohort reports whether u belongs to the given course and semester.
func (u User) InCohort(course string, semester int) bool {
	return u.Course == course && u.Semester == semester
}

// EnrolledBy reports whether u was enrolled on or before classDate (YYYY-MM-DD).
// A zero enrollment date means the student predates enrollment tracking.
func (u User) EnrolledBy(classDate string) bool {
	if u.EnrollmentDate.IsZero() {
		return true
	}
	return u.EnrollmentDate.Format(DateLayout) <= classDate
}

// MarkedBy records who created an attendance record: the student themself or a teacher.
type MarkedBy struct {
	teacherID string
}

// SelfMarked is the MarkedBy for a record created by the student's own request.
func SelfMarked() MarkedBy { return MarkedBy{} }

// MarkedByTeacher is the MarkedBy for a record a teacher entered manually.
func MarkedByTeacher(id string) MarkedBy { return MarkedBy{teacherID: id} }

// IsSelf reports whether the record was self-marked.
func (m MarkedBy) IsSelf() bool { return m.teacherID == "" }

// TeacherID returns the teacher id for manual entries.
func (m MarkedBy) TeacherID() (string, bool) {
	return m.teacherID, m.teacherID != ""
}

func (m MarkedBy) MarshalJSON() ([]byte, error) {
	if m.IsSelf() {
		return json.Marshal(map[string]string{"kind": "self"})
	}
	return json.Marshal(map[string]string{"kind": "teacher", "teacher_id": m.teacherID})
}

// AttendanceRecord is the single record kept per (student, class).
type AttendanceRecord struct {
	ID                 string           `json:"id"`
	StudentID          string           `json:"student_id"`
	ClassID            string           `json:"class_id"`
	Status             AttendanceStatus `json:"status"`
	MarkedAt           time.Time        `json:"marked_at"`
	MarkedBy           MarkedBy         `json:"marked_by"`
	Location           *geofence.Point  `json:"location,omitempty"`
	MatchScore         *float64         `json:"biometric_match_score,omitempty"`
	LastModifiedBy     string           `json:"last_modified_by,omitempty"`
	LastModifiedAt     *time.Time       `json:"last_modified_at,omitempty"`
	ModificationReason string           `json:"modification_reason,omitempty"`
}
