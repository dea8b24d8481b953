package attendance

import (
	"fmt"

	"campusattend/internal/model"
)

// Reason is a modeled rejection kind.
type Reason string

const (
	ReasonUnauthorized      Reason = "UNAUTHORIZED"
	ReasonNotFound          Reason = "NOT_FOUND"
	ReasonCancelled         Reason = "CANCELLED"
	ReasonIneligibleCourse  Reason = "INELIGIBLE_COURSE"
	ReasonNotEnrolled       Reason = "NOT_ENROLLED"
	ReasonRejectedEarly     Reason = "REJECTED_EARLY"
	ReasonRejectedClosed    Reason = "REJECTED_CLOSED"
	ReasonOutOfRange        Reason = "OUT_OF_RANGE"
	ReasonAlreadyMarked     Reason = "ALREADY_MARKED"
	ReasonFaceNotRecognized Reason = "FACE_NOT_RECOGNIZED"
	ReasonIdentityMismatch  Reason = "IDENTITY_MISMATCH"
	ReasonForbidden         Reason = "FORBIDDEN"
	ReasonInvalidState      Reason = "INVALID_STATE"
)

// Retryable reports whether the caller may succeed by retrying later or elsewhere.
func (r Reason) Retryable() bool {
	switch r {
	case ReasonRejectedEarly, ReasonRejectedClosed, ReasonOutOfRange, ReasonFaceNotRecognized:
		return true
	}
	return false
}

var reasonMessages = map[Reason]string{
	ReasonUnauthorized:      "Unauthorized",
	ReasonNotFound:          "Class not found",
	ReasonCancelled:         "This class has been cancelled",
	ReasonIneligibleCourse:  "This class is not available for your semester/course",
	ReasonNotEnrolled:       "Student was not enrolled on the class date",
	ReasonRejectedEarly:     "Class has not started yet",
	ReasonRejectedClosed:    "Attendance window has closed",
	ReasonAlreadyMarked:     "Attendance already marked for this class",
	ReasonFaceNotRecognized: "Face not recognized",
	ReasonIdentityMismatch:  "You cannot mark attendance for another student",
	ReasonForbidden:         "You do not own this class",
	ReasonInvalidState:      "Class can no longer be changed",
}

// Message returns the user-facing text for r.
func (r Reason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

// Decision is the result of an engine operation. Rejections are values, not errors.
type Decision struct {
	Accepted bool                    `json:"accepted"`
	Reason   Reason                  `json:"reason,omitempty"`
	Status   model.AttendanceStatus  `json:"status,omitempty"`
	Message  string                  `json:"message"`
	Record   *model.AttendanceRecord `json:"record,omitempty"`
	Class    *model.ClassSession     `json:"class,omitempty"`

	// Geofence diagnostics, set on OUT_OF_RANGE and on accepted marks.
	DistanceMeters float64 `json:"distance_meters,omitempty"`
	RadiusMeters   float64 `json:"radius_meters,omitempty"`

	// Excused is the number of records moved to excused by a cancellation.
	Excused int64 `json:"excused,omitempty"`
}

func reject(r Reason) Decision {
	return Decision{Reason: r, Message: r.Message()}
}

func rejectf(r Reason, format string, args ...any) Decision {
	return Decision{Reason: r, Message: fmt.Sprintf(format, args...)}
}
