package schedule

import (
	"fmt"
	"time"

	"campusattend/internal/model"
)

// Verdict classifies a marking attempt against the class window.
type Verdict string

const (
	VerdictEarly     Verdict = "REJECTED_EARLY"
	VerdictPresent   Verdict = "PRESENT"
	VerdictLate      Verdict = "LATE"
	VerdictClosed    Verdict = "REJECTED_CLOSED"
	VerdictCancelled Verdict = "REJECTED_CANCELLED"
)

// Accepted reports whether the verdict allows a record to be written.
func (v Verdict) Accepted() bool {
	return v == VerdictPresent || v == VerdictLate
}

// Window holds the instants derived from a class session.
type Window struct {
	Start         time.Time
	LateThreshold time.Time
	End           time.Time
	EndWithGrace  time.Time
}

// Result is the outcome of one evaluation.
type Result struct {
	Verdict Verdict
	Reason  string
	Window  Window
}

// Evaluator combines class dates and clock strings in a fixed location.
type Evaluator struct {
	loc *time.Location
}

// NewEvaluator returns an evaluator for loc; nil means time.Local.
func NewEvaluator(loc *time.Location) Evaluator {
	if loc == nil {
		loc = time.Local
	}
	return Evaluator{loc: loc}
}

// WindowFor computes the marking window of a session.
func (e Evaluator) WindowFor(c model.ClassSession) (Window, error) {
	start, err := time.ParseInLocation(model.DateLayout+" "+model.ClockLayout, c.Date+" "+c.StartTime, e.loc)
	if err != nil {
		return Window{}, fmt.Errorf("class %s start: %w", c.ID, err)
	}
	end, err := time.ParseInLocation(model.DateLayout+" "+model.ClockLayout, c.Date+" "+c.EndTime, e.loc)
	if err != nil {
		return Window{}, fmt.Errorf("class %s end: %w", c.ID, err)
	}
	if !end.After(start) {
		return Window{}, fmt.Errorf("class %s ends at %s, not after start %s", c.ID, c.EndTime, c.StartTime)
	}
	return Window{
		Start:         start,
		LateThreshold: start.Add(time.Duration(c.LateGraceMinutes) * time.Minute),
		End:           end,
		EndWithGrace:  end.Add(time.Duration(c.EndGraceMinutes) * time.Minute),
	}, nil
}

// Evaluate places now inside the session's window. Cancelled sessions short-circuit
// regardless of time; completed sessions are treated as closed.
func (e Evaluator) Evaluate(c model.ClassSession, now time.Time) (Result, error) {
	if c.Status == model.ClassCancelled {
		return Result{Verdict: VerdictCancelled, Reason: "class has been cancelled"}, nil
	}

	w, err := e.WindowFor(c)
	if err != nil {
		return Result{}, err
	}

	switch {
	case now.Before(w.Start):
		return Result{Verdict: VerdictEarly, Reason: "class has not started yet", Window: w}, nil
	case now.After(w.EndWithGrace) || c.Status == model.ClassCompleted:
		return Result{Verdict: VerdictClosed, Reason: "attendance window has closed", Window: w}, nil
	case !now.After(w.LateThreshold):
		return Result{Verdict: VerdictPresent, Reason: "within the on-time window", Window: w}, nil
	default:
		return Result{Verdict: VerdictLate, Reason: "after the late threshold", Window: w}, nil
	}
}
