package attendance

import (
	"context"
	"fmt"
	"math"
	"sort"

	"campusattend/internal/model"
)

// HistoryEntry pairs a student's record with its class.
type HistoryEntry struct {
	Record model.AttendanceRecord `json:"record"`
	Class  model.ClassSession     `json:"class"`
}

// RosterEntry is one cohort student's standing in a class.
type RosterEntry struct {
	Student model.User              `json:"student"`
	Status  model.AttendanceStatus  `json:"status"`
	Record  *model.AttendanceRecord `json:"record,omitempty"`
}

// SubjectSummary aggregates attendance for one subject.
type SubjectSummary struct {
	Subject      string  `json:"subject"`
	Total        int     `json:"total"`
	Attended     int     `json:"attended"`
	Percentage   float64 `json:"percentage"`
	BelowMinimum bool    `json:"below_minimum"`
}

// Summary is a student's attendance across subjects.
type Summary struct {
	StudentID string           `json:"student_id"`
	Subjects  []SubjectSummary `json:"subjects"`
	Overall   SubjectSummary   `json:"overall"`
}

func (e *Engine) student(ctx context.Context, id string) (*model.User, error) {
	u, err := e.store.FindUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", id, err)
	}
	if u == nil || u.Role != model.RoleStudent {
		return nil, fmt.Errorf("student %s: %w", id, ErrNotFound)
	}
	return u, nil
}

// StudentHistory lists the student's records with their classes, latest class first.
func (e *Engine) StudentHistory(ctx context.Context, studentID string) ([]HistoryEntry, error) {
	if _, err := e.student(ctx, studentID); err != nil {
		return nil, err
	}
	records, err := e.store.ListStudentRecords(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	out := make([]HistoryEntry, 0, len(records))
	for _, r := range records {
		c, err := e.store.FindClass(ctx, r.ClassID)
		if err != nil {
			return nil, fmt.Errorf("find class %s: %w", r.ClassID, err)
		}
		if c == nil {
			continue
		}
		out = append(out, HistoryEntry{Record: r, Class: *c})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Class, out[j].Class
		if a.Date != b.Date {
			return a.Date > b.Date
		}
		return a.StartTime > b.StartTime
	})
	return out, nil
}

// PendingClasses lists upcoming cohort classes the student can still mark.
func (e *Engine) PendingClasses(ctx context.Context, studentID string) ([]model.ClassSession, error) {
	u, err := e.student(ctx, studentID)
	if err != nil {
		return nil, err
	}
	classes, err := e.store.ListCohortClasses(ctx, u.Course, u.Semester)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	marked, err := e.markedClasses(ctx, studentID)
	if err != nil {
		return nil, err
	}

	today := e.now().In(e.cfg.Location).Format(model.DateLayout)
	out := make([]model.ClassSession, 0, len(classes))
	for _, c := range classes {
		if c.Date < today || c.Status.Terminal() || marked[c.ID] || !u.EnrolledBy(c.Date) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

// ClassRoster lists every eligible cohort student of a class with their status;
// students without a record are reported absent. Students who hold a record
// stay listed after deactivation.
func (e *Engine) ClassRoster(ctx context.Context, teacherID, classID string) ([]RosterEntry, error) {
	class, err := e.store.FindClass(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("find class %s: %w", classID, err)
	}
	if class == nil {
		return nil, fmt.Errorf("class %s: %w", classID, ErrNotFound)
	}
	if class.TeacherRef != teacherID {
		return nil, fmt.Errorf("class %s: %w", classID, ErrForbidden)
	}

	records, err := e.store.ListClassRecords(ctx, classID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	students, err := e.cohortWithRecords(ctx, class.Course, class.Semester, records)
	if err != nil {
		return nil, err
	}
	byStudent := make(map[string]model.AttendanceRecord, len(records))
	for _, r := range records {
		byStudent[r.StudentID] = r
	}

	out := make([]RosterEntry, 0, len(students))
	for _, s := range students {
		r, marked := byStudent[s.ID]
		if !marked && !s.EnrolledBy(class.Date) {
			continue
		}
		entry := RosterEntry{Student: s, Status: model.StatusAbsent}
		if marked {
			entry.Status = r.Status
			entry.Record = &r
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool { return byName(out[i].Student, out[j].Student) })
	return out, nil
}

// cohortWithRecords returns the active cohort plus every student holding one
// of records, so deactivated students keep their attendance history visible.
func (e *Engine) cohortWithRecords(ctx context.Context, course string, semester int, records []model.AttendanceRecord) ([]model.User, error) {
	students, err := e.store.ListActiveStudents(ctx, course, semester)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	seen := make(map[string]bool, len(students))
	for _, s := range students {
		seen[s.ID] = true
	}
	for _, r := range records {
		if seen[r.StudentID] {
			continue
		}
		seen[r.StudentID] = true
		u, err := e.store.FindUser(ctx, r.StudentID)
		if err != nil {
			return nil, fmt.Errorf("find student %s: %w", r.StudentID, err)
		}
		if u != nil {
			students = append(students, *u)
		}
	}
	return students, nil
}

func byName(a, b model.User) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}

// StudentSummary computes per-subject attendance over classes that have started,
// excluding cancelled classes and those before the student's enrollment.
func (e *Engine) StudentSummary(ctx context.Context, studentID string) (Summary, error) {
	u, err := e.student(ctx, studentID)
	if err != nil {
		return Summary{}, err
	}
	classes, err := e.store.ListCohortClasses(ctx, u.Course, u.Semester)
	if err != nil {
		return Summary{}, fmt.Errorf("list classes: %w", err)
	}
	records, err := e.store.ListStudentRecords(ctx, studentID)
	if err != nil {
		return Summary{}, fmt.Errorf("list records: %w", err)
	}
	statusByClass := make(map[string]model.AttendanceStatus, len(records))
	for _, r := range records {
		statusByClass[r.ClassID] = r.Status
	}

	now := e.now()
	bySubject := map[string]*SubjectSummary{}
	overall := SubjectSummary{Subject: "overall"}
	for _, c := range classes {
		if c.Status == model.ClassCancelled || !u.EnrolledBy(c.Date) {
			continue
		}
		w, err := e.window.WindowFor(c)
		if err != nil {
			return Summary{}, err
		}
		if now.Before(w.Start) {
			continue
		}
		s, ok := bySubject[c.SubjectRef]
		if !ok {
			s = &SubjectSummary{Subject: c.SubjectRef}
			bySubject[c.SubjectRef] = s
		}
		s.Total++
		overall.Total++
		if statusByClass[c.ID].Attended() {
			s.Attended++
			overall.Attended++
		}
	}

	sum := Summary{StudentID: studentID, Subjects: make([]SubjectSummary, 0, len(bySubject))}
	for _, s := range bySubject {
		e.finishSummary(s)
		sum.Subjects = append(sum.Subjects, *s)
	}
	sort.Slice(sum.Subjects, func(i, j int) bool { return sum.Subjects[i].Subject < sum.Subjects[j].Subject })
	e.finishSummary(&overall)
	sum.Overall = overall
	return sum, nil
}

func (e *Engine) finishSummary(s *SubjectSummary) {
	if s.Total == 0 {
		return
	}
	s.Percentage = math.Round(float64(s.Attended)/float64(s.Total)*10000) / 100
	s.BelowMinimum = s.Percentage < e.cfg.MinAttendancePercentage
}

func (e *Engine) markedClasses(ctx context.Context, studentID string) (map[string]bool, error) {
	records, err := e.store.ListStudentRecords(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	out := make(map[string]bool, len(records))
	for _, r := range records {
		out[r.ClassID] = true
	}
	return out, nil
}
