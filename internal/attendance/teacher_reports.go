package attendance

import (
	"context"
	"fmt"
	"sort"
	"time"

	"campusattend/internal/model"
)

// TeacherClasses lists the classes a teacher owns, oldest first.
func (e *Engine) TeacherClasses(ctx context.Context, teacherID string) ([]model.ClassSession, error) {
	classes, err := e.store.ListTeacherClasses(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list classes of %s: %w", teacherID, err)
	}
	return classes, nil
}

// StudentClasses lists every class of the student's cohort dated on or after
// their enrollment, oldest first.
func (e *Engine) StudentClasses(ctx context.Context, studentID string) ([]model.ClassSession, error) {
	u, err := e.student(ctx, studentID)
	if err != nil {
		return nil, err
	}
	classes, err := e.store.ListCohortClasses(ctx, u.Course, u.Semester)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	out := make([]model.ClassSession, 0, len(classes))
	for _, c := range classes {
		if u.EnrolledBy(c.Date) {
			out = append(out, c)
		}
	}
	return out, nil
}

// TeacherAnalytics reports, per subject the teacher teaches, attended seats
// over eligible seats for classes that have started and were not cancelled.
func (e *Engine) TeacherAnalytics(ctx context.Context, teacherID string) ([]SubjectSummary, error) {
	classes, err := e.countableClasses(ctx, teacherID, func(model.ClassSession) bool { return true })
	if err != nil {
		return nil, err
	}

	bySubject := map[string]*SubjectSummary{}
	cohorts := map[string][]model.User{}
	for _, c := range classes {
		records, err := e.store.ListClassRecords(ctx, c.ID)
		if err != nil {
			return nil, fmt.Errorf("list records of %s: %w", c.ID, err)
		}
		key := fmt.Sprintf("%s/%d", c.Course, c.Semester)
		active, ok := cohorts[key]
		if !ok {
			if active, err = e.store.ListActiveStudents(ctx, c.Course, c.Semester); err != nil {
				return nil, fmt.Errorf("list students: %w", err)
			}
			cohorts[key] = active
		}
		status := make(map[string]model.AttendanceStatus, len(records))
		for _, r := range records {
			status[r.StudentID] = r.Status
		}

		s, ok := bySubject[c.SubjectRef]
		if !ok {
			s = &SubjectSummary{Subject: c.SubjectRef}
			bySubject[c.SubjectRef] = s
		}
		counted := make(map[string]bool, len(active))
		for _, u := range active {
			if !u.EnrolledBy(c.Date) {
				continue
			}
			counted[u.ID] = true
			s.Total++
			if status[u.ID].Attended() {
				s.Attended++
			}
		}
		// Records of students no longer active still count.
		for id, st := range status {
			if counted[id] {
				continue
			}
			s.Total++
			if st.Attended() {
				s.Attended++
			}
		}
	}

	out := make([]SubjectSummary, 0, len(bySubject))
	for _, s := range bySubject {
		e.finishSummary(s)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out, nil
}

// MatrixQuery selects a teacher's classes of one subject for one cohort.
// A zero Month selects the whole term.
type MatrixQuery struct {
	TeacherID string     `validate:"required"`
	Course    string     `validate:"required"`
	Semester  int        `validate:"min=1,max=8"`
	Subject   string     `validate:"required"`
	Month     time.Month `validate:"min=0,max=12"`
	Year      int        `validate:"required_with=Month,max=9999"`
}

// Validate checks field presence and ranges.
func (q MatrixQuery) Validate() error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func (q MatrixQuery) includes(c model.ClassSession) bool {
	if c.Course != q.Course || c.Semester != q.Semester || c.SubjectRef != q.Subject {
		return false
	}
	if q.Month == 0 {
		return true
	}
	return c.Date[:7] == fmt.Sprintf("%04d-%02d", q.Year, int(q.Month))
}

// MatrixColumn is one class in an attendance matrix.
type MatrixColumn struct {
	ClassID   string `json:"class_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// MatrixRow is one student's attendance across the matrix columns. Statuses
// align with the columns; an empty status marks a class held before the
// student enrolled, which is not counted.
type MatrixRow struct {
	Student      model.User               `json:"student"`
	Statuses     []model.AttendanceStatus `json:"statuses"`
	Total        int                      `json:"total"`
	Attended     int                      `json:"attended"`
	Percentage   float64                  `json:"percentage"`
	BelowMinimum bool                     `json:"below_minimum"`
}

// Matrix is a student by class attendance grid.
type Matrix struct {
	Columns []MatrixColumn `json:"columns"`
	Rows    []MatrixRow    `json:"rows"`
}

// TeacherAttendanceMatrix builds the student by class grid for a subject,
// monthly or for the whole term. Cancelled and not yet started classes are left out.
func (e *Engine) TeacherAttendanceMatrix(ctx context.Context, q MatrixQuery) (Matrix, error) {
	if err := q.Validate(); err != nil {
		return Matrix{}, err
	}
	classes, err := e.countableClasses(ctx, q.TeacherID, q.includes)
	if err != nil {
		return Matrix{}, err
	}

	m := Matrix{Columns: make([]MatrixColumn, 0, len(classes)), Rows: []MatrixRow{}}
	if len(classes) == 0 {
		return m, nil
	}
	status := map[recordKey]model.AttendanceStatus{}
	var all []model.AttendanceRecord
	for _, c := range classes {
		m.Columns = append(m.Columns, MatrixColumn{ClassID: c.ID, Date: c.Date, StartTime: c.StartTime, EndTime: c.EndTime})
		records, err := e.store.ListClassRecords(ctx, c.ID)
		if err != nil {
			return Matrix{}, fmt.Errorf("list records of %s: %w", c.ID, err)
		}
		for _, r := range records {
			status[recordKey{r.StudentID, r.ClassID}] = r.Status
		}
		all = append(all, records...)
	}

	students, err := e.cohortWithRecords(ctx, q.Course, q.Semester, all)
	if err != nil {
		return Matrix{}, err
	}
	sort.SliceStable(students, func(i, j int) bool { return byName(students[i], students[j]) })

	for _, u := range students {
		row := MatrixRow{Student: u, Statuses: make([]model.AttendanceStatus, len(classes))}
		for i, c := range classes {
			st, marked := status[recordKey{u.ID, c.ID}]
			if !marked {
				if !u.EnrolledBy(c.Date) {
					continue
				}
				st = model.StatusAbsent
			}
			row.Statuses[i] = st
			row.Total++
			if st.Attended() {
				row.Attended++
			}
		}
		if row.Total == 0 {
			continue
		}
		s := SubjectSummary{Total: row.Total, Attended: row.Attended}
		e.finishSummary(&s)
		row.Percentage, row.BelowMinimum = s.Percentage, s.BelowMinimum
		m.Rows = append(m.Rows, row)
	}
	return m, nil
}

// AttendanceMonths lists the "YYYY-MM" months in which the teacher held
// non-cancelled classes of a subject for a cohort, oldest first.
func (e *Engine) AttendanceMonths(ctx context.Context, teacherID, course string, semester int, subject string) ([]string, error) {
	classes, err := e.store.ListTeacherClasses(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list classes of %s: %w", teacherID, err)
	}
	q := MatrixQuery{Course: course, Semester: semester, Subject: subject}
	seen := map[string]bool{}
	months := []string{}
	for _, c := range classes {
		if c.Status == model.ClassCancelled || len(c.Date) < 7 || !q.includes(c) {
			continue
		}
		if month := c.Date[:7]; !seen[month] {
			seen[month] = true
			months = append(months, month)
		}
	}
	sort.Strings(months)
	return months, nil
}

// countableClasses returns the teacher's classes accepted by keep that were
// not cancelled and whose start time has passed.
func (e *Engine) countableClasses(ctx context.Context, teacherID string, keep func(model.ClassSession) bool) ([]model.ClassSession, error) {
	classes, err := e.store.ListTeacherClasses(ctx, teacherID)
	if err != nil {
		return nil, fmt.Errorf("list classes of %s: %w", teacherID, err)
	}
	now := e.now()
	out := make([]model.ClassSession, 0, len(classes))
	for _, c := range classes {
		if c.Status == model.ClassCancelled || !keep(c) {
			continue
		}
		w, err := e.window.WindowFor(c)
		if err != nil {
			return nil, err
		}
		if now.Before(w.Start) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}
