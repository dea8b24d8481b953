package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusattend/internal/model"
)

func TestTeacherClasses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedTerm(f)

	classes, err := f.engine.TeacherClasses(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c0", "c1", "c2", "c3"}, classIDs(classes))

	classes, err = f.engine.TeacherClasses(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, classes)
}

func TestStudentClasses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedTerm(f)

	classes, err := f.engine.StudentClasses(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c0", "c1", "c2", "c3"}, classIDs(classes))

	u, _ := f.repo.FindUser(ctx, "s2")
	u.EnrollmentDate = time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	f.repo.PutUser(*u)
	classes, err = f.engine.StudentClasses(ctx, "s2")
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c3"}, classIDs(classes))

	_, err = f.engine.StudentClasses(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTeacherAnalytics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedTerm(f)

	_, err := f.engine.MarkAttendance(ctx, markS1())
	require.NoError(t, err)
	_, err = f.engine.UpdateAttendance(ctx, UpdateAttendanceRequest{TeacherID: "t1", ClassID: "c0", StudentID: "s2", Present: true})
	require.NoError(t, err)

	// c2 has not started and c3 is cancelled, so neither counts.
	got, err := f.engine.TeacherAnalytics(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []SubjectSummary{
		{Subject: "algorithms", Total: 3, Attended: 1, Percentage: 33.33, BelowMinimum: true},
		{Subject: "networks", Total: 3, Attended: 1, Percentage: 33.33, BelowMinimum: true},
	}, got)

	got, err = f.engine.TeacherAnalytics(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, got)
}

// seedMarch adds algorithms classes on 2025-02-24 and 2025-03-07, enrolls s2
// on 2025-03-08 and gives s3 a late record for 03-07 before deactivating them.
func seedMarch(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	seedTerm(f)
	f.repo.PutClass(classAt("feb", "2025-02-24", "09:00", "10:00"))
	f.repo.PutClass(classAt("a", "2025-03-07", "09:00", "10:00"))

	u, _ := f.repo.FindUser(ctx, "s2")
	u.EnrollmentDate = time.Date(2025, 3, 8, 0, 0, 0, 0, time.UTC)
	f.repo.PutUser(*u)

	f.repo.PutRecord(model.AttendanceRecord{ID: "r3", StudentID: "s3", ClassID: "a", Status: model.StatusLate,
		MarkedAt: time.Date(2025, 3, 7, 9, 12, 0, 0, time.UTC)})
	u, _ = f.repo.FindUser(ctx, "s3")
	u.IsActive = false
	f.repo.PutUser(*u)

	_, err := f.engine.MarkAttendance(ctx, markS1())
	require.NoError(t, err)
}

func TestTeacherAttendanceMatrixMonth(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedMarch(t, f)

	m, err := f.engine.TeacherAttendanceMatrix(ctx, MatrixQuery{
		TeacherID: "t1", Course: "CS", Semester: 3, Subject: "algorithms", Month: time.March, Year: 2025,
	})
	require.NoError(t, err)

	require.Len(t, m.Columns, 2)
	assert.Equal(t, MatrixColumn{ClassID: "a", Date: "2025-03-07", StartTime: "09:00", EndTime: "10:00"}, m.Columns[0])
	assert.Equal(t, "c1", m.Columns[1].ClassID)

	require.Len(t, m.Rows, 3)
	s1, s2, s3 := m.Rows[0], m.Rows[1], m.Rows[2]

	assert.Equal(t, "s1", s1.Student.ID)
	assert.Equal(t, []model.AttendanceStatus{model.StatusAbsent, model.StatusPresent}, s1.Statuses)
	assert.Equal(t, 2, s1.Total)
	assert.Equal(t, 50.0, s1.Percentage)
	assert.True(t, s1.BelowMinimum)

	assert.Equal(t, "s2", s2.Student.ID)
	assert.Equal(t, []model.AttendanceStatus{"", model.StatusAbsent}, s2.Statuses)
	assert.Equal(t, 1, s2.Total)
	assert.Equal(t, 0, s2.Attended)

	assert.Equal(t, "s3", s3.Student.ID, "deactivated students with records stay in the grid")
	assert.Equal(t, []model.AttendanceStatus{model.StatusLate, model.StatusAbsent}, s3.Statuses)
	assert.Equal(t, 1, s3.Attended)
}

func TestTeacherAttendanceMatrixWholeTerm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedMarch(t, f)

	m, err := f.engine.TeacherAttendanceMatrix(ctx, MatrixQuery{
		TeacherID: "t1", Course: "CS", Semester: 3, Subject: "algorithms",
	})
	require.NoError(t, err)
	var ids []string
	for _, c := range m.Columns {
		ids = append(ids, c.ClassID)
	}
	assert.Equal(t, []string{"feb", "a", "c1"}, ids)
	require.NotEmpty(t, m.Rows)
	assert.Equal(t, 3, m.Rows[0].Total)
	assert.Equal(t, 33.33, m.Rows[0].Percentage)
}

func TestTeacherAttendanceMatrixRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.TeacherAttendanceMatrix(ctx, MatrixQuery{TeacherID: "t1", Course: "CS", Semester: 3})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.engine.TeacherAttendanceMatrix(ctx, MatrixQuery{
		TeacherID: "t1", Course: "CS", Semester: 3, Subject: "algorithms", Month: time.March,
	})
	assert.ErrorIs(t, err, ErrInvalidRequest, "a month needs a year")

	m, err := f.engine.TeacherAttendanceMatrix(ctx, MatrixQuery{
		TeacherID: "t2", Course: "CS", Semester: 3, Subject: "algorithms",
	})
	require.NoError(t, err)
	assert.Empty(t, m.Columns)
	assert.Empty(t, m.Rows)
}

func TestAttendanceMonths(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedMarch(t, f)
	f.repo.PutClass(classAt("apr", "2025-04-02", "09:00", "10:00"))
	cancelled := classAt("may", "2025-05-02", "09:00", "10:00")
	cancelled.Status = model.ClassCancelled
	f.repo.PutClass(cancelled)

	months, err := f.engine.AttendanceMonths(ctx, "t1", "CS", 3, "algorithms")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-02", "2025-03", "2025-04"}, months)

	months, err = f.engine.AttendanceMonths(ctx, "t1", "CS", 3, "networks")
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-03"}, months)

	months, err = f.engine.AttendanceMonths(ctx, "t1", "CS", 3, "chemistry")
	require.NoError(t, err)
	assert.Empty(t, months)
}
