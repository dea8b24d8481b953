package attendance

import (
	"context"
	"sync"
	"testing"
	"time"

	"campusattend/internal/biometric"
	"campusattend/internal/geofence"
	"campusattend/internal/model"
	"campusattend/internal/queue"
)

var campus = geofence.Point{Latitude: 12.9, Longitude: 77.6}

// face returns a descriptor whose first component is v; the distance between
// face(a) and face(b) is |a-b|.
func face(v float64) biometric.Descriptor {
	d := make(biometric.Descriptor, biometric.DescriptorLength)
	d[0] = v
	return d
}

func at(clock string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04:05", "2025-03-10 "+clock, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []queue.Message
}

func (p *recordingPublisher) Publish(_ context.Context, msg queue.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *recordingPublisher) messages() []queue.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]queue.Message(nil), p.msgs...)
}

type fixture struct {
	repo   *MemoryRepository
	events *recordingPublisher
	now    time.Time
	engine *Engine
}

// newFixture seeds a CS semester-3 cohort with students s1..s3, a teacher t1
// and class c1 on 2025-03-10 09:00-10:00 at the campus point.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:   NewMemoryRepository(),
		events: &recordingPublisher{},
		now:    at("09:05:00"),
	}
	cfg := DefaultConfig()
	cfg.Location = time.UTC
	f.engine = NewEngine(f.repo, cfg,
		WithClock(func() time.Time { return f.now }),
		WithEvents(f.events))

	enrolled := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"s1", "s2", "s3"} {
		f.repo.PutUser(model.User{
			ID: id, Name: "Student " + id, Email: id + "@campus.test", Role: model.RoleStudent,
			Course: "CS", Semester: 3, Descriptor: face(float64(i) * 5),
			EnrollmentDate: enrolled, IsActive: true,
		})
	}
	f.repo.PutUser(model.User{ID: "t1", Name: "Teacher", Role: model.RoleTeacher, IsActive: true})
	f.repo.PutUser(model.User{ID: "t2", Name: "Other Teacher", Role: model.RoleTeacher, IsActive: true})
	f.repo.PutClass(classAt("c1", "2025-03-10", "09:00", "10:00"))
	return f
}

func classAt(id, date, start, end string) model.ClassSession {
	return model.ClassSession{
		ID: id, SubjectRef: "algorithms", TeacherRef: "t1", Course: "CS", Semester: 3,
		Date: date, StartTime: start, EndTime: end, Location: campus,
		AttendanceRadiusMeters: 50, LateGraceMinutes: 10, EndGraceMinutes: 5,
		Status: model.ClassScheduled,
	}
}

// markS1 is a valid self-mark by s1 standing on the class point.
func markS1() MarkAttendanceRequest {
	return MarkAttendanceRequest{UserID: "s1", ClassID: "c1", Descriptor: face(0.4), Location: campus}
}

func (f *fixture) record(t *testing.T, student, class string) *model.AttendanceRecord {
	t.Helper()
	rec, err := f.repo.FindRecord(context.Background(), student, class)
	if err != nil {
		t.Fatalf("find record: %v", err)
	}
	return rec
}

func (f *fixture) class(t *testing.T, id string) model.ClassSession {
	t.Helper()
	c, err := f.repo.FindClass(context.Background(), id)
	if err != nil || c == nil {
		t.Fatalf("find class %s: %v", id, err)
	}
	return *c
}
