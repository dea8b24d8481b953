package attendance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"campusattend/internal/model"
)

// MemoryRepository is an in-process Store. A single mutex serializes writes,
// so the (student, class) check-and-insert is atomic like the Postgres unique index.
type MemoryRepository struct {
	mu      sync.RWMutex
	users   map[string]model.User
	classes map[string]model.ClassSession
	records map[recordKey]model.AttendanceRecord
}

type recordKey struct {
	student string
	class   string
}

var _ Store = (*MemoryRepository)(nil)

// NewMemoryRepository creates an empty in-memory store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:   map[string]model.User{},
		classes: map[string]model.ClassSession{},
		records: map[recordKey]model.AttendanceRecord{},
	}
}

// PutUser adds or replaces a user.
func (m *MemoryRepository) PutUser(u model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

// PutClass adds or replaces a class session.
func (m *MemoryRepository) PutClass(c model.ClassSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.classes[c.ID] = c
}

// PutRecord adds or replaces a record without the uniqueness check.
func (m *MemoryRepository) PutRecord(rec model.AttendanceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[recordKey{rec.StudentID, rec.ClassID}] = rec
}

func (m *MemoryRepository) FindUser(_ context.Context, id string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryRepository) ListActiveStudents(_ context.Context, course string, semester int) ([]model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.User
	for _, u := range m.users {
		if u.IsStudent() && u.InCohort(course, semester) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryRepository) FindClass(_ context.Context, id string) (*model.ClassSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.classes[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *MemoryRepository) InsertClass(_ context.Context, c model.ClassSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.classes[c.ID]; ok {
		return fmt.Errorf("class %s already exists", c.ID)
	}
	m.classes[c.ID] = c
	return nil
}

func (m *MemoryRepository) StartClass(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[id]
	if !ok || c.Status != model.ClassScheduled {
		return false, nil
	}
	c.Status = model.ClassOngoing
	m.classes[id] = c
	return true, nil
}

func (m *MemoryRepository) CancelClass(_ context.Context, id, cancelledBy, reason string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.classes[id]
	if !ok || c.Status.Terminal() {
		return false, nil
	}
	c.Status = model.ClassCancelled
	c.CancelledBy = cancelledBy
	c.CancellationReason = reason
	c.CancelledAt = &at
	m.classes[id] = c
	return true, nil
}

func (m *MemoryRepository) ListCohortClasses(_ context.Context, course string, semester int) ([]model.ClassSession, error) {
	return m.listClasses(func(c model.ClassSession) bool { return c.Course == course && c.Semester == semester }), nil
}

func (m *MemoryRepository) ListTeacherClasses(_ context.Context, teacherID string) ([]model.ClassSession, error) {
	return m.listClasses(func(c model.ClassSession) bool { return c.TeacherRef == teacherID }), nil
}

func (m *MemoryRepository) listClasses(keep func(model.ClassSession) bool) []model.ClassSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.ClassSession
	for _, c := range m.classes {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		if out[i].StartTime != out[j].StartTime {
			return out[i].StartTime < out[j].StartTime
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *MemoryRepository) FindRecord(_ context.Context, studentID, classID string) (*model.AttendanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[recordKey{studentID, classID}]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryRepository) InsertRecord(_ context.Context, rec model.AttendanceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey{rec.StudentID, rec.ClassID}
	if _, ok := m.records[key]; ok {
		return fmt.Errorf("student %s class %s: %w", rec.StudentID, rec.ClassID, ErrDuplicateRecord)
	}
	m.records[key] = rec
	return nil
}

func (m *MemoryRepository) SaveCorrection(_ context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := recordKey{rec.StudentID, rec.ClassID}
	if cur, ok := m.records[key]; ok {
		cur.Status = rec.Status
		cur.LastModifiedBy = rec.LastModifiedBy
		cur.LastModifiedAt = rec.LastModifiedAt
		cur.ModificationReason = rec.ModificationReason
		rec = cur
	}
	m.records[key] = rec
	return rec, nil
}

func (m *MemoryRepository) ExcuseClassRecords(_ context.Context, classID, modifiedBy, note string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for key, rec := range m.records {
		if key.class != classID || rec.Status == model.StatusExcused {
			continue
		}
		rec.Status = model.StatusExcused
		rec.LastModifiedBy = modifiedBy
		rec.LastModifiedAt = &at
		rec.ModificationReason = note
		m.records[key] = rec
		n++
	}
	return n, nil
}

func (m *MemoryRepository) ListClassRecords(_ context.Context, classID string) ([]model.AttendanceRecord, error) {
	return m.listRecords(func(k recordKey) bool { return k.class == classID }), nil
}

func (m *MemoryRepository) ListStudentRecords(_ context.Context, studentID string) ([]model.AttendanceRecord, error) {
	return m.listRecords(func(k recordKey) bool { return k.student == studentID }), nil
}

func (m *MemoryRepository) listRecords(keep func(recordKey) bool) []model.AttendanceRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []model.AttendanceRecord
	for k, rec := range m.records {
		if keep(k) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MarkedAt.Before(out[j].MarkedAt) })
	return out
}
