package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"campusattend/internal/model"
	"campusattend/internal/queue"
)

func TestReconcilerExcusesLateRecords(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t)
	q := queue.NewInMemory(8)
	f.engine.events = q

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewReconciler(f.engine, nil).Run(ctx, q) }()

	_, err := f.engine.CancelClass(ctx, CancelClassRequest{TeacherID: "t1", ClassID: "c1", Reason: "Fire drill"})
	require.NoError(t, err)

	// The racing mark lands after the engine's own cascade; the reconciler
	// may run either before or after it, so publish once more to be sure.
	f.repo.PutRecord(model.AttendanceRecord{ID: "late", StudentID: "s3", ClassID: "c1",
		Status: model.StatusPresent, MarkedAt: f.now, MarkedBy: model.SelfMarked()})
	require.NoError(t, q.Publish(ctx, queue.Message{Type: queue.TypeClassCancelled, Body: []byte("c1")}))

	assert.Eventually(t, func() bool {
		rec, _ := f.repo.FindRecord(context.Background(), "s3", "c1")
		return rec != nil && rec.Status == model.StatusExcused
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestReconcilerHandleIgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)
	r := NewReconciler(f.engine, nil)

	r.Handle(context.Background(), queue.Message{Type: "something.else", Body: []byte("c1")})
	r.Handle(context.Background(), queue.Message{Type: queue.TypeClassCancelled, Body: []byte("missing")})
	assert.Equal(t, model.ClassScheduled, f.class(t, "c1").Status)
}
