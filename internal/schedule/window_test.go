package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusattend/internal/model"
)

func session() model.ClassSession {
	return model.ClassSession{
		ID:               "c1",
		Date:             "2025-03-10",
		StartTime:        "09:00",
		EndTime:          "10:00",
		LateGraceMinutes: 10,
		EndGraceMinutes:  5,
		Status:           model.ClassScheduled,
	}
}

func at(h, m, s int) time.Time {
	return time.Date(2025, 3, 10, h, m, s, 0, time.UTC)
}

func TestEvaluateBoundaries(t *testing.T) {
	e := NewEvaluator(time.UTC)

	tests := []struct {
		name string
		now  time.Time
		want Verdict
	}{
		{"one second early", at(8, 59, 59), VerdictEarly},
		{"at start", at(9, 0, 0), VerdictPresent},
		{"at late threshold", at(9, 10, 0), VerdictPresent},
		{"just after late threshold", at(9, 10, 1), VerdictLate},
		{"at end", at(10, 0, 0), VerdictLate},
		{"at end grace", at(10, 5, 0), VerdictLate},
		{"after end grace", at(10, 5, 1), VerdictClosed},
		{"previous day", at(9, 5, 0).AddDate(0, 0, -1), VerdictEarly},
		{"next day", at(9, 5, 0).AddDate(0, 0, 1), VerdictClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Evaluate(session(), tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Verdict)
			assert.NotEmpty(t, res.Reason)
		})
	}
}

func TestEvaluateCancelledShortCircuits(t *testing.T) {
	c := session()
	c.Status = model.ClassCancelled
	c.StartTime = "bogus"

	res, err := NewEvaluator(time.UTC).Evaluate(c, at(9, 5, 0))
	require.NoError(t, err)
	assert.Equal(t, VerdictCancelled, res.Verdict)
	assert.False(t, res.Verdict.Accepted())
}

func TestEvaluateCompletedIsClosed(t *testing.T) {
	c := session()
	c.Status = model.ClassCompleted

	res, err := NewEvaluator(time.UTC).Evaluate(c, at(9, 5, 0))
	require.NoError(t, err)
	assert.Equal(t, VerdictClosed, res.Verdict)
}

func TestEvaluateUsesWallClockInLocation(t *testing.T) {
	kolkata := time.FixedZone("IST", 5*3600+1800)
	e := NewEvaluator(kolkata)

	// 09:05 IST is 03:35 UTC on the same date.
	now := time.Date(2025, 3, 10, 3, 35, 0, 0, time.UTC)
	res, err := e.Evaluate(session(), now)
	require.NoError(t, err)
	assert.Equal(t, VerdictPresent, res.Verdict)
	assert.Equal(t, 9, res.Window.Start.Hour())
	assert.Equal(t, 10, res.Window.Start.Day())
}

func TestEvaluateMalformedSession(t *testing.T) {
	e := NewEvaluator(time.UTC)

	c := session()
	c.EndTime = "08:00"
	_, err := e.Evaluate(c, at(9, 0, 0))
	assert.Error(t, err)

	c = session()
	c.Date = "March 10"
	_, err = e.Evaluate(c, at(9, 0, 0))
	assert.Error(t, err)
}

func TestWindowFor(t *testing.T) {
	w, err := NewEvaluator(time.UTC).WindowFor(session())
	require.NoError(t, err)
	assert.Equal(t, at(9, 0, 0), w.Start)
	assert.Equal(t, at(9, 10, 0), w.LateThreshold)
	assert.Equal(t, at(10, 0, 0), w.End)
	assert.Equal(t, at(10, 5, 0), w.EndWithGrace)
}
