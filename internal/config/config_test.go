package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CAMPUS_TZ", "")
	app, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", app.HTTPPort)
	assert.Equal(t, BackendPostgres, app.StoreBackend)
	assert.Equal(t, BackendRedis, app.QueueBackend)
	assert.Equal(t, 15*time.Minute, app.AccessTTL)
	assert.Equal(t, 0.6, app.Engine.MatchThreshold)
	assert.Equal(t, 50, app.Engine.DefaultRadiusMeters)
	assert.Equal(t, 10, app.Engine.LateGraceMinutes)
	assert.Equal(t, 5, app.Engine.EndGraceMinutes)
	assert.Equal(t, 75.0, app.Engine.MinAttendancePercentage)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("QUEUE_BACKEND", "memory")
	t.Setenv("FACE_MATCH_THRESHOLD", "0.45")
	t.Setenv("LATE_GRACE_MINUTES", "15")
	t.Setenv("CAMPUS_TZ", "Asia/Kolkata")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")

	app, err := Load()
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, app.StoreBackend)
	assert.Equal(t, 0.45, app.Engine.MatchThreshold)
	assert.Equal(t, 15, app.Engine.LateGraceMinutes)
	assert.Equal(t, "Asia/Kolkata", app.Engine.Location.String())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, app.CORSOrigins)
}

func TestLoadReportsEveryBadValue(t *testing.T) {
	t.Setenv("ACCESS_TTL", "soon")
	t.Setenv("RATE_LIMIT_PER_MIN", "lots")
	t.Setenv("CAMPUS_TZ", "Mars/Olympus")
	t.Setenv("STORE_BACKEND", "mongo")

	_, err := Load()
	require.Error(t, err)
	for _, key := range []string{"ACCESS_TTL", "RATE_LIMIT_PER_MIN", "CAMPUS_TZ", "STORE_BACKEND"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoadRejectsOutOfRangeTunables(t *testing.T) {
	t.Setenv("CAMPUS_TZ", "")
	t.Setenv("DEFAULT_ATTENDANCE_RADIUS", "1000")
	t.Setenv("LATE_GRACE_MINUTES", "61")
	t.Setenv("END_GRACE_MINUTES", "-1")

	_, err := Load()
	require.Error(t, err)
	for _, key := range []string{"DEFAULT_ATTENDANCE_RADIUS", "LATE_GRACE_MINUTES", "END_GRACE_MINUTES"} {
		assert.Contains(t, err.Error(), key)
	}

	t.Setenv("DEFAULT_ATTENDANCE_RADIUS", "500")
	t.Setenv("LATE_GRACE_MINUTES", "0")
	t.Setenv("END_GRACE_MINUTES", "30")
	app, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500, app.Engine.DefaultRadiusMeters)
}
