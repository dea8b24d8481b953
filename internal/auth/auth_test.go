package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusattend/internal/model"
)

const (
	testKey    = "test-signing-key"
	testIssuer = "campus-attendance"
)

func TestIssueAndParse(t *testing.T) {
	tok, err := Issue("s1", model.RoleStudent, testIssuer, testKey, time.Minute)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), tok.ExpiresAt, 2*time.Second)

	claims, err := Parse(tok.AccessToken, testKey, testIssuer)
	require.NoError(t, err)
	assert.Equal(t, "s1", claims.UserID())
	assert.Equal(t, model.RoleStudent, claims.Role)
}

func TestParseRejects(t *testing.T) {
	good, err := Issue("s1", model.RoleStudent, testIssuer, testKey, time.Minute)
	require.NoError(t, err)
	expired, err := Issue("s1", model.RoleStudent, testIssuer, testKey, -time.Minute)
	require.NoError(t, err)

	cases := map[string]struct {
		token, key, issuer string
	}{
		"wrong key":    {good.AccessToken, "other", testIssuer},
		"wrong issuer": {good.AccessToken, testKey, "someone-else"},
		"expired":      {expired.AccessToken, testKey, testIssuer},
		"garbage":      {"not.a.token", testKey, testIssuer},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(tc.token, tc.key, tc.issuer)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}

	_, err = Issue("", model.RoleStudent, testIssuer, testKey, time.Minute)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/teacher", UserAuth(testKey, testIssuer), RequireRole(model.RoleTeacher), func(c *gin.Context) {
		claims, _ := ClaimsFrom(c)
		c.String(http.StatusOK, claims.UserID())
	})

	teacher, err := Issue("t1", model.RoleTeacher, testIssuer, testKey, time.Minute)
	require.NoError(t, err)
	student, err := Issue("s1", model.RoleStudent, testIssuer, testKey, time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer " + student.AccessToken, http.StatusForbidden},
		{"teacher", "bearer " + teacher.AccessToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/teacher", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.code, w.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, "t1", w.Body.String())
			}
		})
	}
}
