package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func protected(t *testing.T, m *JWTMiddleware, token string) *httptest.ResponseRecorder {
	t.Helper()
	h := m.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := ClaimsFromContext(r.Context())
		require.NotNil(t, c)
		assert.Equal(t, "ops", c.Subject)
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/admin/usage", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAdmin_ValidToken(t *testing.T) {
	token, err := IssueAdminToken(secret, "ops", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, protected(t, NewJWTMiddleware(secret), token).Code)
}

func TestRequireAdmin_Rejections(t *testing.T) {
	expired, err := IssueAdminToken(secret, "ops", -time.Minute)
	require.NoError(t, err)
	otherKey, err := IssueAdminToken("other", "ops", time.Hour)
	require.NoError(t, err)
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: RoleAdmin}).SignedString([]byte(secret))
	require.NoError(t, err)
	viewer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             "viewer",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"expired", expired, http.StatusUnauthorized},
		{"wrong key", otherKey, http.StatusUnauthorized},
		{"no expiry", noExp, http.StatusUnauthorized},
		{"not admin", viewer, http.StatusForbidden},
	}
	m := NewJWTMiddleware(secret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, protected(t, m, tt.token).Code)
		})
	}
}

func TestRequireAdmin_DisabledWithoutSecret(t *testing.T) {
	token, err := IssueAdminToken(secret, "ops", time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusServiceUnavailable, protected(t, NewJWTMiddleware(""), token).Code)
}

func TestIssueAdminToken_NoSecret(t *testing.T) {
	_, err := IssueAdminToken("", "ops", time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)
}
