package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, secret, subject, role string) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
		Role:  role,
		Email: "user@example.com",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func serveAuth(t *testing.T, secret, header string) (*httptest.ResponseRecorder, *Principal) {
	t.Helper()
	var seen *Principal
	handler := Auth(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		if ok {
			seen = &p
		}
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/doctor/queue", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, seen
}

func TestAuthMissingSecret(t *testing.T) {
	rec, _ := serveAuth(t, "", "Bearer x")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMissingHeader(t *testing.T) {
	rec, _ := serveAuth(t, "secret", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestAuthWrongSecret(t *testing.T) {
	rec, seen := serveAuth(t, "secret", "Bearer "+signedToken(t, "wrong", "user-1", "doctor"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)
}

func TestAuthMissingSubject(t *testing.T) {
	rec, _ := serveAuth(t, "secret", "Bearer "+signedToken(t, "secret", "", "doctor"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthValidToken(t *testing.T) {
	rec, seen := serveAuth(t, "secret", "Bearer "+signedToken(t, "secret", "user-1", " Doctor "))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, "user-1", seen.UserID)
	assert.Equal(t, RoleDoctor, seen.Role)
	assert.Equal(t, "user@example.com", seen.Email)
}

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mw := RequireRole(RoleDoctor, RoleAdmin)

	tests := []struct {
		name      string
		principal *Principal
		want      int
	}{
		{"unauthenticated", nil, http.StatusUnauthorized},
		{"patient forbidden", &Principal{UserID: "u", Role: RolePatient}, http.StatusForbidden},
		{"doctor allowed", &Principal{UserID: "u", Role: RoleDoctor}, http.StatusOK},
		{"admin allowed", &Principal{UserID: "u", Role: RoleAdmin}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.principal != nil {
				req = req.WithContext(WithPrincipal(req.Context(), *tt.principal))
			}
			rec := httptest.NewRecorder()
			mw(ok).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
