package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtinfra "github.com/edutech-foundation/site-api/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var signer = jwtinfra.NewHMACProvider([]byte("middleware-test"), time.Hour)

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func serveAuth(t *testing.T, header string) (*httptest.ResponseRecorder, *jwtinfra.Claims) {
	t.Helper()
	var got *jwtinfra.Claims
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	Auth(signer)(next).ServeHTTP(rr, req)
	return rr, got
}

func TestAuth_RejectsMalformedHeaders(t *testing.T) {
	for _, h := range []string{"", "Bearer", "Bearer   ", "Basic dXNlcjpwdw==", "Token abc"} {
		rr, claims := serveAuth(t, h)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, h)
		assert.Nil(t, claims, h)

		var body map[string]string
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, "missing or invalid authorization header", body["message"], h)
	}
}

func TestAuth_RejectsForeignAndGarbageTokens(t *testing.T) {
	foreign, _, err := jwtinfra.NewHMACProvider([]byte("someone-else"), time.Hour).Sign("u1", "a@x.com")
	require.NoError(t, err)

	for _, tok := range []string{"not-a-jwt", foreign} {
		rr, _ := serveAuth(t, "Bearer "+tok)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, "invalid or expired token", body["message"])
	}
}

func TestAuth_AcceptsAnySchemeCase(t *testing.T) {
	tok, _, err := signer.Sign("01HZX", "ada@example.org")
	require.NoError(t, err)

	for _, scheme := range []string{"Bearer", "bearer", "BEARER"} {
		rr, claims := serveAuth(t, scheme+" "+tok)
		assert.Equal(t, http.StatusOK, rr.Code, scheme)
		require.NotNil(t, claims, scheme)
		assert.Equal(t, "01HZX", claims.UserID)
		assert.Equal(t, "ada@example.org", claims.Email)
	}
}

func TestClaimsFromContext_Missing(t *testing.T) {
	_, ok := ClaimsFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
