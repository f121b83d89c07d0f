package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-sneakers/internal/common"
)

const testSecret = "test-secret"

func sign(t *testing.T, alg jwa.SignatureAlgorithm, secret string, claims map[string]any) string {
	t.Helper()
	now := time.Now()
	b := jwt.NewBuilder().Issuer("idp").Audience([]string{"sneakers"}).Subject("user-1").
		IssuedAt(now).Expiration(now.Add(time.Hour))
	for k, v := range claims {
		b = b.Claim(k, v)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	signed, err := jwt.Sign(tok, jwt.WithKey(alg, []byte(secret)))
	require.NoError(t, err)
	return string(signed)
}

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(VerifierConfig{Secret: testSecret, Issuer: "idp", Audience: "sneakers", ClockSkew: time.Second})
	require.NoError(t, err)
	return v
}

func TestNewVerifierRequiresSecret(t *testing.T) {
	_, err := NewVerifier(VerifierConfig{})
	require.Error(t, err)
}

func TestVerifyReadsClaims(t *testing.T) {
	v := newTestVerifier(t)
	claims, err := v.Verify(sign(t, jwa.HS256, testSecret, map[string]any{
		RolesClaim: []string{"admin", "staff"},
		EmailClaim: "buyer@example.com",
	}))
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.UserID)
	require.Equal(t, []string{"admin", "staff"}, claims.Roles)
	require.Equal(t, "buyer@example.com", claims.Email)

	claims, err = v.Verify(sign(t, jwa.HS256, testSecret, map[string]any{RolesClaim: "customer staff"}))
	require.NoError(t, err)
	require.Equal(t, []string{"customer", "staff"}, claims.Roles)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	v := newTestVerifier(t)

	_, err := v.Verify("")
	require.True(t, common.IsAppError(err))

	_, err = v.Verify("not-a-token")
	require.Error(t, err)

	_, err = v.Verify(sign(t, jwa.HS256, "other-secret", nil))
	require.Error(t, err)

	_, err = v.Verify(sign(t, jwa.HS512, testSecret, nil))
	require.Error(t, err)

	_, err = v.Verify(sign(t, jwa.HS256, testSecret, map[string]any{jwt.IssuerKey: "someone-else"}))
	require.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	m := Middleware{Verifier: newTestVerifier(t)}
	var seenUser string
	var seenRoles []string
	var seenEmail string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenUser, _ = common.UserID(r.Context())
		seenRoles = common.Roles(r.Context())
		seenEmail = common.Email(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	token := sign(t, jwa.HS256, testSecret, map[string]any{RolesClaim: []string{"staff"}, EmailClaim: "staff@example.com"})

	t.Run("authenticate anonymous", func(t *testing.T) {
		seenUser = "unset"
		rec := httptest.NewRecorder()
		m.Authenticate(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Empty(t, seenUser)
	})

	t.Run("authenticate invalid token continues anonymously", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		m.Authenticate(next).ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Empty(t, seenUser)
	})

	t.Run("authenticate valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "bearer "+token)
		rec := httptest.NewRecorder()
		m.Authenticate(next).ServeHTTP(rec, req)
		require.Equal(t, "user-1", seenUser)
		require.Equal(t, []string{"staff"}, seenRoles)
		require.Equal(t, "staff@example.com", seenEmail)
	})

	t.Run("require auth", func(t *testing.T) {
		rec := httptest.NewRecorder()
		m.RequireAuth(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec = httptest.NewRecorder()
		m.RequireAuth(next).ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)
	})
}
