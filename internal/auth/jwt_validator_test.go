package auth

import (
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

func buildToken(t *testing.T, mutate func(*jwt.Builder) *jwt.Builder) jwt.Token {
	t.Helper()
	now := time.Now()
	b := jwt.NewBuilder().
		Issuer("issuer").
		Audience([]string{"aud"}).
		Subject("sub").
		IssuedAt(now).
		NotBefore(now).
		Expiration(now.Add(time.Minute))
	if mutate != nil {
		b = mutate(b)
	}
	tok, err := b.Build()
	require.NoError(t, err)
	return tok
}

func TestTokenValidatorValidateSuccess(t *testing.T) {
	validator := TokenValidator{Issuer: "issuer", Audience: "aud", ClockSkew: time.Second, Algorithm: jwa.HS256}
	require.NoError(t, validator.Validate(buildToken(t, nil), jwa.HS256, time.Now()))
}

func TestTokenValidatorRejects(t *testing.T) {
	now := time.Now()
	validator := TokenValidator{Issuer: "issuer", Audience: "aud", ClockSkew: time.Second, Algorithm: jwa.HS256}

	cases := map[string]struct {
		token     jwt.Token
		algorithm jwa.SignatureAlgorithm
	}{
		"issuer mismatch": {token: buildToken(t, func(b *jwt.Builder) *jwt.Builder { return b.Issuer("other") }), algorithm: jwa.HS256},
		"audience mismatch": {token: buildToken(t, func(b *jwt.Builder) *jwt.Builder { return b.Audience([]string{"web"}) }), algorithm: jwa.HS256},
		"expired": {token: buildToken(t, func(b *jwt.Builder) *jwt.Builder {
			return b.IssuedAt(now.Add(-2 * time.Hour)).NotBefore(now.Add(-2 * time.Hour)).Expiration(now.Add(-time.Minute))
		}), algorithm: jwa.HS256},
		"not yet valid": {token: buildToken(t, func(b *jwt.Builder) *jwt.Builder {
			return b.NotBefore(now.Add(5 * time.Minute)).Expiration(now.Add(10 * time.Minute))
		}), algorithm: jwa.HS256},
		"missing subject": {token: buildToken(t, func(b *jwt.Builder) *jwt.Builder { return b.Subject("") }), algorithm: jwa.HS256},
		"wrong algorithm":  {token: buildToken(t, nil), algorithm: jwa.HS512},
		"none algorithm":   {token: buildToken(t, nil), algorithm: jwa.NoSignature},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, validator.Validate(tc.token, tc.algorithm, now))
		})
	}
	require.Error(t, validator.Validate(nil, jwa.HS256, now))
}
