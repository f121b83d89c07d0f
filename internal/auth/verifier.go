// Package auth verifies bearer tokens issued by the external identity
// provider and places the caller on the request context.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/backend-sneakers/internal/common"
)

// Private claims read from the token.
const (
	RolesClaim = "roles"
	EmailClaim = "email"
)

// Claims is the caller identity carried by a verified token.
type Claims struct {
	UserID string
	Roles  []string
	Email  string
}

// Verifier validates HS256 tokens.
type Verifier struct {
	secret    []byte
	validator TokenValidator
	now       func() time.Time
}

// VerifierConfig configures NewVerifier.
type VerifierConfig struct {
	Secret    string
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Now       func() time.Time
}

// NewVerifier builds a Verifier for the shared secret.
func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth: secret is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Verifier{
		secret: []byte(cfg.Secret),
		validator: TokenValidator{
			Issuer:    cfg.Issuer,
			Audience:  cfg.Audience,
			ClockSkew: cfg.ClockSkew,
			Algorithm: jwa.HS256,
		},
		now: now,
	}, nil
}

// Verify parses and validates token, returning its claims.
func (v *Verifier) Verify(token string) (Claims, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return Claims{}, unauthorized(errors.New("auth: token missing"))
	}
	algorithm, err := tokenAlgorithm(trimmed)
	if err != nil {
		return Claims{}, unauthorized(err)
	}
	if algorithm != v.validator.Algorithm {
		return Claims{}, unauthorized(fmt.Errorf("auth: unexpected token algorithm %s", algorithm))
	}
	parsed, err := jwt.ParseString(trimmed, jwt.WithKey(algorithm, v.secret), jwt.WithValidate(false))
	if err != nil {
		return Claims{}, unauthorized(err)
	}
	if err := v.validator.Validate(parsed, algorithm, v.now()); err != nil {
		return Claims{}, unauthorized(err)
	}
	claims := Claims{UserID: parsed.Subject(), Roles: stringList(parsed, RolesClaim)}
	if raw, ok := parsed.Get(EmailClaim); ok {
		claims.Email, _ = raw.(string)
	}
	return claims, nil
}

func tokenAlgorithm(token string) (jwa.SignatureAlgorithm, error) {
	message, err := jws.ParseString(token)
	if err != nil {
		return "", err
	}
	signatures := message.Signatures()
	if len(signatures) != 1 {
		return "", errors.New("auth: expected exactly one signature")
	}
	headers := signatures[0].ProtectedHeaders()
	if headers == nil || headers.Algorithm() == "" {
		return "", errors.New("auth: token missing algorithm")
	}
	if headers.Algorithm() == jwa.NoSignature {
		return "", errors.New("auth: token uses none algorithm")
	}
	return headers.Algorithm(), nil
}

// stringList accepts either a JSON array or a space separated string.
func stringList(tok jwt.Token, claim string) []string {
	raw, ok := tok.Get(claim)
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return strings.Fields(v)
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func unauthorized(err error) error {
	return common.NewAppError("UNAUTHORIZED", "missing or invalid token", http.StatusUnauthorized, err)
}
