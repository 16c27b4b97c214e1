// Package auth verifies the HS256 bearer tokens issued to dashboard users and
// the optional visitor token passed to POST /chat. Both use the same secret.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrNoSecret is returned when verification is attempted without a secret.
	ErrNoSecret = errors.New("auth: no signing secret configured")
	// ErrInvalidToken covers malformed, expired, badly signed and subject-less tokens.
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Claims are the registered claims plus an optional email.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks tokens signed with Secret.
type Verifier struct {
	Secret []byte
	// Leeway tolerates small clock skew on exp/nbf.
	Leeway time.Duration
}

// NewVerifier returns a Verifier for secret with a 30s leeway.
func NewVerifier(secret string) *Verifier {
	return &Verifier{Secret: []byte(secret), Leeway: 30 * time.Second}
}

// Verify parses raw and returns its claims. The subject must be present.
func (v *Verifier) Verify(raw string) (*Claims, error) {
	if v == nil || len(v.Secret) == 0 {
		return nil, ErrNoSecret
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.Secret, nil
	}, jwt.WithLeeway(v.Leeway), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Sign issues an HS256 token for subject valid for ttl. Used by the CLI and
// tests; production tokens come from the identity provider.
func Sign(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// BearerToken extracts the token from an "Authorization: Bearer <t>" value.
func BearerToken(header string) string {
	const prefix = "bearer "
	h := strings.TrimSpace(header)
	if len(h) < len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}
