// Package auth issues and verifies the signed credentials that identify
// principals across calls, and exposes the login/registration service.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/storage"
)

const (
	// DefaultTokenTTL is the credential lifetime for a normal login.
	DefaultTokenTTL = 7 * 24 * time.Hour
	// RememberTokenTTL is the credential lifetime with remember-me set.
	RememberTokenTTL = 30 * 24 * time.Hour
)

// Claims are the JWT claims embedded in an issued credential.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies credentials. Verification resolves the
// embedded principal id against the store, so a token for a deleted
// principal always fails.
type TokenIssuer struct {
	secret      []byte
	issuer      string
	ttl         time.Duration
	rememberTTL time.Duration
	store       storage.PrincipalStore
}

// NewTokenIssuer creates an issuer with the server-held signing secret.
func NewTokenIssuer(secret []byte, issuer string, store storage.PrincipalStore) *TokenIssuer {
	return &TokenIssuer{
		secret:      secret,
		issuer:      issuer,
		ttl:         DefaultTokenTTL,
		rememberTTL: RememberTokenTTL,
		store:       store,
	}
}

// Issue produces a signed credential for the principal. The remember flag
// extends the expiry. There is no server-side revocation; tokens stay valid
// until expiry.
func (t *TokenIssuer) Issue(p principal.Principal, remember bool) (string, time.Time, error) {
	ttl := t.ttl
	if remember {
		ttl = t.rememberTTL
	}
	now := time.Now()
	expiresAt := now.Add(ttl)

	claims := &Claims{
		Email: p.Email,
		Role:  string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, apperr.Internal("sign credential", err)
	}
	return signed, expiresAt, nil
}

// Verify validates signature and expiry, then resolves the principal from
// the store. Expired, tampered and orphaned tokens fail with distinct
// internal codes but an identical transport status.
func (t *TokenIssuer) Verify(ctx context.Context, tokenString string) (principal.Projection, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return principal.Projection{}, apperr.ExpiredToken(err)
		}
		return principal.Projection{}, apperr.InvalidToken(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return principal.Projection{}, apperr.InvalidToken(nil)
	}

	p, err := t.store.GetPrincipal(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return principal.Projection{}, apperr.PrincipalNotFound(claims.Subject)
		}
		return principal.Projection{}, apperr.Internal("resolve principal", err)
	}

	return p.Project(), nil
}
