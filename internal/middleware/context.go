// Package middleware provides the HTTP middleware chain: request identity,
// logging, metrics, CORS, rate limiting, authentication, role checks and
// panic recovery. Handlers downstream read the request context populated
// here.
package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
)

type principalKey struct{}

// WithPrincipal attaches the verified principal to the context.
func WithPrincipal(ctx context.Context, p principal.Projection) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom extracts the verified principal, if any.
func PrincipalFrom(ctx context.Context) (principal.Projection, bool) {
	p, ok := ctx.Value(principalKey{}).(principal.Projection)
	return p, ok
}

// ClientIP resolves the caller address, preferring the first entry of
// X-Forwarded-For when present.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			fwd = fwd[:idx]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
