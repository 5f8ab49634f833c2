package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
	"github.com/blueocean-labs/explorer-api/internal/auth"
	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/httputil"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

// AuthMiddleware verifies bearer credentials and attaches the principal to
// the request context.
type AuthMiddleware struct {
	issuer     *auth.TokenIssuer
	log        *logger.Logger
	production bool
}

// NewAuthMiddleware creates the middleware.
func NewAuthMiddleware(issuer *auth.TokenIssuer, log *logger.Logger, production bool) *AuthMiddleware {
	return &AuthMiddleware{issuer: issuer, log: log, production: production}
}

// Require rejects requests without a valid credential.
func (m *AuthMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			m.respondError(w, r, err)
			return
		}

		p, err := m.issuer.Verify(r.Context(), token)
		if err != nil {
			m.log.WithContext(r.Context()).WithError(err).Warn("credential verification failed")
			m.respondError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(m.attach(r, p)))
	})
}

// Optional attaches the principal when a valid credential is present and
// continues anonymously otherwise. Missing and invalid credentials are
// treated the same: the request proceeds with no principal.
func (m *AuthMiddleware) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		p, err := m.issuer.Verify(r.Context(), token)
		if err != nil {
			m.log.WithContext(r.Context()).WithError(err).Warn("credential verification failed, continuing anonymously")
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(m.attach(r, p)))
	})
}

// RequireRoles rejects authenticated principals whose role is not in the
// allowed set. Must run after Require.
func (m *AuthMiddleware) RequireRoles(roles ...principal.Role) func(http.Handler) http.Handler {
	allowed := make(map[principal.Role]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				m.respondError(w, r, apperr.Unauthorized("authentication required"))
				return
			}
			if !allowed[p.Role] {
				m.log.WithContext(r.Context()).WithField("role", string(p.Role)).Warn("insufficient role")
				m.respondError(w, r, apperr.Forbidden("insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// attach populates the request context with the principal and the log
// correlation fields.
func (m *AuthMiddleware) attach(r *http.Request, p principal.Projection) context.Context {
	ctx := WithPrincipal(r.Context(), p)
	ctx = logger.WithUserID(ctx, p.ID)
	return logger.WithRole(ctx, string(p.Role))
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, err, m.production)
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", apperr.Unauthorized("missing authorization header")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", apperr.Unauthorized("invalid authorization header format")
	}
	return parts[1], nil
}
