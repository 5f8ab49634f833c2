package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
	"github.com/blueocean-labs/explorer-api/internal/httputil"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

// RecoveryMiddleware converts handler panics into 500 responses instead of
// killing the connection. Outermost in the chain so it also covers the other
// middlewares.
type RecoveryMiddleware struct {
	log        *logger.Logger
	production bool
}

// NewRecoveryMiddleware creates the middleware.
func NewRecoveryMiddleware(log *logger.Logger, production bool) *RecoveryMiddleware {
	return &RecoveryMiddleware{log: log, production: production}
}

// Handler returns the middleware handler.
func (m *RecoveryMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				m.log.WithContext(r.Context()).WithFields(map[string]interface{}{
					"panic": rec,
					"stack": string(debug.Stack()),
					"path":  r.URL.Path,
				}).Error("handler panicked")

				httputil.WriteError(w, r, apperr.Internal("internal error", nil), m.production)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
