package middleware

import (
	"net/http"
	"strconv"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
	"github.com/blueocean-labs/explorer-api/internal/httputil"
	"github.com/blueocean-labs/explorer-api/internal/metrics"
	"github.com/blueocean-labs/explorer-api/internal/ratelimit"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

// KeyFunc derives the rate limit key for a request.
type KeyFunc func(r *http.Request) string

// UserOrIPKey keys by principal id when authenticated, caller IP otherwise.
// Must run after the auth middleware to see the principal.
func UserOrIPKey(r *http.Request) string {
	if p, ok := PrincipalFrom(r.Context()); ok {
		return "user:" + p.ID
	}
	return "ip:" + ClientIP(r)
}

// IPKey keys by caller IP only.
func IPKey(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// RateLimitMiddleware gates requests against one call class budget and sets
// the X-RateLimit-* headers on every response it sees.
type RateLimitMiddleware struct {
	limiter    *ratelimit.Limiter
	keyFunc    KeyFunc
	metrics    *metrics.Metrics
	log        *logger.Logger
	production bool
}

// NewRateLimitMiddleware creates the middleware for one call class.
func NewRateLimitMiddleware(limiter *ratelimit.Limiter, keyFunc KeyFunc, m *metrics.Metrics, log *logger.Logger, production bool) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		limiter:    limiter,
		keyFunc:    keyFunc,
		metrics:    m,
		log:        log,
		production: production,
	}
}

// Handler returns the middleware handler. Limiter store failures with no
// fallback fail open: availability is preferred over strict budgets.
func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := m.keyFunc(r)

		res, err := m.limiter.Allow(r.Context(), key)
		if err != nil {
			m.log.WithContext(r.Context()).WithError(err).Error("rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

		if !res.Allowed {
			class := m.limiter.Config().Name
			m.metrics.RateLimitDenials.WithLabelValues(class).Inc()
			m.log.WithContext(r.Context()).WithFields(map[string]interface{}{
				"class": class,
				"key":   key,
				"path":  r.URL.Path,
			}).Warn("rate limit exceeded")

			httputil.WriteError(w, r, apperr.RateLimited(res.Limit, res.RetryAfter()), m.production)
			return
		}

		next.ServeHTTP(w, r)
	})
}
