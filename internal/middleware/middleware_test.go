package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blueocean-labs/explorer-api/internal/auth"
	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/httputil"
	"github.com/blueocean-labs/explorer-api/internal/metrics"
	"github.com/blueocean-labs/explorer-api/internal/ratelimit"
	"github.com/blueocean-labs/explorer-api/internal/storage/memory"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func testLog() *logger.Logger { return logger.NewDefault("middleware-test") }

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorBody {
	t.Helper()
	var body httputil.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func seedIssuer(t *testing.T) (*auth.TokenIssuer, *memory.Store, principal.Principal) {
	t.Helper()
	store := memory.New()
	issuer := auth.NewTokenIssuer(testSecret, "explorer-api", store)
	p, err := store.CreatePrincipal(context.Background(), principal.Principal{
		Email: "alice@example.com",
		Role:  principal.RoleStrategist,
	})
	require.NoError(t, err)
	return issuer, store, p
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	mw := NewRequestIDMiddleware(testLog())

	var seen string
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotEmpty(t, seen)
	require.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDPreservedFromHeader(t *testing.T) {
	mw := NewRequestIDMiddleware(testLog())
	handler := mw.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-abc")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, "req-abc", rec.Header().Get("X-Request-ID"))
}

func TestAuthRequireRejectsMissingHeader(t *testing.T) {
	issuer, _, _ := seedIssuer(t)
	mw := NewAuthMiddleware(issuer, testLog(), false)
	handler := mw.Require(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "AUTHENTICATION_ERROR", decodeError(t, rec).Error.Code)
}

func TestAuthRequireAttachesPrincipal(t *testing.T) {
	issuer, _, p := seedIssuer(t)
	token, _, err := issuer.Issue(p, false)
	require.NoError(t, err)

	mw := NewAuthMiddleware(issuer, testLog(), false)
	var got principal.Projection
	handler := mw.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, p.ID, got.ID)
	require.Equal(t, principal.RoleStrategist, got.Role)
}

func TestAuthOptionalAnonymousPasses(t *testing.T) {
	issuer, _, _ := seedIssuer(t)
	mw := NewAuthMiddleware(issuer, testLog(), false)

	var hadPrincipal bool
	handler := mw.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hadPrincipal = PrincipalFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.False(t, hadPrincipal)
}

func TestAuthOptionalInvalidTokenContinuesAnonymously(t *testing.T) {
	issuer, _, _ := seedIssuer(t)
	mw := NewAuthMiddleware(issuer, testLog(), false)

	var handlerRan, hadPrincipal bool
	handler := mw.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerRan = true
		_, hadPrincipal = PrincipalFrom(r.Context())
	}))

	// Garbage tokens and malformed headers behave like no credential at all.
	for _, header := range []string{"Bearer garbage", "NotBearer abc"} {
		handlerRan, hadPrincipal = false, false
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		require.True(t, handlerRan)
		require.False(t, hadPrincipal)
	}
}

func TestAuthOptionalAttachesValidPrincipal(t *testing.T) {
	issuer, _, p := seedIssuer(t)
	token, _, err := issuer.Issue(p, false)
	require.NoError(t, err)
	mw := NewAuthMiddleware(issuer, testLog(), false)

	var got principal.Projection
	handler := mw.Optional(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, p.ID, got.ID)
}

func TestRequireRolesGate(t *testing.T) {
	issuer, _, p := seedIssuer(t)
	token, _, err := issuer.Issue(p, false)
	require.NoError(t, err)
	mw := NewAuthMiddleware(issuer, testLog(), false)

	tests := []struct {
		name    string
		allowed []principal.Role
		want    int
	}{
		{"role in set", []principal.Role{principal.RoleStrategist, principal.RoleAdmin}, http.StatusOK},
		{"role not in set", []principal.Role{principal.RoleAdmin}, http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := mw.Require(mw.RequireRoles(tc.allowed...)(okHandler()))
			req := httptest.NewRequest(http.MethodDelete, "/api/markets/m1", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRequireRolesWithoutPrincipal(t *testing.T) {
	issuer, _, _ := seedIssuer(t)
	mw := NewAuthMiddleware(issuer, testLog(), false)
	handler := mw.RequireRoles(principal.RoleAdmin)(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimitHeadersAndDenial(t *testing.T) {
	limiter := ratelimit.New(
		ratelimit.Config{Name: "api", Limit: 2, Window: time.Minute},
		ratelimit.NewMemoryStore(), nil, testLog(),
	)
	mw := NewRateLimitMiddleware(limiter, IPKey, metrics.New(), testLog(), false)
	handler := mw.Handler(okHandler())

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:4321"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4321"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	body := decodeError(t, rec)
	require.Equal(t, "RATE_LIMIT_ERROR", body.Error.Code)
	require.Greater(t, body.Error.RetryAfter, 0)
}

func TestRateLimitKeysByPrincipal(t *testing.T) {
	limiter := ratelimit.New(
		ratelimit.Config{Name: "api", Limit: 1, Window: time.Minute},
		ratelimit.NewMemoryStore(), nil, testLog(),
	)
	mw := NewRateLimitMiddleware(limiter, UserOrIPKey, metrics.New(), testLog(), false)
	handler := mw.Handler(okHandler())

	send := func(userID string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:4321"
		if userID != "" {
			req = req.WithContext(WithPrincipal(req.Context(), principal.Projection{ID: userID}))
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("u1"))
	require.Equal(t, http.StatusTooManyRequests, send("u1"))
	// Same IP but different principal gets its own budget.
	require.Equal(t, http.StatusOK, send("u2"))
	// Anonymous caller from the same IP is keyed separately too.
	require.Equal(t, http.StatusOK, send(""))
}

func TestRecoveryConvertsPanic(t *testing.T) {
	mw := NewRecoveryMiddleware(testLog(), true)
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	require.Equal(t, "INTERNAL_ERROR", body.Error.Code)
	// Production mode never leaks the panic value.
	require.NotContains(t, rec.Body.String(), "boom")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"remote addr", "10.0.0.1:4321", "", "10.0.0.1"},
		{"forwarded single", "10.0.0.1:4321", "203.0.113.7", "203.0.113.7"},
		{"forwarded chain", "10.0.0.1:4321", "203.0.113.7, 10.0.0.2", "203.0.113.7"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			require.Equal(t, tc.want, ClientIP(req))
		})
	}
}
