// Package api exposes the HTTP surface: route table, middleware chain and
// request handlers.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/blueocean-labs/explorer-api/internal/app"
	"github.com/blueocean-labs/explorer-api/internal/config"
	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/middleware"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

// NewRouter builds the route table with the full middleware chain:
// recovery → request id/logging → metrics → CORS → rate limit → auth →
// role check → handler.
func NewRouter(a *app.Application, cfg config.Config, log *logger.Logger) *mux.Router {
	production := cfg.Production()
	h := newHandler(a, log, production)

	recovery := middleware.NewRecoveryMiddleware(log, production)
	requestID := middleware.NewRequestIDMiddleware(log)
	cors := middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins)
	authmw := middleware.NewAuthMiddleware(a.Issuer, log, production)

	rlAPI := middleware.NewRateLimitMiddleware(a.Limiters.API, middleware.UserOrIPKey, a.Metrics, log, production)
	rlAI := middleware.NewRateLimitMiddleware(a.Limiters.AI, middleware.UserOrIPKey, a.Metrics, log, production)

	router := mux.NewRouter()
	router.Use(recovery.Handler)
	router.Use(requestID.Handler)
	router.Use(middleware.MetricsMiddleware(a.Metrics))
	router.Use(cors.Handler)

	// Operational endpoints sit outside the rate-limited API surface.
	router.HandleFunc("/health", h.health).Methods(http.MethodGet)
	router.HandleFunc("/health/live", h.healthLive).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", h.healthReady).Methods(http.MethodGet)
	router.Handle("/metrics", a.Metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(rlAPI.Handler)

	// Auth endpoints. The login-class limiter is applied inside the
	// handlers because its key includes the submitted email.
	api.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	api.Handle("/auth/me", authmw.Require(http.HandlerFunc(h.me))).Methods(http.MethodGet)

	// Market CRUD. Deleting a market needs strategist or above.
	authed := api.NewRoute().Subrouter()
	authed.Use(authmw.Require)

	authed.HandleFunc("/markets", h.createMarket).Methods(http.MethodPost)
	authed.HandleFunc("/markets", h.listMarkets).Methods(http.MethodGet)
	authed.HandleFunc("/markets/{id}", h.getMarket).Methods(http.MethodGet)
	authed.HandleFunc("/markets/{id}", h.updateMarket).Methods(http.MethodPut)
	authed.Handle("/markets/{id}",
		authmw.RequireRoles(principal.RoleStrategist, principal.RoleExecutive, principal.RoleAdmin)(
			http.HandlerFunc(h.deleteMarket))).Methods(http.MethodDelete)

	authed.HandleFunc("/markets/{id}/opportunities", h.createOpportunity).Methods(http.MethodPost)
	authed.HandleFunc("/markets/{id}/opportunities", h.listOpportunities).Methods(http.MethodGet)
	authed.HandleFunc("/markets/{id}/opportunities/{oid}", h.getOpportunity).Methods(http.MethodGet)
	authed.HandleFunc("/markets/{id}/opportunities/{oid}", h.updateOpportunity).Methods(http.MethodPut)
	authed.HandleFunc("/markets/{id}/opportunities/{oid}", h.deleteOpportunity).Methods(http.MethodDelete)

	authed.HandleFunc("/markets/{id}/segments", h.createSegment).Methods(http.MethodPost)
	authed.HandleFunc("/markets/{id}/segments", h.listSegments).Methods(http.MethodGet)
	authed.HandleFunc("/markets/{id}/segments/{sid}", h.getSegment).Methods(http.MethodGet)
	authed.HandleFunc("/markets/{id}/segments/{sid}", h.updateSegment).Methods(http.MethodPut)
	authed.HandleFunc("/markets/{id}/segments/{sid}", h.deleteSegment).Methods(http.MethodDelete)

	authed.HandleFunc("/markets/{id}/competitors", h.createCompetitor).Methods(http.MethodPost)
	authed.HandleFunc("/markets/{id}/competitors", h.listCompetitors).Methods(http.MethodGet)
	authed.HandleFunc("/markets/{id}/competitors/{cid}", h.getCompetitor).Methods(http.MethodGet)
	authed.HandleFunc("/markets/{id}/competitors/{cid}", h.deleteCompetitor).Methods(http.MethodDelete)

	// Insight generation carries its own, tighter budget.
	authed.Handle("/markets/{id}/insights",
		rlAI.Handler(http.HandlerFunc(h.generateInsight))).Methods(http.MethodPost)
	authed.HandleFunc("/markets/{id}/insights", h.listInsights).Methods(http.MethodGet)

	// Admin surface.
	adminOnly := authmw.RequireRoles(principal.RoleAdmin)
	authed.Handle("/admin/principals", adminOnly(http.HandlerFunc(h.listPrincipals))).Methods(http.MethodGet)
	authed.Handle("/admin/principals/{id}", adminOnly(http.HandlerFunc(h.deletePrincipal))).Methods(http.MethodDelete)

	return router
}
