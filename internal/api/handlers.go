package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/blueocean-labs/explorer-api/internal/apperr"
	"github.com/blueocean-labs/explorer-api/internal/app"
	"github.com/blueocean-labs/explorer-api/internal/domain/principal"
	"github.com/blueocean-labs/explorer-api/internal/httputil"
	"github.com/blueocean-labs/explorer-api/internal/middleware"
	"github.com/blueocean-labs/explorer-api/internal/services/competitors"
	"github.com/blueocean-labs/explorer-api/internal/services/markets"
	"github.com/blueocean-labs/explorer-api/internal/services/opportunities"
	"github.com/blueocean-labs/explorer-api/internal/services/segments"
	"github.com/blueocean-labs/explorer-api/internal/validation"
	"github.com/blueocean-labs/explorer-api/pkg/logger"
)

type handler struct {
	app        *app.Application
	log        *logger.Logger
	production bool
}

func newHandler(a *app.Application, log *logger.Logger, production bool) *handler {
	return &handler{app: a, log: log, production: production}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperr.From(err)
	entry := h.log.WithContext(r.Context()).WithError(err)
	if appErr.Kind.Expected() {
		entry.Warn("request failed")
	} else {
		entry.Error("request failed")
	}
	httputil.WriteError(w, r, err, h.production)
}

// principal returns the verified principal; the auth middleware guarantees
// presence on protected routes.
func (h *handler) principal(w http.ResponseWriter, r *http.Request) (principal.Projection, bool) {
	pr, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		h.writeError(w, r, apperr.Unauthorized("authentication required"))
		return principal.Projection{}, false
	}
	return pr, true
}

// auth handlers ------------------------------------------------------------

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.checkLoginBudget(w, r, req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}

	session, err := h.app.Auth.Register(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, session)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember,omitempty"`
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.checkLoginBudget(w, r, req.Email); err != nil {
		h.writeError(w, r, err)
		return
	}

	session, err := h.app.Auth.Login(r.Context(), req.Email, req.Password, req.Remember)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

// checkLoginBudget applies the login-class limiter keyed by caller IP plus
// submitted email, so one address cannot brute-force one account. Runs after
// body decoding because the email is part of the key.
func (h *handler) checkLoginBudget(w http.ResponseWriter, r *http.Request, email string) error {
	key := middleware.ClientIP(r) + ":" + validation.NormalizeEmail(email)
	res, err := h.app.Limiters.Login.Allow(r.Context(), key)
	if err != nil {
		h.log.WithContext(r.Context()).WithError(err).Error("login rate limit check failed, allowing request")
		return nil
	}
	if !res.Allowed {
		h.app.Metrics.RateLimitDenials.WithLabelValues("login").Inc()
		return apperr.RateLimited(res.Limit, res.RetryAfter())
	}
	return nil
}

func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	out, err := h.app.Auth.Me(r.Context(), p.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// market handlers ----------------------------------------------------------

func (h *handler) createMarket(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in markets.Input
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.app.Markets.Create(r.Context(), p, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

func (h *handler) listMarkets(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	out, err := h.app.Markets.List(r.Context(), p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) getMarket(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	out, err := h.app.Markets.Get(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) updateMarket(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in markets.Input
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.app.Markets.Update(r.Context(), p, mux.Vars(r)["id"], in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) deleteMarket(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	if err := h.app.Markets.Delete(r.Context(), p, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// opportunity handlers -----------------------------------------------------

func (h *handler) createOpportunity(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in opportunities.Input
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.app.Opportunities.Create(r.Context(), p, mux.Vars(r)["id"], in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

func (h *handler) listOpportunities(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	out, err := h.app.Opportunities.List(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) getOpportunity(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	out, err := h.app.Opportunities.Get(r.Context(), p, vars["id"], vars["oid"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) updateOpportunity(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in opportunities.Input
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	out, err := h.app.Opportunities.Update(r.Context(), p, vars["id"], vars["oid"], in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) deleteOpportunity(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := h.app.Opportunities.Delete(r.Context(), p, vars["id"], vars["oid"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// segment handlers ---------------------------------------------------------

func (h *handler) createSegment(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in segments.Input
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.app.Segments.Create(r.Context(), p, mux.Vars(r)["id"], in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

func (h *handler) listSegments(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	out, err := h.app.Segments.List(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) getSegment(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	out, err := h.app.Segments.Get(r.Context(), p, vars["id"], vars["sid"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) updateSegment(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in segments.Input
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	out, err := h.app.Segments.Update(r.Context(), p, vars["id"], vars["sid"], in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) deleteSegment(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := h.app.Segments.Delete(r.Context(), p, vars["id"], vars["sid"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// competitor handlers ------------------------------------------------------

func (h *handler) createCompetitor(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var in competitors.Input
	if err := httputil.DecodeJSON(r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.app.Competitors.Create(r.Context(), p, mux.Vars(r)["id"], in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

func (h *handler) listCompetitors(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	out, err := h.app.Competitors.List(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) getCompetitor(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	out, err := h.app.Competitors.Get(r.Context(), p, vars["id"], vars["cid"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) deleteCompetitor(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := h.app.Competitors.Delete(r.Context(), p, vars["id"], vars["cid"]); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// insight handlers ---------------------------------------------------------

type insightRequest struct {
	Prompt string `json:"prompt"`
}

func (h *handler) generateInsight(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	var req insightRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := h.app.Insights.Generate(r.Context(), p, mux.Vars(r)["id"], req.Prompt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

func (h *handler) listInsights(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	out, err := h.app.Insights.List(r.Context(), p, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// admin handlers -----------------------------------------------------------

func (h *handler) listPrincipals(w http.ResponseWriter, r *http.Request) {
	all, err := h.app.Stores.Principals.ListPrincipals(r.Context())
	if err != nil {
		h.writeError(w, r, apperr.Internal("list principals", err))
		return
	}
	out := make([]principal.Projection, 0, len(all))
	for _, p := range all {
		out = append(out, p.Project())
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *handler) deletePrincipal(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.app.Stores.Principals.DeletePrincipal(r.Context(), id); err != nil {
		h.writeError(w, r, apperr.NotFound("principal", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// health handlers ----------------------------------------------------------

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	report := h.app.Health.Report(r.Context())
	status := http.StatusOK
	if report.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, report)
}

func (h *handler) healthLive(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

func (h *handler) healthReady(w http.ResponseWriter, r *http.Request) {
	if !h.app.Health.Ready(r.Context()) {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
