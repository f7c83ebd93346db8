package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"familybudget/internal/database"
	"familybudget/internal/metrics"
	"familybudget/internal/security"
)

// Router wires every handler onto one mux
type Router struct {
	Auth       *AuthHandler
	Family     *FamilyHandler
	Ledger     *LedgerHandler
	Middleware *Middleware
	LoginLimit *security.RateLimiter
	Metrics    *metrics.Metrics
	DB         *database.DB
	Logger     *logrus.Logger
}

// Handler builds the complete HTTP handler, including request logging and
// metrics instrumentation
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	auth := rt.Middleware.RequireAuth

	limited := func(next http.HandlerFunc) http.HandlerFunc {
		if rt.LoginLimit == nil {
			return next
		}
		return rt.LoginLimit.Middleware(next)
	}

	// Identity
	mux.HandleFunc("POST /api/register", limited(rt.Auth.Register))
	mux.HandleFunc("POST /api/token", limited(rt.Auth.Token))
	mux.HandleFunc("POST /api/token/refresh", limited(rt.Auth.Refresh))
	mux.HandleFunc("GET /api/me", auth(rt.Auth.Me))
	if rt.Auth.OAuthEnabled() {
		mux.HandleFunc("GET /api/auth/{provider}/start", rt.Auth.StartOAuth)
		mux.HandleFunc("GET /api/auth/{provider}/callback", rt.Auth.OAuthCallback)
	}

	// Family registry and membership
	mux.HandleFunc("POST /api/family/create", auth(rt.Family.CreateFamily))
	mux.HandleFunc("GET /api/family/me", auth(rt.Family.GetFamily))
	mux.HandleFunc("PATCH /api/family/me", auth(rt.Family.RenameFamily))
	mux.HandleFunc("DELETE /api/family/me", auth(rt.Family.DeleteFamily))
	mux.HandleFunc("GET /api/family/members", auth(rt.Family.ListMembers))
	mux.HandleFunc("POST /api/family/members/remove", auth(rt.Family.RemoveMember))
	mux.HandleFunc("POST /api/family/members/change-role", auth(rt.Family.ChangeRole))
	mux.HandleFunc("POST /api/family/assign-head", auth(rt.Family.AssignHead))
	mux.HandleFunc("POST /api/family/leave", auth(rt.Family.Leave))
	mux.HandleFunc("POST /api/invite", auth(rt.Family.CreateInvite))
	mux.HandleFunc("POST /api/join", auth(rt.Family.Join))

	// Ledger
	mux.HandleFunc("GET /api/categories", auth(rt.Ledger.ListCategories))
	mux.HandleFunc("POST /api/categories", auth(rt.Ledger.CreateCategory))
	mux.HandleFunc("GET /api/categories/{id}", auth(rt.Ledger.GetCategory))
	mux.HandleFunc("PUT /api/categories/{id}", auth(rt.Ledger.UpdateCategory))
	mux.HandleFunc("DELETE /api/categories/{id}", auth(rt.Ledger.DeleteCategory))
	mux.HandleFunc("GET /api/transactions", auth(rt.Ledger.ListTransactions))
	mux.HandleFunc("POST /api/transactions", auth(rt.Ledger.CreateTransaction))
	mux.HandleFunc("GET /api/transactions/summary", auth(rt.Ledger.Summary))
	mux.HandleFunc("GET /api/transactions/{id}", auth(rt.Ledger.GetTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", auth(rt.Ledger.UpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", auth(rt.Ledger.DeleteTransaction))

	// Operations
	mux.HandleFunc("GET /healthz", rt.health)
	if rt.Metrics != nil {
		mux.Handle("GET /metrics", rt.Metrics.Handler())
	}

	return Logging(rt.Logger, rt.Metrics.Instrument(mux))
}

func (rt *Router) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := rt.DB.PingContext(ctx); err != nil {
		rt.Logger.WithError(err).Warn("health check: database unreachable")
		respondJSON(w, rt.Logger, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	respondJSON(w, rt.Logger, http.StatusOK, map[string]string{"status": "ok"})
}
