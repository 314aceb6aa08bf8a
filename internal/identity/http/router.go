package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/skylensaero/identity/internal/identity/service"
	"github.com/skylensaero/identity/internal/identity/store"
	"github.com/skylensaero/identity/pkg/httpx"
	"github.com/skylensaero/identity/pkg/jwtx"
	"github.com/skylensaero/identity/pkg/slogx"
)

// Scopes recognized by the service. Bearer tokens are minted by the
// external identity provider; we only check what they carry.
const (
	ScopeAdmin = "identity:admin"
	ScopeRead  = "identity:read"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	verifier     jwtx.Verifier
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store         store.Store
	InviteService *service.InviteService
	RedeemService *service.RedeemService
	AccessService *service.AccessService
	MergeService  *service.MergeService
}

func NewRouter(
	verifier jwtx.Verifier,
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		verifier:     verifier,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerInvitations()
	r.registerRedeem()
	r.registerUsers()
	r.registerMaintenance()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerInvitations() {
	h := &InvitationsHandler{InviteService: r.InviteService}

	// POST /v1/invitations - admin operation, moderate rate limit by user
	securedIssue := httpx.Chain(http.HandlerFunc(h.HandleIssue),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope(ScopeAdmin),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)

	// GET /v1/invitations - admin read, moderate rate limit by user
	securedList := httpx.Chain(http.HandlerFunc(h.HandleList),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope(ScopeAdmin, ScopeRead),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)

	securedGet := httpx.Chain(http.HandlerFunc(h.HandleGet),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope(ScopeAdmin, ScopeRead),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)

	// POST /v1/invitations/{id}/resend - re-delivers with a fresh token
	securedResend := httpx.Chain(http.HandlerFunc(h.HandleResend),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope(ScopeAdmin),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)

	securedCancel := httpx.Chain(http.HandlerFunc(h.HandleCancel),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope(ScopeAdmin),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)

	r.Mux.Handle("POST /v1/invitations", securedIssue)
	r.Mux.Handle("GET /v1/invitations", securedList)
	r.Mux.Handle("GET /v1/invitations/{id}", securedGet)
	r.Mux.Handle("POST /v1/invitations/{id}/resend", securedResend)
	r.Mux.Handle("DELETE /v1/invitations/{id}", securedCancel)
}

func (r *Router) registerRedeem() {
	h := &RedeemHandler{RedeemService: r.RedeemService}

	// POST /v1/invitations/redeem - strict rate limit by IP. The caller is
	// authenticated by the identity provider but holds no scopes yet, so
	// only the bearer token is required, not a scope.
	secured := httpx.Chain(h,
		httpx.AuthnMiddleware(r.verifier),
		httpx.RateLimitByIP(httpx.StrictLimit),
	)

	r.Mux.Handle("POST /v1/invitations/redeem", secured)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{AccessService: r.AccessService}

	securedList := httpx.Chain(http.HandlerFunc(h.HandleList),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope(ScopeAdmin, ScopeRead),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)

	securedGet := httpx.Chain(http.HandlerFunc(h.HandleGet),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope(ScopeAdmin, ScopeRead),
		httpx.RateLimitByUser(httpx.LenientLimit),
	)

	securedHistory := httpx.Chain(http.HandlerFunc(h.HandleRoleHistory),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope(ScopeAdmin, ScopeRead),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)

	// Mutations require the admin scope; the service re-checks the acting
	// user's role on top of that.
	securedRole := httpx.Chain(http.HandlerFunc(h.HandleSetRole),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope(ScopeAdmin),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)

	securedAccess := httpx.Chain(http.HandlerFunc(h.HandleSetAccess),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope(ScopeAdmin),
		httpx.RateLimitByUser(httpx.ModerateLimit),
	)

	r.Mux.Handle("GET /v1/users", securedList)
	r.Mux.Handle("GET /v1/users/{id}", securedGet)
	r.Mux.Handle("GET /v1/users/{id}/role-history", securedHistory)
	r.Mux.Handle("PUT /v1/users/{id}/role", securedRole)
	r.Mux.Handle("PUT /v1/users/{id}/access", securedAccess)
}

func (r *Router) registerMaintenance() {
	h := &MaintenanceHandler{MergeService: r.MergeService}

	// POST /v1/duplicates/resolve - admin-only repair operation
	secured := httpx.Chain(http.HandlerFunc(h.HandleResolveDuplicates),
		httpx.AuthnMiddleware(r.verifier),
		httpx.RequireAnyScope(ScopeAdmin),
		httpx.RateLimitByUser(httpx.StrictLimit),
	)

	r.Mux.Handle("POST /v1/duplicates/resolve", secured)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
