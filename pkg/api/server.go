package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bulwark/pkg/audit"
	"github.com/platinummonkey/bulwark/pkg/auth"
	"github.com/platinummonkey/bulwark/pkg/httputil"
	"github.com/platinummonkey/bulwark/pkg/middleware"
	"github.com/platinummonkey/bulwark/pkg/observability"
	"github.com/platinummonkey/bulwark/pkg/onboarding"
	"github.com/platinummonkey/bulwark/pkg/orgs"
	"github.com/platinummonkey/bulwark/pkg/rbac"
	"github.com/platinummonkey/bulwark/pkg/users"
)

// APIPrefix is the versioned prefix of every API route.
const APIPrefix = "/api/v1"

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// AuthDeps wires the auth service router.
type AuthDeps struct {
	Service  *auth.Service
	Verifier middleware.TokenVerifier
	// LoginLimiter rate limits POST /auth/login; nil disables it.
	LoginLimiter *middleware.RateLimiter
	Health       *observability.HealthChecker
	Metrics      *observability.Metrics
	Logger       *observability.Logger
	Audit        audit.Logger
}

// PlatformDeps wires the platform service router.
type PlatformDeps struct {
	Organizations *orgs.Service
	Roles         *rbac.Service
	Users         *users.Service
	Onboarding    *onboarding.Saga
	Verifier      middleware.TokenVerifier
	Health        *observability.HealthChecker
	Metrics       *observability.Metrics
	Logger        *observability.Logger
	Audit         audit.Logger
}

// NewAuthRouter builds the auth service router.
func NewAuthRouter(d AuthDeps) *mux.Router {
	router, api := newRouter(d.Health, d.Metrics, d.Logger, d.Audit)
	g := guard{
		required: middleware.NewAuthMiddleware(d.Verifier, false).WithMetrics(d.Metrics),
		optional: middleware.NewAuthMiddleware(d.Verifier, true).WithMetrics(d.Metrics),
	}
	NewAuthHandlers(d.Service).RegisterRoutes(api, g, d.LoginLimiter)
	return router
}

// NewPlatformRouter builds the platform service router.
func NewPlatformRouter(d PlatformDeps) *mux.Router {
	router, api := newRouter(d.Health, d.Metrics, d.Logger, d.Audit)
	g := guard{
		required: middleware.NewAuthMiddleware(d.Verifier, false).WithMetrics(d.Metrics),
	}
	NewOrganizationHandlers(d.Organizations).RegisterRoutes(api, g)
	NewRoleHandlers(d.Roles).RegisterRoutes(api, g)
	NewUserHandlers(d.Users).RegisterRoutes(api, g)
	NewAdminHandlers(d.Onboarding).RegisterRoutes(api, g)
	return router
}

// newRouter installs the shared middleware and GET /health and returns the
// root router and the /api/v1 subrouter.
func newRouter(health *observability.HealthChecker, metrics *observability.Metrics, logger *observability.Logger, auditLogger audit.Logger) (*mux.Router, *mux.Router) {
	router := mux.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RequestLogger(logger, auditLogger),
		httputil.RecoveryMiddleware(logger),
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(maxBodyBytes),
	)
	if metrics != nil {
		router.Use(observability.HTTPMetricsMiddleware(metrics))
	}
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusNotFound, "Route not found")
	})

	if health != nil {
		router.HandleFunc("/health", health.Health).Methods(http.MethodGet)
	}
	return router, router.PathPrefix(APIPrefix).Subrouter()
}

// guard wraps handlers with authentication and route-level role checks.
type guard struct {
	required *middleware.AuthMiddleware
	optional *middleware.AuthMiddleware
}

// auth requires a valid token and, when roles are given, one of them.
func (g guard) auth(h http.HandlerFunc, roles ...string) http.Handler {
	return httputil.Chain(g.required.Handler, middleware.RequireRole(roles...))(h)
}

// maybe authenticates the caller when a token is present.
func (g guard) maybe(h http.HandlerFunc) http.Handler {
	return g.optional.Handler(h)
}
