// Package api provides the HTTP surface of the auth and platform services.
//
// # Overview
//
// Both routers are built on gorilla/mux and serve everything under /api/v1,
// plus an unauthenticated GET /health:
//
//	auth service                       platform service
//	POST /auth/register                GET|POST       /organizations
//	POST /auth/login   (rate limited)  GET|PUT|DELETE /organizations/{id}
//	POST /auth/refresh                 GET|POST       /roles
//	POST /auth/logout                  GET|PUT|DELETE /roles/{id}
//	GET  /auth/profile                 GET|POST       /users
//	                                   POST           /users/bulk
//	                                   GET|PUT|DELETE /users/{id}
//	                                   PUT            /users/{id}/roles
//	                                   POST           /admin/onboard-organization
//
// Handlers are thin: they parse the request, pull the caller's claims from
// the context and hand both to a use case service. Every error goes through
// httputil.WriteAppError, so status codes follow the apperr kind.
//
// # Authorization
//
// Platform routes require a bearer token. Mutations additionally require one
// of the roles listed by authz.RequiredRoles for the resource and action;
// tenant rules are enforced by the services through authz.Gate.
//
// Register accepts an optional token. When present, the caller becomes the
// actor of the registration, which is how platform owners create platform
// owner accounts and how the platform service forwards onboarding.
//
// # Concurrency
//
// PUT endpoints honor If-Match: <version>. A mismatch answers 409.
//
// # Usage
//
//	router := api.NewPlatformRouter(api.PlatformDeps{
//		Organizations: orgSvc,
//		Roles:         roleSvc,
//		Users:         userSvc,
//		Onboarding:    saga,
//		Verifier:      issuer,
//		Health:        checker,
//		Logger:        logger,
//	})
//	http.ListenAndServe(":8080", router)
package api
