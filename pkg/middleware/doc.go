// Package middleware provides HTTP middleware for authentication, authorization, rate limiting and request logging.
//
// # Middleware Components
//
// AuthMiddleware: bearer token authentication
//
//	auth := middleware.NewAuthMiddleware(issuer, false)
//	router.Use(auth.Handler)
//	// Verifies the access token and stores its claims snapshot in the context
//
// RequireRole: route-level role check against the claims snapshot
//
//	router.Handle("/roles", middleware.RequireRole("org_admin", "admin", "super_admin")(h))
//
// RateLimiter: Redis-backed fixed window limit per client address
//
//	limiter := middleware.NewRateLimiter(redisClient, middleware.DefaultLoginRateLimitConfig(), "ratelimit:login", logger)
//	router.Handle("/auth/login", limiter.Handler(loginHandler))
//
// RequestID and RequestLogger: request ids, context loggers and access logs
//
//	router.Use(middleware.RequestID, middleware.RequestLogger(logger, auditLogger))
//
// # Ordering
//
// RequestID must wrap RequestLogger so access log lines carry the id, and
// RequestLogger must wrap AuthMiddleware so authentication failures reach the
// audit log.
//
// # Related Packages
//
//   - pkg/tokens: token verification
//   - pkg/authz: resource-level authorization
//   - pkg/audit: audit events for token and role rejections
package middleware
