package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/audit"
	"github.com/platinummonkey/bulwark/pkg/contextkeys"
	"github.com/platinummonkey/bulwark/pkg/httputil"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/observability"
)

// TokenVerifier validates access tokens. *tokens.Issuer implements it.
type TokenVerifier interface {
	VerifyAccess(token string) (identity.Claims, error)
}

// AuthMiddleware handles bearer token authentication
type AuthMiddleware struct {
	verifier TokenVerifier
	optional bool
	metrics  *observability.Metrics
}

// NewAuthMiddleware creates a new authentication middleware. With optional
// set, requests without an Authorization header pass through anonymously;
// a present but invalid token is still rejected.
func NewAuthMiddleware(verifier TokenVerifier, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		optional: optional,
	}
}

// WithMetrics counts rejected tokens.
func (m *AuthMiddleware) WithMetrics(metrics *observability.Metrics) *AuthMiddleware {
	m.metrics = metrics
	return m
}

// Handler is the middleware handler
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteAppError(w, r, apperr.Unauthorized("Access token required"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			httputil.WriteAppError(w, r, apperr.Unauthorized("Invalid authorization header format"))
			return
		}
		token := strings.TrimSpace(parts[1])

		claims, err := m.verifier.VerifyAccess(token)
		if err != nil {
			m.metrics.RecordAuthEvent("token", "invalid")
			_ = audit.FromContext(r.Context()).Log(r.Context(), &audit.Event{
				Type:         audit.EventAuthTokenInvalid,
				Status:       audit.StatusFailure,
				ResourceType: audit.ResourceSession,
				IPAddress:    getClientIP(r),
				Message:      err.Error(),
			})
			httputil.WriteAppError(w, r, err)
			return
		}

		ctx := WithClaims(r.Context(), claims)
		ctx = contextkeys.WithAccessToken(ctx, token)
		ctx = contextkeys.WithUserID(ctx, claims.UserID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithClaims stores the caller's claims snapshot in ctx.
func WithClaims(ctx context.Context, claims identity.Claims) context.Context {
	return contextkeys.WithClaims(ctx, claims)
}

// GetClaims retrieves the caller's claims snapshot from the request context
func GetClaims(ctx context.Context) (identity.Claims, bool) {
	claims, ok := ctx.Value(contextkeys.ClaimsKey).(identity.Claims)
	return claims, ok
}

// RequireRole creates middleware that requires the caller to hold at least
// one of the named roles. An empty list only requires authentication.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetClaims(r.Context())
			if !ok {
				httputil.WriteAppError(w, r, apperr.Unauthorized("Access token required"))
				return
			}

			if len(roles) > 0 && !claims.HasAnyRole(roles...) {
				_ = audit.FromContext(r.Context()).Log(r.Context(), &audit.Event{
					Type:           audit.EventAuthzAccessDenied,
					Status:         audit.StatusDenied,
					ActorID:        claims.UserID,
					ActorEmail:     claims.Email,
					OrganizationID: claims.OrganizationID,
					Message:        r.Method + " " + r.URL.Path,
					Metadata:       map[string]interface{}{"required_roles": roles},
				})
				httputil.WriteAppError(w, r, apperr.Forbidden("Insufficient permissions"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
