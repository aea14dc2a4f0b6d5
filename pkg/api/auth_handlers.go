package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bulwark/pkg/auth"
	"github.com/platinummonkey/bulwark/pkg/httputil"
	"github.com/platinummonkey/bulwark/pkg/middleware"
)

// AuthHandlers handles authentication requests
type AuthHandlers struct {
	auth *auth.Service
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(svc *auth.Service) *AuthHandlers {
	return &AuthHandlers{auth: svc}
}

// RegisterRoutes registers authentication routes. limiter may be nil.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router, g guard, limiter *middleware.RateLimiter) {
	var login http.Handler = http.HandlerFunc(h.login)
	if limiter != nil {
		login = limiter.Handler(login)
	}

	router.Handle("/auth/register", g.maybe(h.register)).Methods(http.MethodPost)
	router.Handle("/auth/login", login).Methods(http.MethodPost)
	router.HandleFunc("/auth/refresh", h.refresh).Methods(http.MethodPost)
	router.Handle("/auth/logout", g.auth(h.logout)).Methods(http.MethodPost)
	router.Handle("/auth/profile", g.auth(h.profile)).Methods(http.MethodGet)
}

// register handles POST /auth/register
func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if claims, ok := middleware.GetClaims(r.Context()); ok {
		req.Actor = &claims
	}

	session, err := h.auth.Register(r.Context(), req)
	writeResult(w, r, http.StatusCreated, session, err)
}

// login handles POST /auth/login
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	session, err := h.auth.Login(r.Context(), req)
	writeResult(w, r, http.StatusOK, session, err)
}

// refresh handles POST /auth/refresh
func (h *AuthHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	session, err := h.auth.Refresh(r.Context(), req.RefreshToken)
	writeResult(w, r, http.StatusOK, session, err)
}

// logout handles POST /auth/logout
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}

	err := h.auth.Logout(r.Context(), claims.UserID)
	writeResult(w, r, http.StatusOK, map[string]string{"message": "Logged out successfully"}, err)
}

// profile handles GET /auth/profile
func (h *AuthHandlers) profile(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}

	user, err := h.auth.Profile(r.Context(), claims.UserID)
	writeResult(w, r, http.StatusOK, user, err)
}
