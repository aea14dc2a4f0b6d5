package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bulwark/pkg/authz"
	"github.com/platinummonkey/bulwark/pkg/httputil"
	"github.com/platinummonkey/bulwark/pkg/onboarding"
)

// AdminHandlers handles administrative flows
type AdminHandlers struct {
	saga *onboarding.Saga
}

// NewAdminHandlers creates admin handlers
func NewAdminHandlers(saga *onboarding.Saga) *AdminHandlers {
	return &AdminHandlers{saga: saga}
}

// RegisterRoutes registers admin routes
func (h *AdminHandlers) RegisterRoutes(router *mux.Router, g guard) {
	router.Handle("/admin/onboard-organization",
		g.auth(h.onboard, authz.RequiredRoles(authz.KindOrganization, authz.ActionOnboard)...)).Methods(http.MethodPost)
}

// onboard handles POST /admin/onboard-organization
func (h *AdminHandlers) onboard(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	var req onboarding.Request
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	res, err := h.saga.Onboard(r.Context(), claims, req)
	writeResult(w, r, http.StatusCreated, res, err)
}
