package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bulwark/pkg/authz"
	"github.com/platinummonkey/bulwark/pkg/httputil"
	"github.com/platinummonkey/bulwark/pkg/rbac"
)

// RoleHandlers handles role requests
type RoleHandlers struct {
	roles *rbac.Service
}

// NewRoleHandlers creates role handlers
func NewRoleHandlers(svc *rbac.Service) *RoleHandlers {
	return &RoleHandlers{roles: svc}
}

// RegisterRoutes registers role routes
func (h *RoleHandlers) RegisterRoutes(router *mux.Router, g guard) {
	router.Handle("/roles", g.auth(h.list)).Methods(http.MethodGet)
	router.Handle("/roles", g.auth(h.create, authz.RequiredRoles(authz.KindRole, authz.ActionCreate)...)).Methods(http.MethodPost)
	router.Handle("/roles/{id}", g.auth(h.get)).Methods(http.MethodGet)
	router.Handle("/roles/{id}", g.auth(h.update, authz.RequiredRoles(authz.KindRole, authz.ActionUpdate)...)).Methods(http.MethodPut)
	router.Handle("/roles/{id}", g.auth(h.delete, authz.RequiredRoles(authz.KindRole, authz.ActionDelete)...)).Methods(http.MethodDelete)
}

func (h *RoleHandlers) list(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	q, err := httputil.ParseListQuery(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	res, err := h.roles.List(r.Context(), claims, q)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteList(w, res.Items, res.Page, res.Total)
}

func (h *RoleHandlers) get(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	role, err := h.roles.Get(r.Context(), claims, id)
	writeResult(w, r, http.StatusOK, role, err)
}

func (h *RoleHandlers) create(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	var req rbac.CreateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	role, err := h.roles.Create(r.Context(), claims, req)
	writeResult(w, r, http.StatusCreated, role, err)
}

func (h *RoleHandlers) update(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req rbac.UpdateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	version, err := httputil.ParseIfMatch(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	req.Version = version

	role, err := h.roles.Update(r.Context(), claims, id, req)
	writeResult(w, r, http.StatusOK, role, err)
}

func (h *RoleHandlers) delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	role, err := h.roles.Delete(r.Context(), claims, id)
	writeResult(w, r, http.StatusOK, role, err)
}
