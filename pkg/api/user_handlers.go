package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bulwark/pkg/auth"
	"github.com/platinummonkey/bulwark/pkg/authz"
	"github.com/platinummonkey/bulwark/pkg/httputil"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/users"
)

// UserHandlers handles platform-side user requests
type UserHandlers struct {
	users *users.Service
}

// NewUserHandlers creates user handlers
func NewUserHandlers(svc *users.Service) *UserHandlers {
	return &UserHandlers{users: svc}
}

// RegisterRoutes registers user routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router, g guard) {
	router.Handle("/users", g.auth(h.list)).Methods(http.MethodGet)
	router.Handle("/users", g.auth(h.create, authz.RequiredRoles(authz.KindUser, authz.ActionCreate)...)).Methods(http.MethodPost)
	router.Handle("/users/bulk", g.auth(h.bulk, authz.RequiredRoles(authz.KindUser, authz.ActionCreate)...)).Methods(http.MethodPost)
	router.Handle("/users/{id}", g.auth(h.get)).Methods(http.MethodGet)
	router.Handle("/users/{id}", g.auth(h.update, authz.RequiredRoles(authz.KindUser, authz.ActionUpdate)...)).Methods(http.MethodPut)
	router.Handle("/users/{id}", g.auth(h.delete, authz.RequiredRoles(authz.KindUser, authz.ActionDelete)...)).Methods(http.MethodDelete)
	router.Handle("/users/{id}/roles", g.auth(h.assignRoles, authz.RequiredRoles(authz.KindUser, authz.ActionAssignRoles)...)).Methods(http.MethodPut)
}

// createUserRequest accepts the role list as either roleIds or roles.
type createUserRequest struct {
	auth.RegisterRequest
	Roles []string `json:"roles"`
}

// assignRolesRequest is the body of PUT /users/{id}/roles.
type assignRolesRequest struct {
	Roles   []string `json:"roles"`
	RoleIDs []string `json:"roleIds"`
}

func (h *UserHandlers) list(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	q, err := httputil.ParseListQuery(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	res, err := h.users.List(r.Context(), claims, q)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteList(w, res.Items, res.Page, res.Total)
}

func (h *UserHandlers) get(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), claims, id)
	writeResult(w, r, http.StatusOK, user, err)
}

func (h *UserHandlers) create(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	var req createUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.RoleIDs) == 0 {
		req.RoleIDs = req.Roles
	}

	user, err := h.users.Create(r.Context(), claims, req.RegisterRequest)
	writeResult(w, r, http.StatusCreated, user, err)
}

func (h *UserHandlers) update(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch identity.UserPatch
	if !httputil.ParseJSONOrError(w, r, &patch) {
		return
	}
	version, err := httputil.ParseIfMatch(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	user, err := h.users.Update(r.Context(), claims, id, patch, version)
	writeResult(w, r, http.StatusOK, user, err)
}

func (h *UserHandlers) assignRoles(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req assignRolesRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if len(req.Roles) == 0 {
		req.Roles = req.RoleIDs
	}
	version, err := httputil.ParseIfMatch(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	user, err := h.users.AssignRoles(r.Context(), claims, id, req.Roles, version)
	writeResult(w, r, http.StatusOK, user, err)
}

func (h *UserHandlers) delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	user, err := h.users.Delete(r.Context(), claims, id)
	writeResult(w, r, http.StatusOK, user, err)
}

func (h *UserHandlers) bulk(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	httputil.WriteAppError(w, r, h.users.Bulk(r.Context(), claims))
}
