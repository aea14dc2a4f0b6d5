package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bulwark/pkg/authz"
	"github.com/platinummonkey/bulwark/pkg/httputil"
	"github.com/platinummonkey/bulwark/pkg/orgs"
)

// OrganizationHandlers handles organization requests
type OrganizationHandlers struct {
	orgs *orgs.Service
}

// NewOrganizationHandlers creates organization handlers
func NewOrganizationHandlers(svc *orgs.Service) *OrganizationHandlers {
	return &OrganizationHandlers{orgs: svc}
}

// RegisterRoutes registers organization routes
func (h *OrganizationHandlers) RegisterRoutes(router *mux.Router, g guard) {
	router.Handle("/organizations", g.auth(h.list)).Methods(http.MethodGet)
	router.Handle("/organizations", g.auth(h.create, authz.RequiredRoles(authz.KindOrganization, authz.ActionCreate)...)).Methods(http.MethodPost)
	router.Handle("/organizations/{id}", g.auth(h.get)).Methods(http.MethodGet)
	router.Handle("/organizations/{id}", g.auth(h.update, authz.RequiredRoles(authz.KindOrganization, authz.ActionUpdate)...)).Methods(http.MethodPut)
	router.Handle("/organizations/{id}", g.auth(h.delete, authz.RequiredRoles(authz.KindOrganization, authz.ActionDelete)...)).Methods(http.MethodDelete)
}

func (h *OrganizationHandlers) list(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	q, err := httputil.ParseListQuery(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	res, err := h.orgs.List(r.Context(), claims, q)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteList(w, res.Items, res.Page, res.Total)
}

func (h *OrganizationHandlers) get(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	org, err := h.orgs.Get(r.Context(), claims, id)
	writeResult(w, r, http.StatusOK, org, err)
}

func (h *OrganizationHandlers) create(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	var req orgs.CreateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	org, err := h.orgs.Create(r.Context(), claims, req)
	writeResult(w, r, http.StatusCreated, org, err)
}

func (h *OrganizationHandlers) update(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req orgs.UpdateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	version, err := httputil.ParseIfMatch(r)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	req.Version = version

	org, err := h.orgs.Update(r.Context(), claims, id, req)
	writeResult(w, r, http.StatusOK, org, err)
}

func (h *OrganizationHandlers) delete(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsOrError(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	org, err := h.orgs.Delete(r.Context(), claims, id)
	writeResult(w, r, http.StatusOK, org, err)
}
