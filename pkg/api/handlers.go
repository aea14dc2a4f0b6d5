package api

import (
	"net/http"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/httputil"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/middleware"
)

// claimsOrError returns the caller's claims, writing a 401 when there are
// none.
func claimsOrError(w http.ResponseWriter, r *http.Request) (identity.Claims, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		httputil.WriteAppError(w, r, apperr.Unauthorized("Access token required"))
	}
	return claims, ok
}

// pathID returns the {id} path variable.
func pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := httputil.ParsePathString(r, "id")
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return "", false
	}
	return id, true
}

// writeResult writes v with status, or err.
func writeResult(w http.ResponseWriter, r *http.Request, status int, v interface{}, err error) {
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteJSON(w, status, v)
}
