package httputil

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/authz"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/storage"
)

// ParseJSON decodes JSON from the request body into the destination
func ParseJSON(r *http.Request, dest interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return apperr.Wrap(apperr.KindValidation, err, "Invalid JSON body")
	}
	return nil
}

// ParseJSONOrError decodes JSON and writes error response on failure
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteAppError(w, r, err)
		return false
	}
	return true
}

// ParsePathString extracts a string path parameter
func ParsePathString(r *http.Request, key string) (string, error) {
	str := mux.Vars(r)[key]
	if str == "" {
		return "", apperr.Validation(key, "missing path parameter: %s", key)
	}
	return str, nil
}

// ParseQueryInt extracts and parses an integer query parameter
func ParseQueryInt(r *http.Request, key string, defaultVal int) (int, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return defaultVal, nil
	}
	val, err := strconv.Atoi(str)
	if err != nil {
		return 0, apperr.Validation(key, "invalid integer for query param %s: %s", key, str)
	}
	return val, nil
}

// ParseQueryBoolPtr extracts an optional boolean query parameter. An absent
// parameter yields nil.
func ParseQueryBoolPtr(r *http.Request, key string) (*bool, error) {
	str := r.URL.Query().Get(key)
	if str == "" {
		return nil, nil
	}
	val, err := strconv.ParseBool(str)
	if err != nil {
		return nil, apperr.Validation(key, "invalid boolean for query param %s: %s", key, str)
	}
	return &val, nil
}

// ParseIfMatch reads an optimistic concurrency version from If-Match.
// Quoted (ETag style) values are accepted. Zero means no precondition.
func ParseIfMatch(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" {
		return 0, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, apperr.Validation("If-Match", "If-Match must be a positive version number")
	}
	return v, nil
}

// ParseListQuery reads the pagination and filter parameters shared by the
// list endpoints.
func ParseListQuery(r *http.Request) (authz.ListQuery, error) {
	var q authz.ListQuery
	var err error

	if q.Page, err = ParseQueryInt(r, "page", storage.DefaultPage); err != nil {
		return q, err
	}
	if q.Page < 1 {
		return q, apperr.Validation("page", "page must be at least 1")
	}
	if q.Limit, err = ParseQueryInt(r, "limit", storage.DefaultLimit); err != nil {
		return q, err
	}
	if q.Limit < 1 || q.Limit > storage.MaxLimit {
		return q, apperr.Validation("limit", "limit must be between 1 and %d", storage.MaxLimit)
	}
	if q.IsActive, err = ParseQueryBoolPtr(r, "isActive"); err != nil {
		return q, err
	}

	values := r.URL.Query()
	q.OrganizationID = strings.TrimSpace(values.Get("organizationId"))
	if q.OrganizationID != "" && !identity.IsValidID(q.OrganizationID) {
		return q, apperr.Validation("organizationId", "Invalid organization ID")
	}
	q.RoleID = strings.TrimSpace(values.Get("roleId"))
	if q.RoleID != "" && !identity.IsValidID(q.RoleID) {
		return q, apperr.Validation("roleId", "Invalid role ID")
	}

	if t := values.Get("type"); t != "" {
		q.Type = identity.OrganizationType(t)
		if !q.Type.Valid() {
			return q, apperr.Validation("type", "Invalid organization type")
		}
	}
	if s := values.Get("scope"); s != "" {
		q.Scope = identity.RoleScope(s)
		if !q.Scope.Valid() {
			return q, apperr.Validation("scope", "Scope must be platform or organization")
		}
	}
	if ut := values.Get("userType"); ut != "" {
		q.UserType = identity.UserType(ut)
		if !q.UserType.Valid() {
			return q, apperr.Validation("userType", "Invalid user type")
		}
	}
	q.Name = strings.TrimSpace(values.Get("name"))
	q.RoleName = strings.TrimSpace(values.Get("roleName"))
	return q, nil
}
