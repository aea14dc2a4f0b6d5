package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/storage"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"message": "success"}

	err := WriteJSON(w, http.StatusOK, data)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "success")
}

func TestWriteAppError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		field  string
	}{
		{"validation", apperr.Validation("organizationId", "Organization ID is required for customer users"), http.StatusBadRequest, "organizationId"},
		{"unauthorized", apperr.Unauthorized("Invalid credentials"), http.StatusUnauthorized, ""},
		{"forbidden", apperr.Forbidden("Access denied"), http.StatusForbidden, ""},
		{"not found", apperr.NotFound("Role"), http.StatusNotFound, ""},
		{"conflict", apperr.Conflict("User already exists"), http.StatusConflict, ""},
		{"not implemented", apperr.NotImplemented("Bulk operations are not implemented"), http.StatusNotImplemented, ""},
		{"internal", errors.New("connection refused"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodGet, "/x", nil)

			WriteAppError(w, r, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.err.Error(), body.Error)
			assert.Equal(t, tt.field, body.Field)
		})
	}
}

func TestWriteList(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteList(w, []string{"a", "b"}, storage.NewPage(2, 2), 5))

	var body struct {
		Data       []string   `json:"data"`
		Pagination Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"a", "b"}, body.Data)
	assert.Equal(t, Pagination{Page: 2, Limit: 2, Total: 5, TotalPages: 3}, body.Pagination)
}
