package onboarding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/auth"
	"github.com/platinummonkey/bulwark/pkg/contextkeys"
	"github.com/platinummonkey/bulwark/pkg/identity"
)

func TestHTTPRegistrar_Register(t *testing.T) {
	var gotAuth string
	var gotBody auth.RegisterRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, RegisterPath, r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(auth.Session{
			User:        identity.UserView{ID: "u-1", Email: gotBody.Email},
			AccessToken: "access",
		})
	}))
	defer server.Close()

	ctx := contextkeys.WithAccessToken(context.Background(), "caller-token")
	session, err := NewHTTPRegistrar(server.URL+"/", time.Second).Register(ctx, auth.RegisterRequest{
		Email:          "admin@org1.test",
		Password:       "correct-horse",
		OrganizationID: "org-1",
		RoleIDs:        []string{"role-1"},
		Actor:          &identity.Claims{UserID: "actor"},
	})
	require.NoError(t, err)
	assert.Equal(t, "u-1", session.User.ID)
	assert.Equal(t, "Bearer caller-token", gotAuth)
	assert.Equal(t, []string{"role-1"}, gotBody.RoleIDs)
	assert.Nil(t, gotBody.Actor)
}

func TestHTTPRegistrar_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
		field  string
	}{
		{"validation", http.StatusBadRequest, `{"error":"Password must be at least 8 characters","field":"password"}`, apperr.ErrValidation, "password"},
		{"conflict", http.StatusConflict, `{"error":"User already exists"}`, apperr.ErrConflict, ""},
		{"forbidden", http.StatusForbidden, `{"error":"Only platform owners can assign platform roles"}`, apperr.ErrForbidden, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewHTTPRegistrar(server.URL, time.Second).Register(context.Background(), auth.RegisterRequest{})
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.field, apperr.FieldOf(err))
		})
	}

	t.Run("server error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusBadGateway)
		}))
		defer server.Close()

		_, err := NewHTTPRegistrar(server.URL, time.Second).Register(context.Background(), auth.RegisterRequest{})
		require.Error(t, err)
		assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
		assert.Contains(t, err.Error(), "502")
	})
}
