package main

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/auth"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/observability"
	"github.com/platinummonkey/bulwark/pkg/storage"
	"github.com/platinummonkey/bulwark/pkg/storage/memory"
)

func TestSeed(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	owner := OwnerFlags{Email: "Owner@Example.com", Password: "correct-horse", FirstName: "Pat", LastName: "Owner"}

	require.NoError(t, seed(ctx, store, owner, bcrypt.MinCost, logger))

	roles, err := store.ListRoles(ctx, storage.RoleFilter{Scope: identity.ScopePlatform}, storage.NewPage(1, storage.MaxLimit))
	require.NoError(t, err)
	var names []string
	for _, r := range roles.Items {
		names = append(names, r.Name)
	}
	assert.ElementsMatch(t, []string{identity.RoleSuperAdmin, identity.RoleAdmin, identity.RoleViewer}, names)

	u, err := store.GetUserByEmail(ctx, "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, identity.UserTypePlatformOwner, u.UserType)
	assert.Empty(t, u.OrganizationID)
	require.Len(t, u.RoleIDs, 1)
	ok, err := auth.VerifyPassword(u.PasswordHash, "correct-horse")
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("idempotent", func(t *testing.T) {
		require.NoError(t, seed(ctx, store, owner, bcrypt.MinCost, logger))
		roles, err := store.ListRoles(ctx, storage.RoleFilter{Scope: identity.ScopePlatform}, storage.NewPage(1, storage.MaxLimit))
		require.NoError(t, err)
		assert.Equal(t, 3, roles.Total)

		again, err := store.GetUserByEmail(ctx, "owner@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, again.ID)
	})
}

func TestSeedRejectsShortPassword(t *testing.T) {
	store := memory.New()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	err := seed(context.Background(), store, OwnerFlags{Email: "owner@example.com", Password: "short", FirstName: "P", LastName: "O"}, bcrypt.MinCost, logger)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Error(t, OwnerFlags{Password: "short"}.Validate())
	assert.NoError(t, OwnerFlags{Password: "long-enough"}.Validate())
}
