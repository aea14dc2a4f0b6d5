package users

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/auth"
	"github.com/platinummonkey/bulwark/pkg/authz"
	"github.com/platinummonkey/bulwark/pkg/cache"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/observability"
	"github.com/platinummonkey/bulwark/pkg/storage/memory"
	"github.com/platinummonkey/bulwark/pkg/tokens"
)

type fixture struct {
	svc      *Service
	store    *memory.Store
	issuer   *tokens.Issuer
	orgA     *identity.Organization
	orgB     *identity.Organization
	viewerA  *identity.Role
	managerA *identity.Role
	viewerB  *identity.Role
	platform *identity.Role
}

func newFixture(t *testing.T, opts ...authz.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	store := memory.New()
	c, err := cache.NewLocalCache(1000)
	require.NoError(t, err)
	issuer, err := tokens.NewIssuer(tokens.Config{Secret: "test-secret", Issuer: "bulwark", AccessExpiry: "15m", RefreshExpiry: "7d"}, c)
	require.NoError(t, err)

	f := &fixture{store: store, issuer: issuer}
	f.orgA = &identity.Organization{Name: "Acme", Type: identity.OrgTypeCustomer, Code: "ACME", IsActive: true}
	f.orgB = &identity.Organization{Name: "Globex", Type: identity.OrgTypeCustomer, Code: "GLOBEX", IsActive: true}
	require.NoError(t, store.CreateOrganization(ctx, f.orgA))
	require.NoError(t, store.CreateOrganization(ctx, f.orgB))

	f.viewerA = &identity.Role{Name: identity.RoleViewer, Scope: identity.ScopeOrganization, OrganizationID: f.orgA.ID, Permissions: []string{identity.PermissionRead}, IsActive: true}
	f.managerA = &identity.Role{Name: identity.RoleManager, Scope: identity.ScopeOrganization, OrganizationID: f.orgA.ID, Permissions: []string{identity.PermissionRead, identity.PermissionWrite}, IsActive: true}
	f.viewerB = &identity.Role{Name: identity.RoleViewer, Scope: identity.ScopeOrganization, OrganizationID: f.orgB.ID, Permissions: []string{identity.PermissionRead}, IsActive: true}
	f.platform = &identity.Role{Name: identity.RoleAdmin, Scope: identity.ScopePlatform, Permissions: []string{identity.PermissionAll}, IsActive: true}
	for _, r := range []*identity.Role{f.viewerA, f.managerA, f.viewerB, f.platform} {
		require.NoError(t, store.CreateRole(ctx, r))
	}

	registrar := auth.NewService(store, issuer, logger, auth.WithBcryptCost(bcrypt.MinCost))
	f.svc = NewService(store, authz.NewGate(opts...), cache.NewListCache(c, 0, logger), issuer, registrar, logger)
	return f
}

func (f *fixture) customer(org *identity.Organization, roles ...string) identity.Claims {
	return identity.Claims{UserID: identity.NewID(), UserType: identity.UserTypeCustomer, OrganizationID: org.ID, RoleNames: roles, IsActive: true}
}

func owner(roles ...string) identity.Claims {
	return identity.Claims{UserID: identity.NewID(), UserType: identity.UserTypePlatformOwner, RoleNames: roles, IsActive: true}
}

func (f *fixture) createUser(t *testing.T, email string, org *identity.Organization, roles ...*identity.Role) *identity.UserView {
	t.Helper()
	ids := make([]string, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}
	v, err := f.svc.Create(context.Background(), owner(identity.RoleSuperAdmin), auth.RegisterRequest{
		Email:          email,
		Password:       "correct-horse",
		FirstName:      "Test",
		LastName:       "User",
		OrganizationID: org.ID,
		RoleIDs:        ids,
	})
	require.NoError(t, err)
	return v
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgAdmin := f.customer(f.orgA, identity.RoleOrgAdmin)

	t.Run("defaults to the caller's organization", func(t *testing.T) {
		v, err := f.svc.Create(ctx, orgAdmin, auth.RegisterRequest{
			Email:     "New@Acme.test",
			Password:  "correct-horse",
			FirstName: "New",
			LastName:  "Hire",
			RoleIDs:   []string{f.managerA.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, "new@acme.test", v.Email)
		require.NotNil(t, v.OrganizationID)
		assert.Equal(t, f.orgA.ID, *v.OrganizationID)
		require.Len(t, v.Roles, 1)
		assert.Equal(t, identity.RoleManager, v.Roles[0].Name)
	})

	t.Run("default role", func(t *testing.T) {
		v, err := f.svc.Create(ctx, orgAdmin, auth.RegisterRequest{
			Email: "plain@acme.test", Password: "correct-horse", FirstName: "Plain", LastName: "User",
		})
		require.NoError(t, err)
		require.Len(t, v.Roles, 1)
		assert.Equal(t, f.viewerA.ID, v.Roles[0].ID)
	})

	t.Run("customer cannot hand out platform roles", func(t *testing.T) {
		_, err := f.svc.Create(ctx, orgAdmin, auth.RegisterRequest{
			Email: "p@acme.test", Password: "correct-horse", FirstName: "P", LastName: "Q",
			RoleIDs: []string{f.platform.ID},
		})
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("customer cannot hand out another tenant's roles", func(t *testing.T) {
		_, err := f.svc.Create(ctx, orgAdmin, auth.RegisterRequest{
			Email: "x@acme.test", Password: "correct-horse", FirstName: "X", LastName: "Y",
			RoleIDs: []string{f.viewerB.ID},
		})
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("customer cannot create platform owners", func(t *testing.T) {
		_, err := f.svc.Create(ctx, orgAdmin, auth.RegisterRequest{
			Email: "o@acme.test", Password: "correct-horse", FirstName: "O", LastName: "P",
			UserType: identity.UserTypePlatformOwner,
		})
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("viewer cannot create", func(t *testing.T) {
		_, err := f.svc.Create(ctx, f.customer(f.orgA, identity.RoleViewer), auth.RegisterRequest{
			Email: "v@acme.test", Password: "correct-horse", FirstName: "V", LastName: "W",
		})
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, err := f.svc.Create(ctx, orgAdmin, auth.RegisterRequest{
			Email: "u@acme.test", Password: "correct-horse", FirstName: "U", LastName: "V",
			RoleIDs: []string{identity.NewID()},
		})
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := f.svc.Create(ctx, orgAdmin, auth.RegisterRequest{
			Email: "NEW@acme.test", Password: "correct-horse", FirstName: "N", LastName: "H",
		})
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice@acme.test", f.orgA, f.viewerA)
	f.createUser(t, "bob@acme.test", f.orgA, f.managerA)
	f.createUser(t, "carol@globex.test", f.orgB, f.viewerB)

	t.Run("customers stay in their tenant", func(t *testing.T) {
		page, err := f.svc.List(ctx, f.customer(f.orgA, identity.RoleViewer), authz.ListQuery{OrganizationID: f.orgB.ID})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		for _, v := range page.Items {
			assert.Equal(t, f.orgA.ID, *v.OrganizationID)
		}
	})

	t.Run("roles are resolved", func(t *testing.T) {
		page, err := f.svc.List(ctx, owner(identity.RoleViewer), authz.ListQuery{RoleID: f.viewerA.ID})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, alice.ID, page.Items[0].ID)
		assert.Equal(t, identity.RoleViewer, page.Items[0].Roles[0].Name)
		assert.Equal(t, []string{identity.PermissionRead}, page.Items[0].Roles[0].Permissions)
	})

	t.Run("role name spans tenants for owners", func(t *testing.T) {
		page, err := f.svc.List(ctx, owner(identity.RoleViewer), authz.ListQuery{RoleName: identity.RoleViewer})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
	})

	t.Run("role name is tenant scoped for customers", func(t *testing.T) {
		page, err := f.svc.List(ctx, f.customer(f.orgA, identity.RoleViewer), authz.ListQuery{RoleName: identity.RoleViewer})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, alice.ID, page.Items[0].ID)
	})

	t.Run("role id and name intersect", func(t *testing.T) {
		page, err := f.svc.List(ctx, owner(identity.RoleViewer), authz.ListQuery{RoleID: f.managerA.ID, RoleName: identity.RoleViewer})
		require.NoError(t, err)
		assert.Equal(t, 0, page.Total)
		assert.Empty(t, page.Items)
	})

	t.Run("unknown role name matches nothing", func(t *testing.T) {
		page, err := f.svc.List(ctx, owner(identity.RoleViewer), authz.ListQuery{RoleName: "nobody"})
		require.NoError(t, err)
		assert.Equal(t, 0, page.Total)
	})
}

func TestGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	carol := f.createUser(t, "carol@globex.test", f.orgB, f.viewerB)

	_, err := f.svc.Get(ctx, f.customer(f.orgA, identity.RoleOrgAdmin), carol.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	v, err := f.svc.Get(ctx, f.customer(f.orgB, identity.RoleViewer), carol.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol@globex.test", v.Email)

	_, err = f.svc.Get(ctx, owner(), identity.NewID())
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgAdmin := f.customer(f.orgA, identity.RoleOrgAdmin)
	alice := f.createUser(t, "alice@acme.test", f.orgA, f.viewerA)

	t.Run("profile change keeps the session", func(t *testing.T) {
		name := "Alicia"
		v, err := f.svc.Update(ctx, orgAdmin, alice.ID, identity.UserPatch{FirstName: &name}, alice.Version)
		require.NoError(t, err)
		assert.Equal(t, "Alicia", v.FirstName)

		session, err := f.issuer.Session(ctx, alice.ID)
		require.NoError(t, err)
		assert.NotNil(t, session)
	})

	t.Run("stale version", func(t *testing.T) {
		name := "Late"
		_, err := f.svc.Update(ctx, orgAdmin, alice.ID, identity.UserPatch{FirstName: &name}, alice.Version)
		assert.ErrorIs(t, err, apperr.ErrConflict)
	})

	t.Run("role change drops the session", func(t *testing.T) {
		v, err := f.svc.Update(ctx, orgAdmin, alice.ID, identity.UserPatch{RoleIDs: []string{f.managerA.ID}}, 0)
		require.NoError(t, err)
		require.Len(t, v.Roles, 1)
		assert.Equal(t, identity.RoleManager, v.Roles[0].Name)

		session, err := f.issuer.Session(ctx, alice.ID)
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("customer cannot grant platform owner", func(t *testing.T) {
		typ := identity.UserTypePlatformOwner
		_, err := f.svc.Update(ctx, f.customer(f.orgA, identity.RoleOrgAdmin, identity.RoleAdmin), alice.ID, identity.UserPatch{UserType: &typ}, 0)
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("customer cannot move users to another tenant", func(t *testing.T) {
		_, err := f.svc.Update(ctx, f.customer(f.orgA, identity.RoleOrgAdmin), alice.ID, identity.UserPatch{OrganizationID: &f.orgB.ID}, 0)
		assert.ErrorIs(t, err, apperr.ErrForbidden)
	})

	t.Run("moving tenants requires compatible roles", func(t *testing.T) {
		_, err := f.svc.Update(ctx, owner(identity.RoleSuperAdmin), alice.ID, identity.UserPatch{OrganizationID: &f.orgB.ID}, 0)
		assert.ErrorIs(t, err, apperr.ErrValidation)

		v, err := f.svc.Update(ctx, owner(identity.RoleSuperAdmin), alice.ID, identity.UserPatch{
			OrganizationID: &f.orgB.ID,
			RoleIDs:        []string{f.viewerB.ID},
		}, 0)
		require.NoError(t, err)
		assert.Equal(t, f.orgB.ID, *v.OrganizationID)
	})

	t.Run("empty roles", func(t *testing.T) {
		_, err := f.svc.Update(ctx, owner(identity.RoleSuperAdmin), alice.ID, identity.UserPatch{RoleIDs: []string{}}, 0)
		assert.ErrorIs(t, err, apperr.ErrValidation)
	})
}

func TestAssignRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orgAdmin := f.customer(f.orgA, identity.RoleOrgAdmin)
	alice := f.createUser(t, "alice@acme.test", f.orgA, f.viewerA)

	v, err := f.svc.AssignRoles(ctx, orgAdmin, alice.ID, []string{f.viewerA.ID, f.managerA.ID, f.managerA.ID}, alice.Version)
	require.NoError(t, err)
	assert.Len(t, v.Roles, 2)
	assert.Equal(t, alice.Version+1, v.Version)

	session, err := f.issuer.Session(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, session)

	_, err = f.svc.AssignRoles(ctx, orgAdmin, alice.ID, []string{f.viewerB.ID}, 0)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.AssignRoles(ctx, owner(identity.RoleSuperAdmin), alice.ID, []string{f.viewerB.ID}, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.AssignRoles(ctx, orgAdmin, alice.ID, nil, 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.AssignRoles(ctx, f.customer(f.orgA, identity.RoleViewer), alice.ID, []string{f.viewerA.ID}, 0)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	// owners may give customers platform roles
	v, err = f.svc.AssignRoles(ctx, owner(identity.RoleSuperAdmin), alice.ID, []string{f.platform.ID}, 0)
	require.NoError(t, err)
	assert.Equal(t, identity.ScopePlatform, v.Roles[0].Scope)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createUser(t, "alice@acme.test", f.orgA, f.viewerA)

	_, err := f.svc.Delete(ctx, f.customer(f.orgB, identity.RoleOrgAdmin), alice.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	v, err := f.svc.Delete(ctx, f.customer(f.orgA, identity.RoleOrgAdmin), alice.ID)
	require.NoError(t, err)
	assert.False(t, v.IsActive)

	stored, err := f.store.GetUser(ctx, alice.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	session, err := f.issuer.Session(ctx, alice.ID)
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestBulk(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Bulk(context.Background(), owner(identity.RoleSuperAdmin))
	assert.ErrorIs(t, err, apperr.ErrNotImplemented)
}
