package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bulwark/pkg/apperr"
)

const (
	orgA  = "0b7e3a59-1f6c-4c1c-9a53-6a1c6f5a0a01"
	roleV = "6f1d1f1e-0c3e-4a8a-8f44-2a4a6b9f0c11"
	roleM = "6f1d1f1e-0c3e-4a8a-8f44-2a4a6b9f0c12"
)

func TestUserValidate(t *testing.T) {
	base := func() *User {
		return &User{
			Email:          "  Alice@Acme.COM ",
			FirstName:      "Alice",
			LastName:       "Smith",
			OrganizationID: orgA,
			RoleIDs:        []string{roleV},
		}
	}

	t.Run("normalizes and defaults to customer", func(t *testing.T) {
		u := base()
		u.Normalize()
		require.NoError(t, u.Validate())
		assert.Equal(t, "alice@acme.com", u.Email)
		assert.Equal(t, UserTypeCustomer, u.UserType)
	})

	t.Run("customer requires organization", func(t *testing.T) {
		u := base()
		u.OrganizationID = ""
		u.Normalize()
		err := u.Validate()
		require.Error(t, err)
		assert.Equal(t, "Organization ID is required for customer users", err.Error())
		assert.Equal(t, "organizationId", apperr.FieldOf(err))
	})

	t.Run("platform owner may omit organization", func(t *testing.T) {
		u := base()
		u.OrganizationID = ""
		u.UserType = UserTypePlatformOwner
		u.Normalize()
		assert.NoError(t, u.Validate())
	})

	t.Run("malformed organization id", func(t *testing.T) {
		u := base()
		u.OrganizationID = "not-a-uuid"
		u.Normalize()
		assert.EqualError(t, u.Validate(), "Invalid organization ID")
	})

	t.Run("roles required", func(t *testing.T) {
		u := base()
		u.RoleIDs = nil
		u.Normalize()
		assert.ErrorIs(t, u.Validate(), apperr.ErrValidation)
	})
}

func TestRoleValidate(t *testing.T) {
	tests := []struct {
		name    string
		role    Role
		wantErr string
	}{
		{"platform ok", Role{Name: "viewer", Scope: ScopePlatform}, ""},
		{"org ok", Role{Name: " org_admin ", Scope: ScopeOrganization, OrganizationID: orgA}, ""},
		{"missing name", Role{Name: "  ", Scope: ScopePlatform}, "Role name is required"},
		{"bad scope", Role{Name: "x", Scope: "global"}, "Scope must be platform or organization"},
		{"platform with org", Role{Name: "x", Scope: ScopePlatform, OrganizationID: orgA}, "Platform roles cannot belong to an organization"},
		{"org without org", Role{Name: "x", Scope: ScopeOrganization}, "Organization ID is required for organization roles"},
		{"reserved name", Role{Name: "super_admin", Scope: ScopeOrganization, OrganizationID: orgA}, `Role name "super_admin" is reserved for platform scope`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := tt.role
			r.Normalize()
			err := r.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

func TestOrganizationValidate(t *testing.T) {
	o := &Organization{Name: " Acme ", Code: " acme-01 "}
	o.Normalize()
	require.NoError(t, o.Validate())
	assert.Equal(t, "ACME-01", o.Code)
	assert.Equal(t, OrgTypeCustomer, o.Type)

	o.Type = "bank"
	assert.EqualError(t, o.Validate(), "Invalid organization type")

	o.Type = OrgTypeLogistics
	o.Code = "A"
	assert.ErrorIs(t, o.Validate(), apperr.ErrValidation)
}

func TestNewClaims(t *testing.T) {
	u := &User{ID: "u1", Email: "a@b.co", UserType: UserTypeCustomer, OrganizationID: orgA, IsActive: true}
	roles := []*Role{
		{ID: roleV, Name: "viewer", IsActive: true},
		{ID: roleM, Name: "manager", IsActive: false},
	}

	c := NewClaims(u, roles)
	assert.Equal(t, []string{"viewer"}, c.RoleNames)
	assert.Equal(t, []string{roleV}, c.RoleIDs)
	assert.True(t, c.HasAnyRole("admin", "viewer"))
	assert.False(t, c.HasAnyRole("manager"))
	assert.False(t, c.IsPlatformOwner())
}

func TestUserPatchApply(t *testing.T) {
	u := &User{FirstName: "A", RoleIDs: []string{roleV}, IsActive: true, UserType: UserTypeCustomer, OrganizationID: orgA}

	name := " Bob "
	changed := UserPatch{FirstName: &name}.Apply(u)
	assert.False(t, changed)
	assert.Equal(t, "Bob", u.FirstName)

	changed = UserPatch{RoleIDs: []string{roleV, roleV}}.Apply(u)
	assert.False(t, changed, "same role set after dedupe")

	inactive := false
	changed = UserPatch{IsActive: &inactive}.Apply(u)
	assert.True(t, changed)
	assert.False(t, u.IsActive)

	changed = UserPatch{RoleIDs: []string{roleM}}.Apply(u)
	assert.True(t, changed)
	assert.Equal(t, []string{roleM}, u.RoleIDs)
}

func TestNewUserView(t *testing.T) {
	u := &User{ID: "u1", Email: "a@b.co", PasswordHash: "secret", RoleIDs: []string{roleV, roleM}}
	v := NewUserView(u, []*Role{{ID: roleV, Name: "viewer", Scope: ScopeOrganization}})

	require.Len(t, v.Roles, 2)
	assert.Equal(t, "viewer", v.Roles[0].Name)
	assert.Equal(t, roleM, v.Roles[1].ID)
	assert.Empty(t, v.Roles[1].Name)
	assert.Nil(t, v.OrganizationID)
}
