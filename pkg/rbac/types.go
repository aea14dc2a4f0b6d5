package rbac

import (
	"encoding/json"

	"github.com/platinummonkey/bulwark/pkg/identity"
)

// CreateRoleRequest is the body of a role creation.
type CreateRoleRequest struct {
	Name           string             `json:"name"`
	Scope          identity.RoleScope `json:"scope"`
	OrganizationID string             `json:"organizationId"`
	Description    string             `json:"description"`
	Permissions    []string           `json:"permissions"`
	IsActive       *bool              `json:"isActive"`
}

// UpdateRoleRequest is the body of a role update. Nil fields are left
// untouched. Scope and OrganizationID are only decoded to detect attempts to
// change them, which are always rejected.
type UpdateRoleRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Permissions []string `json:"permissions"`
	IsActive    *bool    `json:"isActive"`

	Scope          json.RawMessage `json:"scope,omitempty"`
	OrganizationID json.RawMessage `json:"organizationId,omitempty"`

	// Version is the version the caller last read; 0 skips the check.
	Version int `json:"-"`
}

// touchesScope reports whether the body named scope or organizationId.
func (r UpdateRoleRequest) touchesScope() bool {
	return r.Scope != nil || r.OrganizationID != nil
}

// Definition is a built-in role.
type Definition struct {
	Name        string
	Description string
	Permissions []string
}

// Role returns a new role from the definition.
func (d Definition) Role(scope identity.RoleScope, organizationID string) *identity.Role {
	perms := make([]string, len(d.Permissions))
	copy(perms, d.Permissions)
	return &identity.Role{
		Name:           d.Name,
		Scope:          scope,
		OrganizationID: organizationID,
		Description:    d.Description,
		Permissions:    perms,
		IsActive:       true,
	}
}

// PlatformRoles returns the platform role set created at bootstrap.
func PlatformRoles() []Definition {
	return []Definition{
		{
			Name:        identity.RoleSuperAdmin,
			Description: "Full access to the platform",
			Permissions: []string{identity.PermissionAll},
		},
		{
			Name:        identity.RoleAdmin,
			Description: "Platform administration",
			Permissions: []string{identity.PermissionAll},
		},
		{
			Name:        identity.RoleViewer,
			Description: "Read-only platform access",
			Permissions: []string{identity.PermissionRead},
		},
	}
}

// OrganizationRoles returns the role set created for every onboarded
// organization.
func OrganizationRoles() []Definition {
	return []Definition{
		{
			Name:        identity.RoleOrgAdmin,
			Description: "Full access to the organization",
			Permissions: []string{identity.PermissionAll},
		},
		{
			Name:        identity.RoleManager,
			Description: "Manage organization resources",
			Permissions: []string{identity.PermissionRead, identity.PermissionWrite},
		},
		{
			Name:        identity.RoleOperator,
			Description: "Operate organization resources",
			Permissions: []string{identity.PermissionRead, identity.PermissionOperate},
		},
		{
			Name:        identity.RoleViewer,
			Description: "Read-only organization access",
			Permissions: []string{identity.PermissionRead},
		},
	}
}
