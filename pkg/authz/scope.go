package authz

import (
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/storage"
)

// ListQuery is a caller's list request after parsing.
type ListQuery struct {
	Page           int
	Limit          int
	OrganizationID string
	IsActive       *bool
	Type           identity.OrganizationType
	Scope          identity.RoleScope
	UserType       identity.UserType
	Name           string
	RoleName       string
	RoleID         string
}

// PageOf returns the normalized page of q.
func (q ListQuery) PageOf() storage.Page {
	return storage.NewPage(q.Page, q.Limit)
}

// Scoper computes tenant-scoped list filters.
type Scoper struct {
	gate *Gate
}

// NewScoper creates a scoper sharing the gate's bypass configuration.
func NewScoper(gate *Gate) *Scoper {
	return &Scoper{gate: gate}
}

// tenant resolves which organization a list is pinned to. For platform owners
// and bypass customers it is the requested one (possibly empty, meaning all).
func (s *Scoper) tenant(c identity.Claims, requested string) string {
	if c.IsPlatformOwner() || s.gate.HasBypass(c) {
		return requested
	}
	return c.OrganizationID
}

// Organizations returns the filter for an organization listing.
func (s *Scoper) Organizations(c identity.Claims, q ListQuery) storage.OrganizationFilter {
	return storage.OrganizationFilter{
		ID:       s.tenant(c, q.OrganizationID),
		Type:     q.Type,
		IsActive: q.IsActive,
	}
}

// Roles returns the filter for a role listing. Customers only ever see
// organization-scoped roles.
func (s *Scoper) Roles(c identity.Claims, q ListQuery) storage.RoleFilter {
	f := storage.RoleFilter{
		OrganizationID: s.tenant(c, q.OrganizationID),
		Scope:          q.Scope,
		Name:           q.Name,
		IsActive:       q.IsActive,
	}
	if !c.IsPlatformOwner() {
		f.Scope = identity.ScopeOrganization
	}
	return f
}

// Users returns the filter for a user listing. roleIDs is the resolved role
// membership constraint (from roleId and/or roleName), nil for none. Customers
// never see platform owner accounts.
func (s *Scoper) Users(c identity.Claims, q ListQuery, roleIDs []string) storage.UserFilter {
	f := storage.UserFilter{
		OrganizationID: s.tenant(c, q.OrganizationID),
		UserType:       q.UserType,
		RoleIDs:        roleIDs,
		IsActive:       q.IsActive,
	}
	if !c.IsPlatformOwner() {
		f.UserType = identity.UserTypeCustomer
	}
	return f
}
