package authz

import (
	"context"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/identity"
)

// ResourceKind names a protected entity type.
type ResourceKind string

const (
	KindOrganization ResourceKind = "organization"
	KindRole         ResourceKind = "role"
	KindUser         ResourceKind = "user"
)

// Action is an operation on a resource.
type Action string

const (
	ActionRead        Action = "read"
	ActionList        Action = "list"
	ActionCreate      Action = "create"
	ActionUpdate      Action = "update"
	ActionDelete      Action = "delete"
	ActionAssignRoles Action = "assign_roles"
	// ActionChangeIdentity changes an organization's type or code.
	ActionChangeIdentity Action = "change_identity"
	// ActionChangeStatus activates or deactivates an organization.
	ActionChangeStatus Action = "change_status"
	ActionOnboard      Action = "onboard"
)

// Mutating reports whether the action writes.
func (a Action) Mutating() bool {
	return a != ActionRead && a != ActionList
}

// Resource describes the target of an operation.
type Resource struct {
	Kind           ResourceKind
	Scope          identity.RoleScope
	OrganizationID string
}

// OrganizationResource describes an existing organization.
func OrganizationResource(o *identity.Organization) Resource {
	return Resource{Kind: KindOrganization, Scope: identity.ScopeOrganization, OrganizationID: o.ID}
}

// RoleResource describes an existing or prospective role.
func RoleResource(scope identity.RoleScope, organizationID string) Resource {
	return Resource{Kind: KindRole, Scope: scope, OrganizationID: organizationID}
}

// UserResource describes an existing or prospective user. Platform owner
// accounts are platform-scoped.
func UserResource(userType identity.UserType, organizationID string) Resource {
	scope := identity.ScopeOrganization
	if userType == identity.UserTypePlatformOwner {
		scope = identity.ScopePlatform
	}
	return Resource{Kind: KindUser, Scope: scope, OrganizationID: organizationID}
}

var (
	roleMutators   = []string{identity.RoleOrgAdmin, identity.RoleAdmin, identity.RoleSuperAdmin}
	platformAdmins = []string{identity.RoleAdmin, identity.RoleSuperAdmin}
	superAdminOnly = []string{identity.RoleSuperAdmin}
)

var requiredRoles = map[ResourceKind]map[Action][]string{
	KindRole: {
		ActionCreate: roleMutators,
		ActionUpdate: roleMutators,
		ActionDelete: roleMutators,
	},
	KindOrganization: {
		ActionCreate:         platformAdmins,
		ActionUpdate:         roleMutators,
		ActionDelete:         superAdminOnly,
		ActionChangeIdentity: superAdminOnly,
		ActionChangeStatus:   superAdminOnly,
		ActionOnboard:        platformAdmins,
	},
	KindUser: {
		ActionCreate:      roleMutators,
		ActionUpdate:      roleMutators,
		ActionDelete:      roleMutators,
		ActionAssignRoles: roleMutators,
	},
}

// RequiredRoles returns the role names of which a caller must hold at least
// one to perform action on kind, or nil when any authenticated caller may.
func RequiredRoles(kind ResourceKind, action Action) []string {
	return requiredRoles[kind][action]
}

// Observer is told about every denied decision made through Check.
type Observer interface {
	Denied(ctx context.Context, c identity.Claims, action Action, res Resource, err error)
}

// Gate makes single-resource authorization decisions.
type Gate struct {
	bypassRoles []string
	observer    Observer
}

// Option configures a Gate.
type Option func(*Gate)

// WithCustomerAdminBypass enables or disables the cross-tenant visibility
// granted to customers holding super_admin or admin.
func WithCustomerAdminBypass(enabled bool) Option {
	return func(g *Gate) {
		if enabled {
			g.bypassRoles = platformAdmins
		} else {
			g.bypassRoles = nil
		}
	}
}

// WithObserver reports denials made through Check to o.
func WithObserver(o Observer) Option {
	return func(g *Gate) { g.observer = o }
}

// NewGate creates a gate with the customer admin bypass enabled.
func NewGate(opts ...Option) *Gate {
	g := &Gate{bypassRoles: platformAdmins}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// HasBypass reports whether the caller is a customer with cross-tenant
// visibility.
func (g *Gate) HasBypass(c identity.Claims) bool {
	return len(g.bypassRoles) > 0 && c.HasAnyRole(g.bypassRoles...)
}

// Authorize returns nil when the caller may perform action on res and a
// Forbidden error otherwise.
func (g *Gate) Authorize(c identity.Claims, action Action, res Resource) error {
	if c.IsPlatformOwner() {
		return nil
	}

	if c.UserType != identity.UserTypeCustomer || c.OrganizationID == "" {
		return apperr.Forbidden("Access denied")
	}

	if res.Scope == identity.ScopePlatform {
		return apperr.Forbidden("Access denied: platform resources are not available to organization users")
	}

	if res.OrganizationID != c.OrganizationID && !g.HasBypass(c) {
		return apperr.Forbidden("Access denied: resource belongs to another organization")
	}

	if required := RequiredRoles(res.Kind, action); len(required) > 0 && !c.HasAnyRole(required...) {
		return apperr.Forbidden("Insufficient permissions for this operation")
	}

	return nil
}

// Check is Authorize plus denial reporting to the configured observer.
func (g *Gate) Check(ctx context.Context, c identity.Claims, action Action, res Resource) error {
	err := g.Authorize(c, action, res)
	if err != nil && g.observer != nil {
		g.observer.Denied(ctx, c, action, res, err)
	}
	return err
}

// CheckStrict is Check that also holds platform owners to the action's role
// set. Organization delete, status and identity changes go through it.
func (g *Gate) CheckStrict(ctx context.Context, c identity.Claims, action Action, res Resource) error {
	err := g.Authorize(c, action, res)
	if err == nil {
		if required := RequiredRoles(res.Kind, action); len(required) > 0 && !c.HasAnyRole(required...) {
			err = apperr.Forbidden("Insufficient permissions for this operation")
		}
	}
	if err != nil && g.observer != nil {
		g.observer.Denied(ctx, c, action, res, err)
	}
	return err
}
