package identity

import (
	"time"
)

// UserType distinguishes platform operators from tenant users.
type UserType string

const (
	UserTypePlatformOwner UserType = "platform_owner"
	UserTypeCustomer      UserType = "customer"
)

// Valid reports whether t is a known user type.
func (t UserType) Valid() bool {
	return t == UserTypePlatformOwner || t == UserTypeCustomer
}

// RoleScope is the reach of a role.
type RoleScope string

const (
	ScopePlatform     RoleScope = "platform"
	ScopeOrganization RoleScope = "organization"
)

// Valid reports whether s is a known scope.
func (s RoleScope) Valid() bool {
	return s == ScopePlatform || s == ScopeOrganization
}

// OrganizationType classifies a tenant.
type OrganizationType string

const (
	OrgTypeLogistics        OrganizationType = "logistics"
	OrgTypeMaintainer       OrganizationType = "maintainer"
	OrgTypeCustomer         OrganizationType = "customer"
	OrgTypeResourceProvider OrganizationType = "resource_provider"
)

// Valid reports whether t is a known organization type.
func (t OrganizationType) Valid() bool {
	switch t {
	case OrgTypeLogistics, OrgTypeMaintainer, OrgTypeCustomer, OrgTypeResourceProvider:
		return true
	}
	return false
}

// OnboardingStatus tracks the onboarding saga for an organization.
type OnboardingStatus string

const (
	OnboardingPending   OnboardingStatus = "pending"
	OnboardingCompleted OnboardingStatus = "completed"
	OnboardingFailed    OnboardingStatus = "failed"
)

// Well known role names.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleViewer     = "viewer"
	RoleOrgAdmin   = "org_admin"
	RoleManager    = "manager"
	RoleOperator   = "operator"
)

// Permission strings used by the seeded roles.
const (
	PermissionAll     = "*"
	PermissionRead    = "read"
	PermissionWrite   = "write"
	PermissionOperate = "operate"
)

// User is a platform owner or tenant account.
type User struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	UserType       UserType   `json:"userType"`
	OrganizationID string     `json:"organizationId,omitempty"`
	RoleIDs        []string   `json:"roles"`
	IsActive       bool       `json:"isActive"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// HasRole reports whether the user references the role id.
func (u *User) HasRole(roleID string) bool {
	for _, id := range u.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Role is a named permission set scoped to the platform or one organization.
type Role struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Scope          RoleScope `json:"scope"`
	OrganizationID string    `json:"organizationId,omitempty"`
	Description    string    `json:"description,omitempty"`
	Permissions    []string  `json:"permissions"`
	IsActive       bool      `json:"isActive"`
	Version        int       `json:"version"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Organization is a tenant.
type Organization struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Type             OrganizationType `json:"type"`
	Code             string           `json:"code"`
	Description      string           `json:"description,omitempty"`
	ContactEmail     string           `json:"contactEmail,omitempty"`
	ContactPhone     string           `json:"contactPhone,omitempty"`
	Address          string           `json:"address,omitempty"`
	IsActive         bool             `json:"isActive"`
	OnboardedBy      string           `json:"onboardedBy,omitempty"`
	OnboardedAt      *time.Time       `json:"onboardedAt,omitempty"`
	OnboardingStatus OnboardingStatus `json:"onboardingStatus"`
	Version          int              `json:"version"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}
