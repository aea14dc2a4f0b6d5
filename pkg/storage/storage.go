package storage

import (
	"context"
	"time"

	"github.com/platinummonkey/bulwark/pkg/identity"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// MsgOrganizationInUse is the error message for deleting an organization that
// still owns roles or users.
const MsgOrganizationInUse = "Organization still has roles or users"

// Page selects a 1-indexed page of results.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// NewPage applies defaults and bounds.
func NewPage(page, limit int) Page {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return Page{Page: page, Limit: limit}
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// ListResult is one page of results plus the unpaginated total.
type ListResult[T any] struct {
	Items []T  `json:"items"`
	Total int  `json:"total"`
	Page  Page `json:"page"`
}

// TotalPages returns the number of pages for the total.
func (r *ListResult[T]) TotalPages() int {
	if r.Page.Limit == 0 {
		return 0
	}
	return (r.Total + r.Page.Limit - 1) / r.Page.Limit
}

// OrganizationFilter narrows organization listings. Zero values do not filter.
type OrganizationFilter struct {
	ID               string                    `json:"id,omitempty"`
	Type             identity.OrganizationType `json:"type,omitempty"`
	IsActive         *bool                     `json:"isActive,omitempty"`
	OnboardingStatus identity.OnboardingStatus `json:"onboardingStatus,omitempty"`
	CreatedBefore    *time.Time                `json:"createdBefore,omitempty"`
}

// RoleFilter narrows role listings. Zero values do not filter.
type RoleFilter struct {
	OrganizationID string             `json:"organizationId,omitempty"`
	Scope          identity.RoleScope `json:"scope,omitempty"`
	Name           string             `json:"name,omitempty"`
	IsActive       *bool              `json:"isActive,omitempty"`
}

// UserFilter narrows user listings. Zero values do not filter. RoleIDs
// matches users holding any of the ids.
type UserFilter struct {
	OrganizationID string            `json:"organizationId,omitempty"`
	UserType       identity.UserType `json:"userType,omitempty"`
	RoleIDs        []string          `json:"roleIds,omitempty"`
	IsActive       *bool             `json:"isActive,omitempty"`
}

// UserStore persists users.
type UserStore interface {
	CreateUser(ctx context.Context, u *identity.User) error
	GetUser(ctx context.Context, id string) (*identity.User, error)
	GetUserByEmail(ctx context.Context, email string) (*identity.User, error)
	UpdateUser(ctx context.Context, u *identity.User) error
	ListUsers(ctx context.Context, filter UserFilter, page Page) (*ListResult[*identity.User], error)
	ListUserIDsByRole(ctx context.Context, roleID string) ([]string, error)
	RecordLogin(ctx context.Context, id string, at time.Time) error
}

// RoleStore persists roles.
type RoleStore interface {
	CreateRole(ctx context.Context, r *identity.Role) error
	GetRole(ctx context.Context, id string) (*identity.Role, error)
	GetRoles(ctx context.Context, ids []string) ([]*identity.Role, error)
	FindRole(ctx context.Context, name string, scope identity.RoleScope, organizationID string) (*identity.Role, error)
	UpdateRole(ctx context.Context, r *identity.Role) error
	ListRoles(ctx context.Context, filter RoleFilter, page Page) (*ListResult[*identity.Role], error)
	DeleteRole(ctx context.Context, id string) error
}

// OrganizationStore persists organizations.
type OrganizationStore interface {
	CreateOrganization(ctx context.Context, o *identity.Organization) error
	GetOrganization(ctx context.Context, id string) (*identity.Organization, error)
	UpdateOrganization(ctx context.Context, o *identity.Organization) error
	ListOrganizations(ctx context.Context, filter OrganizationFilter, page Page) (*ListResult[*identity.Organization], error)
	DeleteOrganization(ctx context.Context, id string) error
}

// Store bundles all entity stores.
type Store interface {
	UserStore
	RoleStore
	OrganizationStore
}
