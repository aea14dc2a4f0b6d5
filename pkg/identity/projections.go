package identity

import (
	"strings"
	"time"
)

// RoleRef is a role reference inside a user view. Only ID is set unless the
// role documents were resolved.
type RoleRef struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Scope       RoleScope `json:"scope,omitempty"`
	Permissions []string  `json:"permissions,omitempty"`
}

// UserView is the caller-facing projection of a user.
type UserView struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	UserType       UserType   `json:"userType"`
	OrganizationID *string    `json:"organizationId"`
	Roles          []RoleRef  `json:"roles"`
	IsActive       bool       `json:"isActive"`
	LastLogin      *time.Time `json:"lastLogin"`
	Version        int        `json:"version"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// NewUserView projects u. Roles found in resolved are embedded, the rest are
// listed by id.
func NewUserView(u *User, resolved []*Role) UserView {
	byID := make(map[string]*Role, len(resolved))
	for _, r := range resolved {
		byID[r.ID] = r
	}

	refs := make([]RoleRef, 0, len(u.RoleIDs))
	for _, id := range u.RoleIDs {
		ref := RoleRef{ID: id}
		if r, ok := byID[id]; ok {
			ref.Name = r.Name
			ref.Scope = r.Scope
			ref.Permissions = r.Permissions
		}
		refs = append(refs, ref)
	}

	var orgID *string
	if u.OrganizationID != "" {
		id := u.OrganizationID
		orgID = &id
	}

	return UserView{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		UserType:       u.UserType,
		OrganizationID: orgID,
		Roles:          refs,
		IsActive:       u.IsActive,
		LastLogin:      u.LastLogin,
		Version:        u.Version,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// UserPatch is the platform-side write projection of a user. Nil fields are
// left untouched.
type UserPatch struct {
	FirstName      *string   `json:"firstName,omitempty"`
	LastName       *string   `json:"lastName,omitempty"`
	UserType       *UserType `json:"userType,omitempty"`
	OrganizationID *string   `json:"organizationId,omitempty"`
	RoleIDs        []string  `json:"roles,omitempty"`
	IsActive       *bool     `json:"isActive,omitempty"`
}

// Apply writes the patch onto u and reports whether any field carried by the
// claims snapshot (roles, tenant, type, active flag) changed.
func (p UserPatch) Apply(u *User) (claimsChanged bool) {
	if p.FirstName != nil {
		u.FirstName = strings.TrimSpace(*p.FirstName)
	}
	if p.LastName != nil {
		u.LastName = strings.TrimSpace(*p.LastName)
	}
	if p.UserType != nil && *p.UserType != u.UserType {
		u.UserType = *p.UserType
		claimsChanged = true
	}
	if p.OrganizationID != nil {
		orgID := strings.TrimSpace(*p.OrganizationID)
		if orgID != u.OrganizationID {
			u.OrganizationID = orgID
			claimsChanged = true
		}
	}
	if p.RoleIDs != nil && !sameSet(p.RoleIDs, u.RoleIDs) {
		u.RoleIDs = dedupe(p.RoleIDs)
		claimsChanged = true
	}
	if p.IsActive != nil && *p.IsActive != u.IsActive {
		u.IsActive = *p.IsActive
		claimsChanged = true
	}
	return claimsChanged
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func sameSet(a, b []string) bool {
	a, b = dedupe(a), dedupe(b)
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}

// Claims is the claims snapshot: identity, tenant and role data resolved at
// login, refresh or registration time. It is embedded in access tokens and
// mirrored in the session cache, and is only refreshed by those flows or by
// explicit session invalidation. Authorization decisions trust it for the
// lifetime of the access token.
type Claims struct {
	UserID         string   `json:"userId"`
	Email          string   `json:"email"`
	FirstName      string   `json:"firstName,omitempty"`
	LastName       string   `json:"lastName,omitempty"`
	UserType       UserType `json:"userType"`
	OrganizationID string   `json:"organizationId,omitempty"`
	RoleNames      []string `json:"roleNames"`
	RoleIDs        []string `json:"roleIds"`
	IsActive       bool     `json:"isActive"`
}

// NewClaims builds the snapshot for u from its resolved roles. Inactive roles
// are left out.
func NewClaims(u *User, roles []*Role) Claims {
	c := Claims{
		UserID:         u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		UserType:       u.UserType,
		OrganizationID: u.OrganizationID,
		RoleNames:      make([]string, 0, len(roles)),
		RoleIDs:        make([]string, 0, len(roles)),
		IsActive:       u.IsActive,
	}
	for _, r := range roles {
		if !r.IsActive {
			continue
		}
		c.RoleNames = append(c.RoleNames, r.Name)
		c.RoleIDs = append(c.RoleIDs, r.ID)
	}
	return c
}

// IsPlatformOwner reports whether the caller is exempt from tenant scoping.
func (c Claims) IsPlatformOwner() bool {
	return c.UserType == UserTypePlatformOwner
}

// HasAnyRole reports whether the caller holds any of the named roles.
func (c Claims) HasAnyRole(names ...string) bool {
	for _, held := range c.RoleNames {
		for _, n := range names {
			if held == n {
				return true
			}
		}
	}
	return false
}
