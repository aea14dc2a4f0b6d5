package orgs

import (
	"github.com/platinummonkey/bulwark/pkg/identity"
)

// CreateRequest is the body of an organization creation.
type CreateRequest struct {
	Name         string                    `json:"name"`
	Type         identity.OrganizationType `json:"type"`
	Code         string                    `json:"code"`
	Description  string                    `json:"description"`
	ContactEmail string                    `json:"contactEmail"`
	ContactPhone string                    `json:"contactPhone"`
	Address      string                    `json:"address"`
	IsActive     *bool                     `json:"isActive"`
}

// Organization builds the entity described by the request.
func (r CreateRequest) Organization() *identity.Organization {
	o := &identity.Organization{
		Name:         r.Name,
		Type:         r.Type,
		Code:         r.Code,
		Description:  r.Description,
		ContactEmail: r.ContactEmail,
		ContactPhone: r.ContactPhone,
		Address:      r.Address,
		IsActive:     true,
	}
	if r.IsActive != nil {
		o.IsActive = *r.IsActive
	}
	o.Normalize()
	return o
}

// UpdateRequest is the body of an organization update. Nil fields are left
// untouched.
type UpdateRequest struct {
	Name         *string                    `json:"name"`
	Type         *identity.OrganizationType `json:"type"`
	Code         *string                    `json:"code"`
	Description  *string                    `json:"description"`
	ContactEmail *string                    `json:"contactEmail"`
	ContactPhone *string                    `json:"contactPhone"`
	Address      *string                    `json:"address"`
	IsActive     *bool                      `json:"isActive"`

	// Version is the version the caller last read; 0 skips the check.
	Version int `json:"-"`
}

// apply writes the request onto o and reports whether the organization's
// type or code changed and whether its active flag changed.
func (r UpdateRequest) apply(o *identity.Organization) (identityChanged, statusChanged bool) {
	if r.Type != nil && *r.Type != o.Type {
		o.Type = *r.Type
		identityChanged = true
	}
	if r.Code != nil && identity.NormalizeCode(*r.Code) != o.Code {
		o.Code = *r.Code
		identityChanged = true
	}
	if r.Name != nil {
		o.Name = *r.Name
	}
	if r.Description != nil {
		o.Description = *r.Description
	}
	if r.ContactEmail != nil {
		o.ContactEmail = *r.ContactEmail
	}
	if r.ContactPhone != nil {
		o.ContactPhone = *r.ContactPhone
	}
	if r.Address != nil {
		o.Address = *r.Address
	}
	if r.IsActive != nil && *r.IsActive != o.IsActive {
		o.IsActive = *r.IsActive
		statusChanged = true
	}
	o.Normalize()
	return identityChanged, statusChanged
}
