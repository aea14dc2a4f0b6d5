package onboarding

import (
	"strings"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/orgs"
)

// Request is the body of an onboarding call.
type Request struct {
	Organization orgs.CreateRequest `json:"organization"`
	AdminUser    AdminUser          `json:"adminUser"`
}

// AdminUser describes the tenant's first administrator.
type AdminUser struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// Validate checks the request before anything is written.
func (r Request) Validate() error {
	if err := r.Organization.Organization().Validate(); err != nil {
		return err
	}
	a := r.AdminUser
	if identity.NormalizeEmail(a.Email) == "" {
		return apperr.Validation("adminUser.email", "Admin email is required")
	}
	if err := identity.ValidatePassword(a.Password); err != nil {
		return err
	}
	if strings.TrimSpace(a.FirstName) == "" || strings.TrimSpace(a.LastName) == "" {
		return apperr.Validation("adminUser", "Admin first and last name are required")
	}
	return nil
}

// Result is what a successful onboarding returns.
type Result struct {
	Organization *identity.Organization `json:"organization"`
	Roles        []*identity.Role       `json:"roles"`
	AdminUser    identity.UserView      `json:"adminUser"`
}
