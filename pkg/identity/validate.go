package identity

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/platinummonkey/bulwark/pkg/apperr"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

var orgCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{2,32}$`)

// reservedPlatformRoles may only exist with platform scope.
var reservedPlatformRoles = map[string]bool{
	RoleSuperAdmin: true,
	RoleAdmin:      true,
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeCode uppercases and trims an organization code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidID reports whether id is a well formed entity id.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// NewID returns a fresh entity id.
func NewID() string {
	return uuid.NewString()
}

// ValidatePassword checks the password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return apperr.Validation("password", "Password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// Normalize canonicalizes user fields in place.
func (u *User) Normalize() {
	u.Email = NormalizeEmail(u.Email)
	u.FirstName = strings.TrimSpace(u.FirstName)
	u.LastName = strings.TrimSpace(u.LastName)
	u.OrganizationID = strings.TrimSpace(u.OrganizationID)
	if u.UserType == "" {
		u.UserType = UserTypeCustomer
	}
}

// Validate checks the user invariants.
func (u *User) Validate() error {
	if err := u.ValidateProfile(); err != nil {
		return err
	}
	if len(u.RoleIDs) == 0 {
		return apperr.Validation("roles", "At least one role is required")
	}
	for _, id := range u.RoleIDs {
		if !IsValidID(id) {
			return apperr.Validation("roles", "Invalid role ID")
		}
	}
	return nil
}

// ValidateProfile checks every user invariant except role membership, for
// callers that resolve roles afterwards.
func (u *User) ValidateProfile() error {
	if u.Email == "" {
		return apperr.Validation("email", "Email is required")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return apperr.Validation("email", "Invalid email address")
	}
	if u.FirstName == "" {
		return apperr.Validation("firstName", "First name is required")
	}
	if u.LastName == "" {
		return apperr.Validation("lastName", "Last name is required")
	}
	if !u.UserType.Valid() {
		return apperr.Validation("userType", "Invalid user type")
	}
	if u.UserType == UserTypeCustomer && u.OrganizationID == "" {
		return apperr.Validation("organizationId", "Organization ID is required for customer users")
	}
	if u.OrganizationID != "" && !IsValidID(u.OrganizationID) {
		return apperr.Validation("organizationId", "Invalid organization ID")
	}
	return nil
}

// Normalize canonicalizes role fields in place.
func (r *Role) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	r.OrganizationID = strings.TrimSpace(r.OrganizationID)
	if r.Permissions == nil {
		r.Permissions = []string{}
	}
}

// Validate checks the role invariants.
func (r *Role) Validate() error {
	if r.Name == "" {
		return apperr.Validation("name", "Role name is required")
	}
	if !r.Scope.Valid() {
		return apperr.Validation("scope", "Scope must be platform or organization")
	}
	switch r.Scope {
	case ScopePlatform:
		if r.OrganizationID != "" {
			return apperr.Validation("organizationId", "Platform roles cannot belong to an organization")
		}
	case ScopeOrganization:
		if r.OrganizationID == "" {
			return apperr.Validation("organizationId", "Organization ID is required for organization roles")
		}
		if !IsValidID(r.OrganizationID) {
			return apperr.Validation("organizationId", "Invalid organization ID")
		}
		if reservedPlatformRoles[r.Name] {
			return apperr.Validation("name", "Role name %q is reserved for platform scope", r.Name)
		}
	}
	for _, p := range r.Permissions {
		if strings.TrimSpace(p) == "" {
			return apperr.Validation("permissions", "Permissions cannot be empty strings")
		}
	}
	return nil
}

// Normalize canonicalizes organization fields in place.
func (o *Organization) Normalize() {
	o.Name = strings.TrimSpace(o.Name)
	o.Code = NormalizeCode(o.Code)
	o.ContactEmail = NormalizeEmail(o.ContactEmail)
	if o.Type == "" {
		o.Type = OrgTypeCustomer
	}
}

// Validate checks the organization invariants.
func (o *Organization) Validate() error {
	if o.Name == "" {
		return apperr.Validation("name", "Organization name is required")
	}
	if !o.Type.Valid() {
		return apperr.Validation("type", "Invalid organization type")
	}
	if o.Code == "" {
		return apperr.Validation("code", "Organization code is required")
	}
	if !orgCodePattern.MatchString(o.Code) {
		return apperr.Validation("code", "Organization code must be 2-32 characters of A-Z, 0-9, _ or -")
	}
	if o.ContactEmail != "" {
		if _, err := mail.ParseAddress(o.ContactEmail); err != nil {
			return apperr.Validation("contactEmail", "Invalid contact email")
		}
	}
	return nil
}
