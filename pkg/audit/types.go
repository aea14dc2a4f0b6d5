package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventAuthRegister     EventType = "auth.register"
	EventAuthLogin        EventType = "auth.login"
	EventAuthLoginFailed  EventType = "auth.login_failed"
	EventAuthLogout       EventType = "auth.logout"
	EventAuthRefresh      EventType = "auth.refresh"
	EventAuthRefreshFail  EventType = "auth.refresh_failed"
	EventAuthTokenInvalid EventType = "auth.token_invalid"

	// Authorization events
	EventAuthzAccessDenied EventType = "authz.access_denied"

	// Admin events
	EventAdminOrgCreate     EventType = "admin.org_create"
	EventAdminOrgUpdate     EventType = "admin.org_update"
	EventAdminOrgDelete     EventType = "admin.org_delete"
	EventAdminOrgOnboard    EventType = "admin.org_onboard"
	EventAdminRoleCreate    EventType = "admin.role_create"
	EventAdminRoleUpdate    EventType = "admin.role_update"
	EventAdminRoleDelete    EventType = "admin.role_delete"
	EventAdminUserCreate    EventType = "admin.user_create"
	EventAdminUserUpdate    EventType = "admin.user_update"
	EventAdminUserDelete    EventType = "admin.user_delete"
	EventAdminRolesAssigned EventType = "admin.user_roles_assigned"
)

// Status represents the outcome of an event
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusDenied  Status = "denied"
)

// ResourceType represents the type of resource acted on
type ResourceType string

const (
	ResourceUser         ResourceType = "user"
	ResourceRole         ResourceType = "role"
	ResourceOrganization ResourceType = "organization"
	ResourceSession      ResourceType = "session"
)

// Event is a single audit entry.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"eventType"`
	Status    Status    `json:"status"`

	ActorID        string `json:"actorId,omitempty"`
	ActorEmail     string `json:"actorEmail,omitempty"`
	OrganizationID string `json:"organizationId,omitempty"`

	ResourceType ResourceType `json:"resourceType,omitempty"`
	ResourceID   string       `json:"resourceId,omitempty"`

	IPAddress string `json:"ipAddress,omitempty"`
	RequestID string `json:"requestId,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}
