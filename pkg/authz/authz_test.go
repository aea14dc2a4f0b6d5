package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/identity"
)

const (
	orgA = "aaaaaaaa-0000-4000-8000-000000000001"
	orgB = "bbbbbbbb-0000-4000-8000-000000000002"
)

func owner(roles ...string) identity.Claims {
	return identity.Claims{UserID: "po", UserType: identity.UserTypePlatformOwner, RoleNames: roles}
}

func customer(org string, roles ...string) identity.Claims {
	return identity.Claims{UserID: "cu", UserType: identity.UserTypeCustomer, OrganizationID: org, RoleNames: roles}
}

func TestGate_Authorize(t *testing.T) {
	gate := NewGate()
	orgRoleA := RoleResource(identity.ScopeOrganization, orgA)
	orgRoleB := RoleResource(identity.ScopeOrganization, orgB)
	platformRole := RoleResource(identity.ScopePlatform, "")

	tests := []struct {
		name    string
		caller  identity.Claims
		action  Action
		res     Resource
		allowed bool
	}{
		{"owner reads platform role", owner("viewer"), ActionRead, platformRole, true},
		{"owner deletes org of any tenant", owner("viewer"), ActionDelete, Resource{Kind: KindOrganization, Scope: identity.ScopeOrganization, OrganizationID: orgB}, true},
		{"customer reads own org role", customer(orgA, "viewer"), ActionRead, orgRoleA, true},
		{"customer reads other tenant role", customer(orgA, "org_admin"), ActionRead, orgRoleB, false},
		{"customer reads platform role", customer(orgA, "super_admin"), ActionRead, platformRole, false},
		{"customer viewer cannot mutate role", customer(orgA, "viewer"), ActionUpdate, orgRoleA, false},
		{"customer org_admin mutates role", customer(orgA, "org_admin"), ActionDelete, orgRoleA, true},
		{"bypass customer reads other tenant", customer(orgA, "admin"), ActionRead, orgRoleB, true},
		{"org_admin cannot delete own org", customer(orgA, "org_admin"), ActionDelete, Resource{Kind: KindOrganization, Scope: identity.ScopeOrganization, OrganizationID: orgA}, false},
		{"super_admin customer deletes own org", customer(orgA, "super_admin"), ActionDelete, Resource{Kind: KindOrganization, Scope: identity.ScopeOrganization, OrganizationID: orgA}, true},
		{"org_admin cannot change org code", customer(orgA, "org_admin"), ActionChangeIdentity, Resource{Kind: KindOrganization, Scope: identity.ScopeOrganization, OrganizationID: orgA}, false},
		{"customer cannot see platform owner", customer(orgA, "admin"), ActionRead, UserResource(identity.UserTypePlatformOwner, ""), false},
		{"customer without org denied", customer("", "org_admin"), ActionRead, orgRoleA, false},
		{"unknown user type denied", identity.Claims{UserType: "robot", OrganizationID: orgA}, ActionRead, orgRoleA, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Authorize(tt.caller, tt.action, tt.res)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrForbidden)
		})
	}
}

func TestGate_BypassDisabled(t *testing.T) {
	gate := NewGate(WithCustomerAdminBypass(false))
	err := gate.Authorize(customer(orgA, "super_admin"), ActionRead, RoleResource(identity.ScopeOrganization, orgB))
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.False(t, gate.HasBypass(customer(orgA, "admin")))
}

type recordingObserver struct {
	actions []Action
}

func (o *recordingObserver) Denied(_ context.Context, _ identity.Claims, action Action, _ Resource, _ error) {
	o.actions = append(o.actions, action)
}

func TestGate_CheckReportsDenials(t *testing.T) {
	obs := &recordingObserver{}
	gate := NewGate(WithObserver(obs))
	ctx := context.Background()

	assert.NoError(t, gate.Check(ctx, customer(orgA, "viewer"), ActionRead, RoleResource(identity.ScopeOrganization, orgA)))
	assert.ErrorIs(t, gate.Check(ctx, customer(orgA, "viewer"), ActionDelete, RoleResource(identity.ScopeOrganization, orgA)), apperr.ErrForbidden)

	assert.Equal(t, []Action{ActionDelete}, obs.actions)
}

func TestGate_CheckStrict(t *testing.T) {
	obs := &recordingObserver{}
	gate := NewGate(WithObserver(obs))
	ctx := context.Background()
	org := Resource{Kind: KindOrganization, Scope: identity.ScopeOrganization, OrganizationID: orgA}

	assert.NoError(t, gate.Check(ctx, owner("admin"), ActionChangeIdentity, org), "plain check lets owners through")
	assert.ErrorIs(t, gate.CheckStrict(ctx, owner("admin"), ActionChangeIdentity, org), apperr.ErrForbidden)
	assert.ErrorIs(t, gate.CheckStrict(ctx, owner("org_admin"), ActionChangeStatus, org), apperr.ErrForbidden)
	assert.ErrorIs(t, gate.CheckStrict(ctx, customer(orgA, "org_admin"), ActionDelete, org), apperr.ErrForbidden)
	assert.NoError(t, gate.CheckStrict(ctx, owner("super_admin"), ActionChangeStatus, org))
	assert.NoError(t, gate.CheckStrict(ctx, customer(orgA, "super_admin"), ActionChangeIdentity, org))
	assert.NoError(t, gate.CheckStrict(ctx, customer(orgA, "viewer"), ActionRead, org))

	assert.Equal(t, []Action{ActionChangeIdentity, ActionChangeStatus, ActionDelete}, obs.actions)
}

func TestRequiredRoles(t *testing.T) {
	assert.Nil(t, RequiredRoles(KindRole, ActionRead))
	assert.Equal(t, []string{"super_admin"}, RequiredRoles(KindOrganization, ActionDelete))
	assert.Equal(t, []string{"super_admin"}, RequiredRoles(KindOrganization, ActionChangeStatus))
	assert.ElementsMatch(t, []string{"admin", "super_admin"}, RequiredRoles(KindOrganization, ActionOnboard))
	assert.True(t, ActionAssignRoles.Mutating())
	assert.False(t, ActionList.Mutating())
}

func TestScoper_Organizations(t *testing.T) {
	s := NewScoper(NewGate())
	active := true

	f := s.Organizations(customer(orgA, "viewer"), ListQuery{OrganizationID: orgB, IsActive: &active})
	assert.Equal(t, orgA, f.ID, "non-bypass customer is pinned to own tenant")
	assert.Equal(t, &active, f.IsActive)

	f = s.Organizations(customer(orgA, "admin"), ListQuery{OrganizationID: orgB})
	assert.Equal(t, orgB, f.ID)

	f = s.Organizations(owner(), ListQuery{Type: identity.OrgTypeLogistics})
	assert.Empty(t, f.ID)
	assert.Equal(t, identity.OrgTypeLogistics, f.Type)
}

func TestScoper_Roles(t *testing.T) {
	s := NewScoper(NewGate())

	f := s.Roles(customer(orgA, "org_admin"), ListQuery{Scope: identity.ScopePlatform})
	assert.Equal(t, identity.ScopeOrganization, f.Scope)
	assert.Equal(t, orgA, f.OrganizationID)

	f = s.Roles(customer(orgA, "super_admin"), ListQuery{})
	assert.Equal(t, identity.ScopeOrganization, f.Scope)
	assert.Empty(t, f.OrganizationID)

	f = s.Roles(owner(), ListQuery{Scope: identity.ScopePlatform})
	assert.Equal(t, identity.ScopePlatform, f.Scope)
	assert.Empty(t, f.OrganizationID)
}

func TestScoper_Users(t *testing.T) {
	s := NewScoper(NewGate())

	f := s.Users(customer(orgA, "viewer"), ListQuery{UserType: identity.UserTypePlatformOwner}, []string{"r1"})
	assert.Equal(t, orgA, f.OrganizationID)
	assert.Equal(t, identity.UserTypeCustomer, f.UserType)
	assert.Equal(t, []string{"r1"}, f.RoleIDs)

	f = s.Users(owner(), ListQuery{OrganizationID: orgB}, nil)
	assert.Equal(t, orgB, f.OrganizationID)
	assert.Empty(t, f.UserType)
}

func TestListQuery_PageOf(t *testing.T) {
	p := ListQuery{Page: 0, Limit: 0}.PageOf()
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.Limit)
}
