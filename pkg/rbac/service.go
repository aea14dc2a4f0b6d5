package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/audit"
	"github.com/platinummonkey/bulwark/pkg/authz"
	"github.com/platinummonkey/bulwark/pkg/cache"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/observability"
	"github.com/platinummonkey/bulwark/pkg/storage"
)

// SessionInvalidator drops cached claims snapshots. *tokens.Issuer
// implements it.
type SessionInvalidator interface {
	InvalidateSession(ctx context.Context, userID string) error
}

// Service implements the role use cases.
type Service struct {
	store    storage.Store
	gate     *authz.Gate
	scoper   *authz.Scoper
	lists    *cache.ListCache
	sessions SessionInvalidator
	logger   *observability.Logger
}

// NewService creates a role service.
func NewService(store storage.Store, gate *authz.Gate, lists *cache.ListCache, sessions SessionInvalidator, logger *observability.Logger) *Service {
	return &Service{
		store:    store,
		gate:     gate,
		scoper:   authz.NewScoper(gate),
		lists:    lists,
		sessions: sessions,
		logger:   logger,
	}
}

// List returns the roles visible to the caller.
func (s *Service) List(ctx context.Context, claims identity.Claims, q authz.ListQuery) (*storage.ListResult[*identity.Role], error) {
	filter := s.scoper.Roles(claims, q)
	page := q.PageOf()
	return cache.Load(ctx, s.lists, cache.KindRoles, filter, page.Page, page.Limit,
		func(ctx context.Context) (*storage.ListResult[*identity.Role], error) {
			return s.store.ListRoles(ctx, filter, page)
		})
}

// Get returns a single role.
func (s *Service) Get(ctx context.Context, claims identity.Claims, id string) (*identity.Role, error) {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, claims, authz.ActionRead, authz.RoleResource(role.Scope, role.OrganizationID)); err != nil {
		return nil, err
	}
	return role, nil
}

// Create creates a role. Scope defaults to organization, and a customer's
// organization role defaults to the customer's tenant.
func (s *Service) Create(ctx context.Context, claims identity.Claims, req CreateRoleRequest) (*identity.Role, error) {
	role := &identity.Role{
		Name:           req.Name,
		Scope:          req.Scope,
		OrganizationID: req.OrganizationID,
		Description:    req.Description,
		Permissions:    req.Permissions,
		IsActive:       true,
	}
	if req.IsActive != nil {
		role.IsActive = *req.IsActive
	}
	role.Normalize()
	if role.Scope == "" {
		role.Scope = identity.ScopeOrganization
	}
	if role.Scope == identity.ScopeOrganization && role.OrganizationID == "" && !claims.IsPlatformOwner() {
		role.OrganizationID = claims.OrganizationID
	}

	if err := s.gate.Check(ctx, claims, authz.ActionCreate, authz.RoleResource(role.Scope, role.OrganizationID)); err != nil {
		return nil, err
	}
	if err := role.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateRole(ctx, role); err != nil {
		return nil, err
	}

	s.invalidateLists(ctx, cache.KindRoles)
	s.record(ctx, claims, audit.EventAdminRoleCreate, role)
	return role, nil
}

// Update changes a role's name, description, permissions or active flag.
func (s *Service) Update(ctx context.Context, claims identity.Claims, id string, req UpdateRoleRequest) (*identity.Role, error) {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.touchesScope() {
		return nil, apperr.Validation("scope", "Role scope and organization cannot be changed")
	}
	if err := s.gate.Check(ctx, claims, authz.ActionUpdate, authz.RoleResource(role.Scope, role.OrganizationID)); err != nil {
		return nil, err
	}
	if req.Version != 0 && req.Version != role.Version {
		return nil, apperr.Conflict("Role was modified concurrently")
	}

	snapshotChanged := false
	if req.Name != nil && *req.Name != role.Name {
		role.Name = *req.Name
		snapshotChanged = true
	}
	if req.Description != nil {
		role.Description = *req.Description
	}
	if req.Permissions != nil {
		role.Permissions = req.Permissions
	}
	if req.IsActive != nil && *req.IsActive != role.IsActive {
		role.IsActive = *req.IsActive
		snapshotChanged = true
	}
	role.Normalize()
	if err := role.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.UpdateRole(ctx, role); err != nil {
		return nil, err
	}

	if snapshotChanged {
		s.invalidateHolders(ctx, role.ID)
	}
	s.invalidateLists(ctx, cache.KindRoles, cache.KindUsers)
	s.record(ctx, claims, audit.EventAdminRoleUpdate, role)
	return role, nil
}

// Delete deactivates a role and drops the sessions of its holders.
func (s *Service) Delete(ctx context.Context, claims identity.Claims, id string) (*identity.Role, error) {
	role, err := s.store.GetRole(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, claims, authz.ActionDelete, authz.RoleResource(role.Scope, role.OrganizationID)); err != nil {
		return nil, err
	}

	role.IsActive = false
	if err := s.store.UpdateRole(ctx, role); err != nil {
		return nil, err
	}

	s.invalidateHolders(ctx, role.ID)
	s.invalidateLists(ctx, cache.KindRoles, cache.KindUsers)
	s.record(ctx, claims, audit.EventAdminRoleDelete, role)
	return role, nil
}

// SeedPlatformRoles creates the missing platform roles. Existing roles are
// left untouched, so it is safe to run repeatedly.
func SeedPlatformRoles(ctx context.Context, store storage.RoleStore) ([]*identity.Role, error) {
	roles := make([]*identity.Role, 0, len(PlatformRoles()))
	for _, def := range PlatformRoles() {
		existing, err := store.FindRole(ctx, def.Name, identity.ScopePlatform, "")
		if err == nil {
			roles = append(roles, existing)
			continue
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("failed to look up role %s: %w", def.Name, err)
		}

		role := def.Role(identity.ScopePlatform, "")
		if err := store.CreateRole(ctx, role); err != nil {
			return nil, fmt.Errorf("failed to create role %s: %w", def.Name, err)
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// invalidateHolders drops the session snapshot of every user holding the
// role. Failures are logged; the role change itself already succeeded.
func (s *Service) invalidateHolders(ctx context.Context, roleID string) {
	userIDs, err := s.store.ListUserIDsByRole(ctx, roleID)
	if err != nil {
		s.logger.WithError(err).WithField("role_id", roleID).Error("Failed to list role holders for session invalidation")
		return
	}
	for _, userID := range userIDs {
		if err := s.sessions.InvalidateSession(ctx, userID); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate session")
		}
	}
}

// invalidateLists drops cached listings. User listings embed role documents,
// so role changes other than creation drop them too.
func (s *Service) invalidateLists(ctx context.Context, kinds ...string) {
	if err := s.lists.Invalidate(ctx, kinds...); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate list cache")
	}
}

func (s *Service) record(ctx context.Context, claims identity.Claims, event audit.EventType, role *identity.Role) {
	if err := audit.FromContext(ctx).Log(ctx, &audit.Event{
		Type:           event,
		Status:         audit.StatusSuccess,
		ActorID:        claims.UserID,
		ActorEmail:     claims.Email,
		OrganizationID: role.OrganizationID,
		ResourceType:   audit.ResourceRole,
		ResourceID:     role.ID,
	}); err != nil {
		s.logger.WithError(err).Warn("Failed to write audit event")
	}
}
