package users

import (
	"context"
	"fmt"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/audit"
	"github.com/platinummonkey/bulwark/pkg/auth"
	"github.com/platinummonkey/bulwark/pkg/authz"
	"github.com/platinummonkey/bulwark/pkg/cache"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/observability"
	"github.com/platinummonkey/bulwark/pkg/storage"
)

// Registrar creates users through the auth service. *auth.Service satisfies
// it in-process; the platform binary uses an HTTP client.
type Registrar interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.Session, error)
}

// SessionInvalidator drops cached claims snapshots.
type SessionInvalidator interface {
	InvalidateSession(ctx context.Context, userID string) error
}

// Service implements the user administration use cases.
type Service struct {
	store     storage.Store
	gate      *authz.Gate
	scoper    *authz.Scoper
	lists     *cache.ListCache
	sessions  SessionInvalidator
	registrar Registrar
	logger    *observability.Logger
}

// NewService creates a user service.
func NewService(store storage.Store, gate *authz.Gate, lists *cache.ListCache, sessions SessionInvalidator, registrar Registrar, logger *observability.Logger) *Service {
	return &Service{
		store:     store,
		gate:      gate,
		scoper:    authz.NewScoper(gate),
		lists:     lists,
		sessions:  sessions,
		registrar: registrar,
		logger:    logger,
	}
}

// List returns the users visible to the caller with their roles resolved.
func (s *Service) List(ctx context.Context, claims identity.Claims, q authz.ListQuery) (*storage.ListResult[identity.UserView], error) {
	page := q.PageOf()
	roleIDs, err := s.roleFilter(ctx, claims, q)
	if err != nil {
		return nil, err
	}
	if roleIDs != nil && len(roleIDs) == 0 {
		return &storage.ListResult[identity.UserView]{Items: []identity.UserView{}, Page: page}, nil
	}

	filter := s.scoper.Users(claims, q, roleIDs)
	return cache.Load(ctx, s.lists, cache.KindUsers, filter, page.Page, page.Limit,
		func(ctx context.Context) (*storage.ListResult[identity.UserView], error) {
			res, err := s.store.ListUsers(ctx, filter, page)
			if err != nil {
				return nil, err
			}
			views, err := s.views(ctx, res.Items)
			if err != nil {
				return nil, err
			}
			return &storage.ListResult[identity.UserView]{Items: views, Total: res.Total, Page: res.Page}, nil
		})
}

// roleFilter resolves the roleId and roleName query parameters into a set of
// role ids. nil means no constraint, an empty slice means nothing can match.
func (s *Service) roleFilter(ctx context.Context, claims identity.Claims, q authz.ListQuery) ([]string, error) {
	if q.RoleID == "" && q.RoleName == "" {
		return nil, nil
	}

	var byName []string
	if q.RoleName != "" {
		filter := s.scoper.Roles(claims, authz.ListQuery{OrganizationID: q.OrganizationID, Name: q.RoleName})
		res, err := s.store.ListRoles(ctx, filter, storage.NewPage(1, storage.MaxLimit))
		if err != nil {
			return nil, fmt.Errorf("failed to resolve role name: %w", err)
		}
		byName = make([]string, 0, len(res.Items))
		for _, r := range res.Items {
			byName = append(byName, r.ID)
		}
		if q.RoleID == "" {
			return byName, nil
		}
	}

	if !identity.IsValidID(q.RoleID) {
		return []string{}, nil
	}
	if q.RoleName == "" {
		return []string{q.RoleID}, nil
	}
	for _, id := range byName {
		if id == q.RoleID {
			return []string{id}, nil
		}
	}
	return []string{}, nil
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, claims identity.Claims, id string) (*identity.UserView, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, claims, authz.ActionRead, authz.UserResource(u.UserType, u.OrganizationID)); err != nil {
		return nil, err
	}
	return s.view(ctx, u)
}

// Create registers a user on behalf of the caller. A customer's new user
// defaults to the caller's organization.
func (s *Service) Create(ctx context.Context, claims identity.Claims, req auth.RegisterRequest) (*identity.UserView, error) {
	if req.UserType == "" {
		req.UserType = identity.UserTypeCustomer
	}
	if req.UserType == identity.UserTypeCustomer && req.OrganizationID == "" && !claims.IsPlatformOwner() {
		req.OrganizationID = claims.OrganizationID
	}
	if err := s.gate.Check(ctx, claims, authz.ActionCreate, authz.UserResource(req.UserType, req.OrganizationID)); err != nil {
		return nil, err
	}
	if len(req.RoleIDs) > 0 {
		if _, err := s.assignable(ctx, claims, req.RoleIDs); err != nil {
			return nil, err
		}
	}

	req.Actor = &claims
	session, err := s.registrar.Register(ctx, req)
	if err != nil {
		return nil, err
	}

	view := session.User
	s.invalidateLists(ctx)
	s.record(ctx, claims, audit.EventAdminUserCreate, view.ID, req.OrganizationID, nil)
	return &view, nil
}

// Update applies patch to a user. version is the version the caller last
// read; 0 skips the check.
func (s *Service) Update(ctx context.Context, claims identity.Claims, id string, patch identity.UserPatch, version int) (*identity.UserView, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, claims, authz.ActionUpdate, authz.UserResource(u.UserType, u.OrganizationID)); err != nil {
		return nil, err
	}
	if version != 0 && version != u.Version {
		return nil, apperr.Conflict("User was modified concurrently")
	}
	if patch.UserType != nil && *patch.UserType == identity.UserTypePlatformOwner &&
		u.UserType != identity.UserTypePlatformOwner && !claims.IsPlatformOwner() {
		return nil, apperr.Forbidden("Only platform owners can grant platform owner access")
	}

	var requested []*identity.Role
	if patch.RoleIDs != nil {
		if requested, err = s.assignable(ctx, claims, patch.RoleIDs); err != nil {
			return nil, err
		}
	}

	previousOrg, previousType := u.OrganizationID, u.UserType
	changed := patch.Apply(u)
	u.Normalize()
	moved := u.OrganizationID != previousOrg || u.UserType != previousType
	if moved {
		if err := s.gate.Check(ctx, claims, authz.ActionUpdate, authz.UserResource(u.UserType, u.OrganizationID)); err != nil {
			return nil, err
		}
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}

	if patch.RoleIDs != nil || moved {
		roles := requested
		if roles == nil {
			if roles, err = s.store.GetRoles(ctx, u.RoleIDs); err != nil {
				return nil, fmt.Errorf("failed to load roles: %w", err)
			}
		}
		if err := compatible(u, roles); err != nil {
			return nil, err
		}
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	if changed {
		s.invalidateSession(ctx, u.ID)
	}

	var metadata map[string]interface{}
	if moved {
		metadata = map[string]interface{}{
			"previous_organization": previousOrg,
			"previous_user_type":    string(previousType),
		}
	}
	s.invalidateLists(ctx)
	s.record(ctx, claims, audit.EventAdminUserUpdate, u.ID, u.OrganizationID, metadata)
	return s.view(ctx, u)
}

// AssignRoles replaces the roles a user holds.
func (s *Service) AssignRoles(ctx context.Context, claims identity.Claims, id string, roleIDs []string, version int) (*identity.UserView, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, claims, authz.ActionAssignRoles, authz.UserResource(u.UserType, u.OrganizationID)); err != nil {
		return nil, err
	}
	if version != 0 && version != u.Version {
		return nil, apperr.Conflict("User was modified concurrently")
	}
	if len(roleIDs) == 0 {
		return nil, apperr.Validation("roles", "At least one role is required")
	}

	roles, err := s.assignable(ctx, claims, roleIDs)
	if err != nil {
		return nil, err
	}
	if err := compatible(u, roles); err != nil {
		return nil, err
	}

	if !(identity.UserPatch{RoleIDs: roleIDs}).Apply(u) {
		return s.view(ctx, u)
	}
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	s.invalidateSession(ctx, u.ID)
	s.invalidateLists(ctx)
	s.record(ctx, claims, audit.EventAdminRolesAssigned, u.ID, u.OrganizationID, map[string]interface{}{
		"role_ids": u.RoleIDs,
	})
	v := identity.NewUserView(u, roles)
	return &v, nil
}

// Delete deactivates a user and drops their session.
func (s *Service) Delete(ctx context.Context, claims identity.Claims, id string) (*identity.UserView, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, claims, authz.ActionDelete, authz.UserResource(u.UserType, u.OrganizationID)); err != nil {
		return nil, err
	}

	u.IsActive = false
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	s.invalidateSession(ctx, u.ID)
	s.invalidateLists(ctx)
	s.record(ctx, claims, audit.EventAdminUserDelete, u.ID, u.OrganizationID, nil)
	return s.view(ctx, u)
}

// Bulk is reserved for batch user operations.
func (s *Service) Bulk(context.Context, identity.Claims) error {
	return apperr.NotImplemented("Bulk operations are not implemented")
}

// assignable loads the requested roles and checks the caller may hand them
// out.
func (s *Service) assignable(ctx context.Context, claims identity.Claims, roleIDs []string) ([]*identity.Role, error) {
	ids := make([]string, 0, len(roleIDs))
	seen := make(map[string]bool, len(roleIDs))
	for _, id := range roleIDs {
		if !identity.IsValidID(id) {
			return nil, apperr.Validation("roles", "Invalid role ID")
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	roles, err := s.store.GetRoles(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	if len(roles) != len(ids) {
		return nil, apperr.Validation("roles", "One or more roles were not found")
	}
	for _, r := range roles {
		if err := s.gate.Check(ctx, claims, authz.ActionAssignRoles, authz.RoleResource(r.Scope, r.OrganizationID)); err != nil {
			return nil, err
		}
		if !r.IsActive {
			return nil, apperr.Validation("roles", "Role %q is not active", r.Name)
		}
	}
	return roles, nil
}

// compatible checks every organization role belongs to the user's tenant.
func compatible(u *identity.User, roles []*identity.Role) error {
	for _, r := range roles {
		if r.Scope == identity.ScopeOrganization && r.OrganizationID != u.OrganizationID {
			return apperr.Validation("roles", "Role %q does not belong to the user's organization", r.Name)
		}
	}
	return nil
}

func (s *Service) view(ctx context.Context, u *identity.User) (*identity.UserView, error) {
	roles, err := s.store.GetRoles(ctx, u.RoleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	v := identity.NewUserView(u, roles)
	return &v, nil
}

// views projects a page of users with a single role lookup.
func (s *Service) views(ctx context.Context, users []*identity.User) ([]identity.UserView, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, u := range users {
		for _, id := range u.RoleIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}

	var roles []*identity.Role
	if len(ids) > 0 {
		var err error
		if roles, err = s.store.GetRoles(ctx, ids); err != nil {
			return nil, fmt.Errorf("failed to load roles: %w", err)
		}
	}

	out := make([]identity.UserView, 0, len(users))
	for _, u := range users {
		out = append(out, identity.NewUserView(u, roles))
	}
	return out, nil
}

func (s *Service) invalidateSession(ctx context.Context, userID string) {
	if err := s.sessions.InvalidateSession(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Failed to invalidate session")
	}
}

func (s *Service) invalidateLists(ctx context.Context) {
	if err := s.lists.Invalidate(ctx, cache.KindUsers); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate user lists")
	}
}

func (s *Service) record(ctx context.Context, claims identity.Claims, event audit.EventType, userID, orgID string, metadata map[string]interface{}) {
	if err := audit.FromContext(ctx).Log(ctx, &audit.Event{
		Type:           event,
		Status:         audit.StatusSuccess,
		ActorID:        claims.UserID,
		ActorEmail:     claims.Email,
		OrganizationID: orgID,
		ResourceType:   audit.ResourceUser,
		ResourceID:     userID,
		Metadata:       metadata,
	}); err != nil {
		s.logger.WithError(err).Warn("Failed to write audit event")
	}
}
