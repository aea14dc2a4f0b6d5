package orgs

import (
	"context"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/audit"
	"github.com/platinummonkey/bulwark/pkg/authz"
	"github.com/platinummonkey/bulwark/pkg/cache"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/observability"
	"github.com/platinummonkey/bulwark/pkg/storage"
)

// Service implements the organization use cases.
type Service struct {
	store  storage.OrganizationStore
	gate   *authz.Gate
	scoper *authz.Scoper
	lists  *cache.ListCache
	logger *observability.Logger
}

// NewService creates an organization service.
func NewService(store storage.OrganizationStore, gate *authz.Gate, lists *cache.ListCache, logger *observability.Logger) *Service {
	return &Service{
		store:  store,
		gate:   gate,
		scoper: authz.NewScoper(gate),
		lists:  lists,
		logger: logger,
	}
}

// List returns the organizations visible to the caller.
func (s *Service) List(ctx context.Context, claims identity.Claims, q authz.ListQuery) (*storage.ListResult[*identity.Organization], error) {
	filter := s.scoper.Organizations(claims, q)
	page := q.PageOf()
	return cache.Load(ctx, s.lists, cache.KindOrganizations, filter, page.Page, page.Limit,
		func(ctx context.Context) (*storage.ListResult[*identity.Organization], error) {
			return s.store.ListOrganizations(ctx, filter, page)
		})
}

// Get returns a single organization.
func (s *Service) Get(ctx context.Context, claims identity.Claims, id string) (*identity.Organization, error) {
	org, err := s.store.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Check(ctx, claims, authz.ActionRead, authz.OrganizationResource(org)); err != nil {
		return nil, err
	}
	return org, nil
}

// Create creates an organization outside of the onboarding flow. It is
// immediately completed.
func (s *Service) Create(ctx context.Context, claims identity.Claims, req CreateRequest) (*identity.Organization, error) {
	if err := s.gate.Check(ctx, claims, authz.ActionCreate, authz.Resource{
		Kind:  authz.KindOrganization,
		Scope: identity.ScopeOrganization,
	}); err != nil {
		return nil, err
	}

	org := req.Organization()
	org.OnboardingStatus = identity.OnboardingCompleted
	if err := org.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, err
	}

	s.invalidateLists(ctx)
	s.record(ctx, claims, audit.EventAdminOrgCreate, org, nil)
	return org, nil
}

// Update changes an organization. Changing its type, code or active flag
// additionally requires super_admin, for platform owners too.
func (s *Service) Update(ctx context.Context, claims identity.Claims, id string, req UpdateRequest) (*identity.Organization, error) {
	org, err := s.store.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}
	res := authz.OrganizationResource(org)
	if err := s.gate.Check(ctx, claims, authz.ActionUpdate, res); err != nil {
		return nil, err
	}
	if req.Version != 0 && req.Version != org.Version {
		return nil, apperr.Conflict("Organization was modified concurrently")
	}

	previousCode, previousType := org.Code, org.Type
	identityChanged, statusChanged := req.apply(org)
	if identityChanged {
		if err := s.gate.CheckStrict(ctx, claims, authz.ActionChangeIdentity, res); err != nil {
			return nil, err
		}
	}
	if statusChanged {
		if err := s.gate.CheckStrict(ctx, claims, authz.ActionChangeStatus, res); err != nil {
			return nil, err
		}
	}
	if err := org.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.UpdateOrganization(ctx, org); err != nil {
		return nil, err
	}

	var metadata map[string]interface{}
	if org.Code != previousCode || org.Type != previousType {
		metadata = map[string]interface{}{
			"previous_code": previousCode,
			"previous_type": string(previousType),
		}
	}
	s.invalidateLists(ctx)
	s.record(ctx, claims, audit.EventAdminOrgUpdate, org, metadata)
	return org, nil
}

// Delete deactivates an organization.
func (s *Service) Delete(ctx context.Context, claims identity.Claims, id string) (*identity.Organization, error) {
	org, err := s.store.GetOrganization(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.CheckStrict(ctx, claims, authz.ActionDelete, authz.OrganizationResource(org)); err != nil {
		return nil, err
	}

	org.IsActive = false
	if err := s.store.UpdateOrganization(ctx, org); err != nil {
		return nil, err
	}

	s.invalidateLists(ctx)
	s.record(ctx, claims, audit.EventAdminOrgDelete, org, nil)
	return org, nil
}

func (s *Service) invalidateLists(ctx context.Context) {
	if err := s.lists.Invalidate(ctx, cache.KindOrganizations); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate organization lists")
	}
}

func (s *Service) record(ctx context.Context, claims identity.Claims, event audit.EventType, org *identity.Organization, metadata map[string]interface{}) {
	if err := audit.FromContext(ctx).Log(ctx, &audit.Event{
		Type:           event,
		Status:         audit.StatusSuccess,
		ActorID:        claims.UserID,
		ActorEmail:     claims.Email,
		OrganizationID: org.ID,
		ResourceType:   audit.ResourceOrganization,
		ResourceID:     org.ID,
		Metadata:       metadata,
	}); err != nil {
		s.logger.WithError(err).Warn("Failed to write audit event")
	}
}
