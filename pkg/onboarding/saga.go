package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/audit"
	"github.com/platinummonkey/bulwark/pkg/auth"
	"github.com/platinummonkey/bulwark/pkg/authz"
	"github.com/platinummonkey/bulwark/pkg/cache"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/observability"
	"github.com/platinummonkey/bulwark/pkg/rbac"
	"github.com/platinummonkey/bulwark/pkg/storage"
)

// Onboarding outcomes reported to metrics.
const (
	OutcomeCompleted   = "completed"
	OutcomeRejected    = "rejected"
	OutcomeCompensated = "compensated"
	OutcomeFailed      = "failed"
)

// Saga runs the onboarding flow.
type Saga struct {
	store     storage.Store
	gate      *authz.Gate
	registrar Registrar
	lists     *cache.ListCache
	metrics   *observability.Metrics
	logger    *observability.Logger
	now       func() time.Time
}

// NewSaga creates an onboarding saga. metrics may be nil.
func NewSaga(store storage.Store, gate *authz.Gate, registrar Registrar, lists *cache.ListCache, metrics *observability.Metrics, logger *observability.Logger) *Saga {
	return &Saga{
		store:     store,
		gate:      gate,
		registrar: registrar,
		lists:     lists,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Onboard creates the organization, its roles and its admin user.
func (s *Saga) Onboard(ctx context.Context, claims identity.Claims, req Request) (*Result, error) {
	start := s.now()

	if err := s.gate.Check(ctx, claims, authz.ActionOnboard, authz.Resource{
		Kind:  authz.KindOrganization,
		Scope: identity.ScopeOrganization,
	}); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		s.metrics.RecordOnboarding(OutcomeRejected, s.now().Sub(start))
		return nil, err
	}

	org := req.Organization.Organization()
	org.OnboardingStatus = identity.OnboardingPending
	org.OnboardedBy = claims.UserID
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		s.metrics.RecordOnboarding(OutcomeRejected, s.now().Sub(start))
		return nil, err
	}

	log := s.logger.WithFields(map[string]interface{}{
		"organization_id":   org.ID,
		"organization_code": org.Code,
	})

	roles, err := s.createRoles(ctx, org)
	if err != nil {
		return nil, s.fail(ctx, log, org, roles, start, fmt.Errorf("failed to create roles: %w", err))
	}

	var orgAdmin *identity.Role
	for _, r := range roles {
		if r.Name == identity.RoleOrgAdmin {
			orgAdmin = r
		}
	}

	session, err := s.registrar.Register(ctx, auth.RegisterRequest{
		Email:          req.AdminUser.Email,
		Password:       req.AdminUser.Password,
		FirstName:      req.AdminUser.FirstName,
		LastName:       req.AdminUser.LastName,
		UserType:       identity.UserTypeCustomer,
		OrganizationID: org.ID,
		RoleIDs:        []string{orgAdmin.ID},
		Actor:          &claims,
	})
	if err != nil {
		return nil, s.fail(ctx, log, org, roles, start, err)
	}

	now := s.now()
	org.OnboardingStatus = identity.OnboardingCompleted
	org.OnboardedAt = &now
	if err := s.store.UpdateOrganization(ctx, org); err != nil {
		// The tenant is usable; the reconciler completes it later.
		log.WithError(err).Error("Failed to mark organization onboarded")
	}

	if err := s.lists.Invalidate(ctx, cache.KindOrganizations, cache.KindRoles, cache.KindUsers); err != nil {
		log.WithError(err).Warn("Failed to invalidate lists")
	}
	if err := audit.FromContext(ctx).Log(ctx, &audit.Event{
		Type:           audit.EventAdminOrgOnboard,
		Status:         audit.StatusSuccess,
		ActorID:        claims.UserID,
		ActorEmail:     claims.Email,
		OrganizationID: org.ID,
		ResourceType:   audit.ResourceOrganization,
		ResourceID:     org.ID,
		Metadata: map[string]interface{}{
			"admin_user_id": session.User.ID,
		},
	}); err != nil {
		log.WithError(err).Warn("Failed to write audit event")
	}

	s.metrics.RecordOnboarding(OutcomeCompleted, s.now().Sub(start))
	log.WithField("admin_user_id", session.User.ID).Info("Organization onboarded")
	return &Result{Organization: org, Roles: roles, AdminUser: session.User}, nil
}

// createRoles creates the organization role set in parallel. On error it
// returns the roles that were created so they can be compensated.
func (s *Saga) createRoles(ctx context.Context, org *identity.Organization) ([]*identity.Role, error) {
	defs := rbac.OrganizationRoles()
	created := make([]*identity.Role, len(defs))

	g, gctx := errgroup.WithContext(ctx)
	for i, def := range defs {
		g.Go(func() error {
			r := def.Role(identity.ScopeOrganization, org.ID)
			if err := s.store.CreateRole(gctx, r); err != nil {
				return fmt.Errorf("role %s: %w", def.Name, err)
			}
			created[i] = r
			return nil
		})
	}
	err := g.Wait()

	roles := make([]*identity.Role, 0, len(created))
	for _, r := range created {
		if r != nil {
			roles = append(roles, r)
		}
	}
	return roles, err
}

// fail compensates a partially onboarded organization and returns cause.
func (s *Saga) fail(ctx context.Context, log *observability.Logger, org *identity.Organization, roles []*identity.Role, start time.Time, cause error) error {
	log = log.WithError(cause)
	if err := compensate(context.WithoutCancel(ctx), s.store, org, roles); err != nil {
		log.WithField("compensation_error", err.Error()).Error("Onboarding failed and could not be compensated")
		s.metrics.RecordOnboarding(OutcomeFailed, s.now().Sub(start))
		return cause
	}
	log.Warn("Onboarding failed and was compensated")
	s.metrics.RecordOnboarding(OutcomeCompensated, s.now().Sub(start))
	return cause
}

// compensate removes the roles and the organization. If the organization
// already has users, or removal fails, it is marked failed instead.
func compensate(ctx context.Context, store storage.Store, org *identity.Organization, roles []*identity.Role) error {
	users, err := store.ListUsers(ctx, storage.UserFilter{OrganizationID: org.ID}, storage.NewPage(1, 1))
	if err != nil {
		return markFailed(ctx, store, org, fmt.Errorf("failed to check users: %w", err))
	}
	if users.Total > 0 {
		return markFailed(ctx, store, org, apperr.Conflict("Organization already has users"))
	}

	var errs []error
	for i := len(roles) - 1; i >= 0; i-- {
		if err := store.DeleteRole(ctx, roles[i].ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			errs = append(errs, fmt.Errorf("failed to delete role %s: %w", roles[i].Name, err))
		}
	}
	if len(errs) == 0 {
		err := store.DeleteOrganization(ctx, org.ID)
		if err == nil || errors.Is(err, apperr.ErrNotFound) {
			return nil
		}
		errs = append(errs, fmt.Errorf("failed to delete organization: %w", err))
	}
	return markFailed(ctx, store, org, errors.Join(errs...))
}

func markFailed(ctx context.Context, store storage.OrganizationStore, org *identity.Organization, cause error) error {
	current, err := store.GetOrganization(ctx, org.ID)
	if err != nil {
		return errors.Join(cause, fmt.Errorf("failed to load organization: %w", err))
	}
	if current.OnboardingStatus == identity.OnboardingFailed {
		return cause
	}
	current.OnboardingStatus = identity.OnboardingFailed
	if err := store.UpdateOrganization(ctx, current); err != nil {
		return errors.Join(cause, fmt.Errorf("failed to mark organization failed: %w", err))
	}
	*org = *current
	return cause
}
