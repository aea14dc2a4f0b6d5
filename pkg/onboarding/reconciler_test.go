package onboarding

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/bulwark/pkg/apperr"
	"github.com/platinummonkey/bulwark/pkg/auth"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/rbac"
)

func (e *env) stuckOrg(t *testing.T, code string, status identity.OnboardingStatus, age time.Duration, withAdmin bool) *identity.Organization {
	t.Helper()
	ctx := context.Background()

	now := e.store.Now
	e.store.Now = func() time.Time { return time.Now().UTC().Add(-age) }
	defer func() { e.store.Now = now }()

	org := &identity.Organization{Name: code, Code: code, Type: identity.OrgTypeCustomer, IsActive: true, OnboardingStatus: status}
	require.NoError(t, e.store.CreateOrganization(ctx, org))

	var orgAdmin *identity.Role
	for _, def := range rbac.OrganizationRoles() {
		r := def.Role(identity.ScopeOrganization, org.ID)
		require.NoError(t, e.store.CreateRole(ctx, r))
		if r.Name == identity.RoleOrgAdmin {
			orgAdmin = r
		}
	}

	if withAdmin {
		_, err := e.auth.Register(ctx, auth.RegisterRequest{
			Email:          "admin@" + code + ".test",
			Password:       "correct-horse",
			FirstName:      "Ada",
			LastName:       "Admin",
			OrganizationID: org.ID,
			RoleIDs:        []string{orgAdmin.ID},
		})
		require.NoError(t, err)
	}
	return org
}

func TestReconciler_Run(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	stale := e.stuckOrg(t, "STALE", identity.OnboardingPending, time.Hour, false)
	fresh := e.stuckOrg(t, "FRESH", identity.OnboardingPending, time.Minute, false)
	failed := e.stuckOrg(t, "FAILED", identity.OnboardingFailed, time.Minute, false)
	registered := e.stuckOrg(t, "REGISTERED", identity.OnboardingFailed, time.Hour, true)
	done := e.stuckOrg(t, "DONE", identity.OnboardingCompleted, time.Hour, false)

	r := NewReconciler(e.store, e.lists, e.metrics, e.logger)
	report, err := r.Run(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, &Report{Completed: 1, Compensated: 2}, report)

	for _, org := range []*identity.Organization{stale, failed} {
		_, err := e.store.GetOrganization(ctx, org.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound, org.Code)
	}

	got, err := e.store.GetOrganization(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.OnboardingPending, got.OnboardingStatus, "pending within the grace period is left alone")

	got, err = e.store.GetOrganization(ctx, registered.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.OnboardingCompleted, got.OnboardingStatus)
	assert.NotNil(t, got.OnboardedAt)

	got, err = e.store.GetOrganization(ctx, done.ID)
	require.NoError(t, err)
	assert.Equal(t, identity.OnboardingCompleted, got.OnboardingStatus)

	assert.Equal(t, 1.0, testutil.ToFloat64(e.metrics.ReconciledOrgsTotal.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.metrics.ReconciledOrgsTotal.WithLabelValues("compensated")))

	report, err = r.Run(ctx, 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, &Report{}, report, "a second run has nothing to do")
}
