package onboarding

import (
	"context"
	"fmt"
	"time"

	"github.com/platinummonkey/bulwark/pkg/async"
	"github.com/platinummonkey/bulwark/pkg/cache"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/observability"
	"github.com/platinummonkey/bulwark/pkg/storage"
)

// Report summarizes one reconciler run.
type Report struct {
	Completed   int `json:"completed"`
	Compensated int `json:"compensated"`
	Failed      int `json:"failed"`
}

// Organizations are settled concurrently, each within settleTimeout.
const (
	defaultWorkers = 4
	settleTimeout  = 30 * time.Second
)

// Reconciler settles organizations whose onboarding never finished.
type Reconciler struct {
	store   storage.Store
	lists   *cache.ListCache
	metrics *observability.Metrics
	logger  *observability.Logger
	now     func() time.Time
	workers int
}

// NewReconciler creates a reconciler. lists and metrics may be nil.
func NewReconciler(store storage.Store, lists *cache.ListCache, metrics *observability.Metrics, logger *observability.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		lists:   lists,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		workers: defaultWorkers,
	}
}

// Run reconciles organizations that are failed, or pending for longer than
// staleAfter. Organizations that already have users are completed; the rest
// are removed together with their roles. Running it twice is harmless.
func (r *Reconciler) Run(ctx context.Context, staleAfter time.Duration) (*Report, error) {
	cutoff := r.now().Add(-staleAfter)
	pending, err := r.collect(ctx, storage.OrganizationFilter{OnboardingStatus: identity.OnboardingPending, CreatedBefore: &cutoff})
	if err != nil {
		r.metrics.RecordReconcile("error", 0, 0)
		return nil, err
	}
	failed, err := r.collect(ctx, storage.OrganizationFilter{OnboardingStatus: identity.OnboardingFailed})
	if err != nil {
		r.metrics.RecordReconcile("error", 0, 0)
		return nil, err
	}

	stuck := append(pending, failed...)
	statuses := make([]identity.OnboardingStatus, len(stuck))
	for i, org := range stuck {
		statuses[i] = org.OnboardingStatus
	}
	completed := make([]bool, len(stuck))
	errs := async.Batch(ctx, indexes(len(stuck)), r.workers, settleTimeout, func(ctx context.Context, i int) error {
		var err error
		completed[i], err = r.settle(ctx, stuck[i])
		return err
	})

	report := &Report{}
	for i, org := range stuck {
		log := r.logger.WithFields(map[string]interface{}{
			"organization_id":   org.ID,
			"organization_code": org.Code,
			"onboarding_status": string(statuses[i]),
		})
		switch {
		case errs[i] != nil:
			report.Failed++
			log.WithError(errs[i]).Error("Failed to reconcile organization")
		case completed[i]:
			report.Completed++
			log.Info("Reconciled organization as completed")
		default:
			report.Compensated++
			log.Info("Reconciled organization by removing it")
		}
	}

	if report.Completed+report.Compensated > 0 && r.lists != nil {
		if err := r.lists.Invalidate(ctx, cache.KindOrganizations, cache.KindRoles, cache.KindUsers); err != nil {
			r.logger.WithError(err).Warn("Failed to invalidate lists")
		}
	}

	outcome := "success"
	if report.Failed > 0 {
		outcome = "partial"
	}
	r.metrics.RecordReconcile(outcome, report.Completed, report.Compensated)
	return report, nil
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// collect loads every organization matching f.
func (r *Reconciler) collect(ctx context.Context, f storage.OrganizationFilter) ([]*identity.Organization, error) {
	var out []*identity.Organization
	for page := 1; ; page++ {
		res, err := r.store.ListOrganizations(ctx, f, storage.NewPage(page, storage.MaxLimit))
		if err != nil {
			return nil, fmt.Errorf("failed to list organizations: %w", err)
		}
		out = append(out, res.Items...)
		if page >= res.TotalPages() {
			return out, nil
		}
	}
}

// settle completes or compensates one organization and reports which.
func (r *Reconciler) settle(ctx context.Context, org *identity.Organization) (bool, error) {
	users, err := r.store.ListUsers(ctx, storage.UserFilter{OrganizationID: org.ID}, storage.NewPage(1, 1))
	if err != nil {
		return false, fmt.Errorf("failed to check users: %w", err)
	}
	if users.Total > 0 {
		now := r.now()
		org.OnboardingStatus = identity.OnboardingCompleted
		if org.OnboardedAt == nil {
			org.OnboardedAt = &now
		}
		if err := r.store.UpdateOrganization(ctx, org); err != nil {
			return false, fmt.Errorf("failed to complete organization: %w", err)
		}
		return true, nil
	}

	var roles []*identity.Role
	for page := 1; ; page++ {
		res, err := r.store.ListRoles(ctx, storage.RoleFilter{OrganizationID: org.ID}, storage.NewPage(page, storage.MaxLimit))
		if err != nil {
			return false, fmt.Errorf("failed to list roles: %w", err)
		}
		roles = append(roles, res.Items...)
		if page >= res.TotalPages() {
			break
		}
	}
	if err := compensate(ctx, r.store, org, roles); err != nil {
		return false, err
	}
	return false, nil
}
