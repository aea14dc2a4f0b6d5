package audit

import (
	"context"

	"github.com/platinummonkey/bulwark/pkg/authz"
	"github.com/platinummonkey/bulwark/pkg/identity"
	"github.com/platinummonkey/bulwark/pkg/observability"
)

// DenialObserver turns authorization denials into audit events and metrics.
// It uses the request's audit logger when one is in the context.
type DenialObserver struct {
	Logger  Logger
	Metrics *observability.Metrics
}

// Denied implements authz.Observer.
func (o *DenialObserver) Denied(ctx context.Context, c identity.Claims, action authz.Action, res authz.Resource, err error) {
	o.Metrics.RecordAuthzDenied(string(res.Kind), string(action))

	logger := o.Logger
	if _, ok := ctx.Value(loggerKey).(Logger); ok || logger == nil {
		logger = FromContext(ctx)
	}

	if logErr := logger.Log(ctx, &Event{
		Type:           EventAuthzAccessDenied,
		Status:         StatusDenied,
		ActorID:        c.UserID,
		ActorEmail:     c.Email,
		OrganizationID: c.OrganizationID,
		ResourceType:   ResourceType(res.Kind),
		Message:        err.Error(),
		Metadata: map[string]interface{}{
			"action":                string(action),
			"resource_scope":        string(res.Scope),
			"resource_organization": res.OrganizationID,
		},
	}); logErr != nil {
		observability.FromContext(ctx).WithError(logErr).Warn("Failed to write audit event")
	}
}
