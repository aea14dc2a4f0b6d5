// Package audit records security relevant events: authentication outcomes,
// authorization denials and administrative mutations of organizations,
// roles and users.
//
// # Usage Example
//
//	logger := audit.NewLogrusLogger(observability.NewLogger(observability.InfoLevel, os.Stdout))
//	ctx = audit.WithLogger(ctx, logger)
//
//	audit.FromContext(ctx).Log(ctx, &audit.Event{
//		Type:         audit.EventAuthLogin,
//		Status:       audit.StatusSuccess,
//		ActorID:      user.ID,
//		ResourceType: audit.ResourceUser,
//		ResourceID:   user.ID,
//	})
//
// Events are emitted as structured log entries. MultiLogger fans out to
// several destinations.
package audit
