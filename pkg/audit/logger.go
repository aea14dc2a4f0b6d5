package audit

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/bulwark/pkg/contextkeys"
	"github.com/platinummonkey/bulwark/pkg/observability"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log records an audit event
	Log(ctx context.Context, event *Event) error

	// Close flushes any buffered events
	Close() error
}

type contextKey string

const loggerKey contextKey = "audit_logger"

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the audit logger from context, or a no-op logger.
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey).(Logger); ok {
		return logger
	}
	return NopLogger{}
}

// NopLogger discards events.
type NopLogger struct{}

func (NopLogger) Log(context.Context, *Event) error { return nil }
func (NopLogger) Close() error                      { return nil }

// LogrusLogger writes events as structured log entries tagged audit=true.
type LogrusLogger struct {
	logger *observability.Logger
	now    func() time.Time
}

// NewLogrusLogger creates an audit logger over the service logger.
func NewLogrusLogger(logger *observability.Logger) *LogrusLogger {
	return &LogrusLogger{logger: logger, now: time.Now}
}

// Log fills in timestamp and request id when missing and emits the event.
// Failures and denials are logged at warn level.
func (l *LogrusLogger) Log(ctx context.Context, event *Event) error {
	if event == nil {
		return errors.New("audit event is nil")
	}
	if event.Type == "" {
		return errors.New("audit event type is required")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = l.now().UTC()
	}
	if event.RequestID == "" {
		event.RequestID = contextkeys.GetRequestID(ctx)
	}

	fields := logrus.Fields{
		"audit":      true,
		"event_type": string(event.Type),
		"status":     string(event.Status),
		"timestamp":  event.Timestamp.Format(time.RFC3339Nano),
	}
	optional := map[string]string{
		"actor_id":        event.ActorID,
		"actor_email":     event.ActorEmail,
		"organization_id": event.OrganizationID,
		"resource_type":   string(event.ResourceType),
		"resource_id":     event.ResourceID,
		"ip_address":      event.IPAddress,
		"request_id":      event.RequestID,
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}
	for k, v := range event.Metadata {
		fields["meta_"+k] = v
	}

	entry := l.logger.WithFields(fields)
	msg := event.Message
	if msg == "" {
		msg = string(event.Type)
	}
	if event.Status == StatusSuccess {
		entry.Info(msg)
	} else {
		entry.Warn(msg)
	}
	return nil
}

// Close is a no-op; the underlying logger is owned by the caller.
func (l *LogrusLogger) Close() error {
	return nil
}
